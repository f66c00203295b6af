package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/paulschiretz/datpatch/pkg/engine"
	"github.com/paulschiretz/datpatch/pkg/flagparse"
	"github.com/paulschiretz/datpatch/pkg/planner"
)

// listOutput receives the listing. Tests replace it.
var listOutput io.Writer = os.Stdout

const listTimeLayout = "2006-01-02 15:04:05"

// RunList handles the logic for the list command.
func RunList(ctx context.Context, flagMap map[string]any) error {
	runConfig, err := loadRunConfig(flagparse.List, flagMap, false)
	if err != nil {
		return err
	}

	listPlan, err := planner.GenerateListPlan(runConfig)
	if err != nil {
		return err
	}

	listing, err := newRunner(runConfig).ListArchives(runConfig.TargetBase, listPlan)
	if err != nil {
		return err
	}
	return printListing(listOutput, runConfig.TargetBase, listing)
}

func printListing(w io.Writer, target string, listing engine.Listing) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if len(listing.Archives) == 0 {
		fmt.Fprintf(tw, "No archives found in %s\n", target)
	} else {
		var total int64
		fmt.Fprintln(tw, "MONTH\tCREATED\tSIZE\tARCHIVE")
		for _, a := range listing.Archives {
			total += a.Size
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Month, a.Timestamp.Format(listTimeLayout), humanize.IBytes(uint64(a.Size)), a.Name)
		}
		fmt.Fprintf(tw, "\n%d archives, %s total\n", len(listing.Archives), humanize.IBytes(uint64(total)))
	}

	if len(listing.Runs) > 0 {
		fmt.Fprintln(tw, "\nSTARTED\tFINISHED\tINFO")
		for _, r := range listing.Runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.StartTime.Local().Format(listTimeLayout), r.EndTime.Local().Format(listTimeLayout), r.BackupInfo)
		}
	}
	return tw.Flush()
}

package cmd

import (
	"context"
	"time"

	"github.com/paulschiretz/datpatch/pkg/buildinfo"
	"github.com/paulschiretz/datpatch/pkg/flagparse"
	"github.com/paulschiretz/datpatch/pkg/planner"
	"github.com/paulschiretz/datpatch/pkg/plog"
)

// RunPrune handles the logic for the prune command.
func RunPrune(ctx context.Context, flagMap map[string]any) error {
	runConfig, err := loadRunConfig(flagparse.Prune, flagMap, false)
	if err != nil {
		return err
	}
	runConfig.LogSummary()

	prunePlan, err := planner.GeneratePrunePlan(runConfig)
	if err != nil {
		return err
	}

	runner := newRunner(runConfig)

	startTime := time.Now()
	result, err := runner.ExecutePrune(ctx, runConfig.TargetBase, prunePlan)
	duration := time.Since(startTime).Round(time.Millisecond)
	if err != nil {
		return err
	}
	plog.Info(buildinfo.Name+" prune finished successfully.", "deleted", len(result.Deleted), "failed", len(result.Failed), "duration", duration)
	return nil
}

package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/paulschiretz/datpatch/pkg/archivename"
	"github.com/paulschiretz/datpatch/pkg/backupmonth"
	"github.com/paulschiretz/datpatch/pkg/cachefile"
	"github.com/paulschiretz/datpatch/pkg/planner"
)

// ArchiveEntry describes one month archive found in a destination.
type ArchiveEntry struct {
	Name      string
	Month     backupmonth.Month
	Timestamp time.Time
	Size      int64
}

// Listing is the content of a destination: its archives, oldest first, and
// its recorded backup runs.
type Listing struct {
	Archives []ArchiveEntry
	Runs     []cachefile.Record
}

// ListArchives reads the archives and the run history of absTargetPath.
// A missing destination lists as empty.
func (r *Runner) ListArchives(absTargetPath string, p *planner.ListPlan) (Listing, error) {
	var listing Listing
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}

	entries, err := os.ReadDir(absTargetPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return listing, nil
		}
		return listing, fmt.Errorf("failed to read destination directory %s: %w", absTargetPath, err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, ok := archivename.Parse(entry.Name(), loc)
		if !ok {
			continue
		}
		ae := ArchiveEntry{Name: entry.Name(), Month: info.Month, Timestamp: info.Timestamp}
		if fi, err := entry.Info(); err == nil {
			ae.Size = fi.Size()
		}
		listing.Archives = append(listing.Archives, ae)
	}
	slices.SortFunc(listing.Archives, func(a, b ArchiveEntry) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return a.Month.Compare(b.Month)
	})

	runs, err := cachefile.Read(cachefile.Path(absTargetPath))
	if err != nil {
		return listing, err
	}
	listing.Runs = runs
	return listing, nil
}

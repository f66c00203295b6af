// Package pathscan selects the source files that belong into a month's archive.
//
// A regular file is selected when it was modified after the previous run's
// cutoff and inside the month's [start, end) interval, where both bounds are
// local midnights. Symlinks are never followed or selected.
//
// Unreadable entries below the root are skipped, but a file whose metadata
// cannot be read aborts the scan: archiving a month with a silently missing
// file would advance the cutoff past it.
package pathscan

import (
	"context"
	"fmt"
	"time"

	"github.com/paulschiretz/datpatch/pkg/backupmonth"
	"github.com/paulschiretz/datpatch/pkg/plog"
)

// Scanner defines the interface for a component that selects the files of a month.
type Scanner interface {
	Scan(ctx context.Context, absRoot string, cutoff time.Time, month backupmonth.Month, p *Plan) ([]string, error)
}

// PathScanner walks the local filesystem.
type PathScanner struct{}

// Statically assert that *PathScanner implements the Scanner interface.
var _ Scanner = (*PathScanner)(nil)

// NewPathScanner creates a new PathScanner.
func NewPathScanner() *PathScanner {
	return &PathScanner{}
}

// Scan returns the absolute paths of all regular files below absRoot with a
// modification time after cutoff and inside month. Paths are returned in
// lexical walk order.
func (s *PathScanner) Scan(ctx context.Context, absRoot string, cutoff time.Time, month backupmonth.Month, p *Plan) ([]string, error) {
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	start, end := month.Range(loc)
	cutoff = cutoff.UTC()

	log := plog.Scoped(p.Silent)

	var m Metrics
	if p.Metrics {
		m = &ScanMetrics{}
	} else {
		m = &NoopMetrics{}
	}

	log.Debug("Scanning source", "root", absRoot, "month", month, "from", start, "until", end, "cutoff", cutoff)

	var files []string
	for e, err := range walk(ctx, absRoot, p, func() { m.AddEntriesExcluded(1) }) {
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", absRoot, err)
		}
		m.AddFilesScanned(1)

		info, err := e.d.Info()
		if err != nil {
			return nil, fmt.Errorf("could not read metadata of %s: %w", e.absPath, err)
		}

		modTime := info.ModTime().UTC()
		if !modTime.After(cutoff) || modTime.Before(start) || !modTime.Before(end) {
			continue
		}

		m.AddFilesSelected(1)
		m.AddBytesSelected(info.Size())
		log.Debug("SELECT", "path", e.relPath, "modified", modTime)
		files = append(files, e.absPath)
	}

	if !log.Silent() {
		m.LogSummary("Scan finished", "month", month.String())
	}
	return files, nil
}

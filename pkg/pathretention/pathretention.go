// Package pathretention deletes month archives that have aged out of the
// retention window.
//
// The window is KeepMonths times 30 days, measured back from "now". A month is
// approximated as 30 days rather than using calendar arithmetic, so the
// deadline drifts by a few days relative to calendar months. An archive's age
// is the creation timestamp encoded in its name, not its file modification
// time, so copying archives around does not change what gets pruned.
package pathretention

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paulschiretz/datpatch/pkg/archivename"
	"github.com/paulschiretz/datpatch/pkg/hints"
	"github.com/paulschiretz/datpatch/pkg/plog"
)

// DaysPerMonth is the month length assumed by the retention window.
const DaysPerMonth = 30

// ErrDisabled is returned as a hint when retention is turned off.
var ErrDisabled = hints.New("retention is disabled")

// Result lists the archives a prune touched, by absolute path.
type Result struct {
	Deleted []string
	Failed  map[string]error
}

// Retainer defines the interface for a component that prunes outdated archives.
type Retainer interface {
	Prune(ctx context.Context, absDestDir string, p *Plan, now time.Time) (Result, error)
}

type PathRetainer struct{}

// Statically assert that *PathRetainer implements the Retainer interface.
var _ Retainer = (*PathRetainer)(nil)

// NewPathRetainer creates a new PathRetainer.
func NewPathRetainer() *PathRetainer {
	return &PathRetainer{}
}

// Deadline returns the instant before which archives are pruned.
func Deadline(now time.Time, keepMonths int) time.Time {
	return now.Add(-time.Duration(keepMonths) * DaysPerMonth * 24 * time.Hour)
}

// Prune deletes the top-level archives in absDestDir whose encoded timestamp
// lies strictly before the deadline. Failing deletions are recorded in the
// result and logged; they never stop other deletions and never make Prune
// return an error. Files that are not archives are left alone.
func (r *PathRetainer) Prune(ctx context.Context, absDestDir string, p *Plan, now time.Time) (Result, error) {
	result := Result{Failed: map[string]error{}}
	log := plog.Scoped(p.Silent)

	if !p.Enabled || p.KeepMonths <= 0 {
		log.Debug("Retention is disabled; skipping prune.", "keep_months", p.KeepMonths)
		return result, ErrDisabled
	}

	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	deadline := Deadline(now, p.KeepMonths)

	outdated, err := findOutdated(ctx, absDestDir, deadline, loc)
	if err != nil {
		return result, err
	}
	if len(outdated) == 0 {
		log.Debug("No archives need deletion", "deadline", deadline)
		return result, nil
	}

	var m Metrics
	if p.Metrics && !log.Silent() {
		m = &RetentionMetrics{}
	} else {
		m = &NoopMetrics{}
	}

	log.Info("Deleting outdated archives", "count", len(outdated), "keep_months", p.KeepMonths, "deadline", deadline)

	m.StartProgress("Delete progress", 10*time.Second)
	defer func() {
		m.StopProgress()
		m.LogSummary("Delete finished")
	}()

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(max(p.DeleteWorkers, 1))

	for _, path := range outdated {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if p.DryRun {
				log.Notice("[DRY RUN] DELETE", "path", path)
				return nil
			}

			var size int64
			if info, err := os.Stat(path); err == nil {
				size = info.Size()
			}

			log.Notice("DELETE", "path", path)
			err := os.Remove(path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.AddArchivesFailed(1)
				result.Failed[path] = err
				log.Warn("Failed to delete outdated archive", "path", path, "error", err)
				return nil
			}
			m.AddArchivesDeleted(1)
			m.AddBytesFreed(size)
			result.Deleted = append(result.Deleted, path)
			return nil
		})
	}
	// Workers never return errors; failures are collected in result.
	_ = g.Wait()
	slices.Sort(result.Deleted)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// findOutdated lists the top-level regular files of dir whose names parse as
// archive names with a timestamp before deadline. A missing dir has no archives.
func findOutdated(ctx context.Context, dir string, deadline time.Time, loc *time.Location) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read destination directory %s: %w", dir, err)
	}

	var outdated []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, ok := archivename.Parse(entry.Name(), loc)
		if !ok {
			continue
		}
		if info.Timestamp.Before(deadline) {
			outdated = append(outdated, filepath.Join(dir, entry.Name()))
		}
	}
	return outdated, nil
}

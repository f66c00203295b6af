// Package engine orchestrates backup, prune and list runs against a
// destination directory.
//
// A backup run walks through these steps:
//
//  1. Preflight checks and destination layout.
//  2. Destination lock; a held lock skips the run.
//  3. Pre-backup hooks.
//  4. Run history read; its latest end time is the cutoff.
//  5. Month selection, then for each month in order a scan and an archive.
//     A failing month is recorded and the next month still runs.
//  6. Retention.
//  7. A new history record, only if at least one archive was written.
//  8. Post-backup hooks, also after failures.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/paulschiretz/datpatch/pkg/backupmonth"
	"github.com/paulschiretz/datpatch/pkg/buildinfo"
	"github.com/paulschiretz/datpatch/pkg/cachefile"
	"github.com/paulschiretz/datpatch/pkg/hints"
	"github.com/paulschiretz/datpatch/pkg/hook"
	"github.com/paulschiretz/datpatch/pkg/lockfile"
	"github.com/paulschiretz/datpatch/pkg/patharchive"
	"github.com/paulschiretz/datpatch/pkg/pathretention"
	"github.com/paulschiretz/datpatch/pkg/pathscan"
	"github.com/paulschiretz/datpatch/pkg/planner"
	"github.com/paulschiretz/datpatch/pkg/plog"
	"github.com/paulschiretz/datpatch/pkg/preflight"
)

// Runner executes plans using its leaf workers.
type Runner struct {
	scanner  pathscan.Scanner
	archiver patharchive.Archiver
	retainer pathretention.Retainer
	hooks    hook.Runner
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock replaces time.Now, so runs can be pinned to a fixed date.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a Runner from its workers.
func NewRunner(scanner pathscan.Scanner, archiver patharchive.Archiver, retainer pathretention.Retainer, hooks hook.Runner, opts ...Option) *Runner {
	r := &Runner{
		scanner:  scanner,
		archiver: archiver,
		retainer: retainer,
		hooks:    hooks,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result summarizes a backup run.
type Result struct {
	// Skipped is set when another process held the destination lock.
	Skipped bool
	Months  []backupmonth.Month
	// Archives holds the absolute paths of the archives written, in month order.
	Archives []string
	// MonthErrors holds the failure of every month that could not be archived.
	MonthErrors map[backupmonth.Month]error
	Pruned      pathretention.Result
	// Recorded is set when a history record was appended.
	Recorded bool
}

// ExecuteBackup runs one backup from absSourcePath into absTargetPath.
// Failures of single months do not fail the run; they are reported in
// Result.MonthErrors.
func (r *Runner) ExecuteBackup(ctx context.Context, absSourcePath, absTargetPath string, p *planner.BackupPlan) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := plog.Scoped(p.Silent)
	result := &Result{MonthErrors: map[backupmonth.Month]error{}}

	startTime := r.now()

	if err := preflight.Run(absSourcePath, absTargetPath, p.Preflight); err != nil {
		return nil, fmt.Errorf("preflight failed: %w", err)
	}

	release, err := r.acquireTargetLock(ctx, absTargetPath, log)
	if err != nil {
		return nil, err
	}
	if release == nil {
		result.Skipped = true
		return result, nil
	}
	defer release()

	if err := r.hooks.Run(ctx, hook.PreBackup, p.Hooks); err != nil && !hints.IsHint(err) {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("pre-backup hook canceled: %w", err)
		}
		return nil, fmt.Errorf("pre-backup hook failed: %w", err)
	}
	defer func() {
		if err := r.hooks.Run(ctx, hook.PostBackup, p.Hooks); err != nil && !hints.IsHint(err) {
			if errors.Is(err, context.Canceled) {
				log.Info("Post-backup hooks skipped due to cancellation")
			} else {
				log.Warn("Post-backup hook failed", "error", err)
			}
		}
	}()

	cachePath := cachefile.Path(absTargetPath)
	records, err := cachefile.Read(cachePath)
	if err != nil {
		return nil, err
	}
	cutoff := cachefile.LastBackupTime(records)

	months, err := backupmonth.Select(p.Mode, startTime.In(p.Location))
	if err != nil {
		return nil, err
	}
	result.Months = months

	log.Info("Starting backup", "source", absSourcePath, "target", absTargetPath, "mode", p.Mode, "months", backupmonth.Describe(months), "cutoff", cutoff)

	for _, month := range months {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		archivePath, err := r.backupMonth(ctx, absSourcePath, absTargetPath, cutoff, month, p)
		switch {
		case err == nil:
			result.Archives = append(result.Archives, archivePath)
		case hints.Is(err, patharchive.ErrNothingToArchive):
			log.Info("No changed files for month", "month", month)
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			result.MonthErrors[month] = err
			log.Warn("Backup of month failed, continuing", "month", month, "error", err)
		}
	}

	pruned, err := r.retainer.Prune(ctx, absTargetPath, p.Retention, r.now())
	result.Pruned = pruned
	if err != nil && !hints.IsHint(err) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		log.Warn("Error during prune, skipping prune", "error", err)
	}

	if len(result.Archives) > 0 {
		if p.DryRun {
			log.Notice("[DRY RUN] RECORD", "path", cachePath)
		} else {
			rec := cachefile.NewRecord(startTime, r.now(), months)
			if err := cachefile.Append(cachePath, rec); err != nil {
				log.Warn("Could not record backup run; the next run will archive these files again", "path", cachePath, "error", err)
			} else {
				result.Recorded = true
			}
		}
	}

	log.Info("Backup completed", "archives", len(result.Archives), "failed_months", len(result.MonthErrors))
	return result, nil
}

// backupMonth selects and archives the files of one month. A month without
// changed files yields patharchive.ErrNothingToArchive.
func (r *Runner) backupMonth(ctx context.Context, absSourcePath, absTargetPath string, cutoff time.Time, month backupmonth.Month, p *planner.BackupPlan) (string, error) {
	files, err := r.scanner.Scan(ctx, absSourcePath, cutoff, month, p.Scan)
	if err != nil {
		return "", fmt.Errorf("scan failed: %w", err)
	}
	if len(files) == 0 {
		return "", patharchive.ErrNothingToArchive
	}
	return r.archiver.Build(ctx, absSourcePath, files, absTargetPath, month, p.Archive, r.now())
}

// ExecutePrune applies retention to absTargetPath without backing anything up.
func (r *Runner) ExecutePrune(ctx context.Context, absTargetPath string, p *planner.PrunePlan) (pathretention.Result, error) {
	if err := ctx.Err(); err != nil {
		return pathretention.Result{}, err
	}
	log := plog.Scoped(p.Silent)

	if err := preflight.Run("", absTargetPath, p.Preflight); err != nil {
		return pathretention.Result{}, fmt.Errorf("preflight failed: %w", err)
	}

	release, err := r.acquireTargetLock(ctx, absTargetPath, log)
	if err != nil {
		return pathretention.Result{}, err
	}
	if release == nil {
		return pathretention.Result{}, nil
	}
	defer release()

	log.Info("Starting prune", "target", absTargetPath, "keep_months", p.Retention.KeepMonths)
	result, err := r.retainer.Prune(ctx, absTargetPath, p.Retention, r.now())
	if err != nil {
		if hints.Is(err, pathretention.ErrDisabled) {
			log.Info("Retention is disabled, nothing to prune")
			return result, nil
		}
		return result, fmt.Errorf("prune failed: %w", err)
	}
	log.Info("Prune completed", "deleted", len(result.Deleted), "failed", len(result.Failed))
	return result, nil
}

// acquireTargetLock locks absTargetPath. It returns a nil release function,
// and no error, when another run holds the lock. A destination that does not
// exist yet, as in a dry run, has nothing to protect and runs unlocked.
func (r *Runner) acquireTargetLock(ctx context.Context, absTargetPath string, log plog.Logger) (func(), error) {
	if _, err := os.Stat(absTargetPath); errors.Is(err, fs.ErrNotExist) {
		log.Debug("Destination does not exist, running without lock", "path", absTargetPath)
		return func() {}, nil
	}
	appID := fmt.Sprintf("%s:%s", buildinfo.BinaryName, absTargetPath)

	log.Debug("Attempting to acquire lock", "path", absTargetPath)
	lock, err := lockfile.Acquire(ctx, absTargetPath, appID)
	if err != nil {
		var active *lockfile.ErrLockActive
		if errors.As(err, &active) {
			log.Warn("Operation is already running for this target, skipping run", "details", active.Error())
			return nil, nil
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	log.Debug("Lock acquired")
	return lock.Release, nil
}

package cmd

import (
	"context"
	"time"

	"github.com/paulschiretz/datpatch/pkg/buildinfo"
	"github.com/paulschiretz/datpatch/pkg/engine"
	"github.com/paulschiretz/datpatch/pkg/flagparse"
	"github.com/paulschiretz/datpatch/pkg/planner"
	"github.com/paulschiretz/datpatch/pkg/plog"
)

// RunBackup handles the logic for the main backup execution.
func RunBackup(ctx context.Context, flagMap map[string]any) error {
	runConfig, err := loadRunConfig(flagparse.Backup, flagMap, true)
	if err != nil {
		return err
	}
	runConfig.LogSummary()

	backupPlan, err := planner.GenerateBackupPlan(runConfig)
	if err != nil {
		return err
	}

	runner := newRunner(runConfig)

	startTime := time.Now()
	result, err := runner.ExecuteBackup(ctx, runConfig.Source, runConfig.TargetBase, backupPlan)
	duration := time.Since(startTime).Round(time.Millisecond)
	if err != nil {
		return err // The error will be logged with full details by main()
	}
	logBackupResult(result, duration)
	return nil
}

// logBackupResult reports a finished run. Failed months do not fail the run.
func logBackupResult(result *engine.Result, duration time.Duration) {
	if result.Skipped {
		plog.Info(buildinfo.Name + " skipped this run, the destination is in use.")
		return
	}
	for month, err := range result.MonthErrors {
		plog.Warn("Month was not backed up", "month", month, "error", err)
	}
	plog.Info(buildinfo.Name+" finished successfully.",
		"archives", len(result.Archives),
		"failed_months", len(result.MonthErrors),
		"pruned", len(result.Pruned.Deleted),
		"duration", duration)
}

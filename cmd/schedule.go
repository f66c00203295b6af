package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/paulschiretz/datpatch/pkg/flagparse"
	"github.com/paulschiretz/datpatch/pkg/planner"
	"github.com/paulschiretz/datpatch/pkg/scheduler"
)

// RunSchedule runs backups on the configured cron schedule until ctx ends.
func RunSchedule(ctx context.Context, flagMap map[string]any) error {
	runConfig, err := loadRunConfig(flagparse.Schedule, flagMap, true)
	if err != nil {
		return err
	}
	if runConfig.Schedule.Cron == "" {
		return fmt.Errorf("a cron expression is required: set -cron or schedule.cron in the config file")
	}
	if runConfig.Runtime.Mode == "" {
		runConfig.Runtime.Mode = runConfig.Schedule.Mode
	}
	runConfig.LogSummary()

	backupPlan, err := planner.GenerateBackupPlan(runConfig)
	if err != nil {
		return err
	}
	runner := newRunner(runConfig)

	s, err := scheduler.New(runConfig.Schedule.Cron, backupPlan.Location, func(ctx context.Context) error {
		startTime := time.Now()
		result, err := runner.ExecuteBackup(ctx, runConfig.Source, runConfig.TargetBase, backupPlan)
		if err != nil {
			return err
		}
		logBackupResult(result, time.Since(startTime).Round(time.Millisecond))
		return nil
	})
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

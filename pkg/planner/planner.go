// Package planner turns a validated configuration into the plans consumed by
// the engine and its workers.
package planner

import (
	"errors"
	"strconv"
	"time"

	"github.com/paulschiretz/datpatch/pkg/backupmonth"
	"github.com/paulschiretz/datpatch/pkg/config"
	"github.com/paulschiretz/datpatch/pkg/hook"
	"github.com/paulschiretz/datpatch/pkg/patharchive"
	"github.com/paulschiretz/datpatch/pkg/pathretention"
	"github.com/paulschiretz/datpatch/pkg/pathscan"
	"github.com/paulschiretz/datpatch/pkg/preflight"
	"github.com/paulschiretz/datpatch/pkg/util"
)

// ErrModeRequired is returned when a backup is planned without a month mode.
var ErrModeRequired = errors.New("a month mode is required: use exactly one of -p, -n or -d")

type BackupPlan struct {
	Mode     backupmonth.Mode
	Location *time.Location

	Preflight *preflight.Plan
	Hooks     *hook.Plan
	Scan      *pathscan.Plan
	Archive   *patharchive.Plan
	Retention *pathretention.Plan

	// Global Flags
	DryRun  bool
	Silent  bool
	Metrics bool
}

type PrunePlan struct {
	Preflight *preflight.Plan
	Retention *pathretention.Plan

	// Global Flags
	DryRun  bool
	Silent  bool
	Metrics bool
}

type ListPlan struct {
	Location *time.Location

	// Global Flags
	Silent bool
}

// GenerateBackupPlan builds the plan of a backup run. cfg must have passed
// Validate.
func GenerateBackupPlan(cfg config.Config) (*BackupPlan, error) {
	if cfg.Runtime.Mode == "" {
		return nil, ErrModeRequired
	}
	mode, err := backupmonth.ParseMode(cfg.Runtime.Mode)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	dryRun := cfg.Runtime.DryRun
	silent := cfg.Runtime.Silent
	metrics := cfg.Engine.Metrics

	// A destination inside the source must never be archived into itself.
	var excludeDirs []string
	if cfg.Source != "" && util.IsSubPath(cfg.Source, cfg.TargetBase) {
		excludeDirs = append(excludeDirs, cfg.TargetBase)
	}

	return &BackupPlan{
		Mode:     mode,
		Location: loc,
		DryRun:   dryRun,
		Silent:   silent,
		Metrics:  metrics,

		Preflight: &preflight.Plan{
			SourceAccessible:   true,
			TargetAccessible:   true,
			EnsureTargetExists: true,
			TargetWritable:     true,
			SameDeviceWarning:  true,
			DryRun:             dryRun,
			Silent:             silent,
		},
		Hooks: &hook.Plan{
			Enabled:            len(cfg.Hooks.PreBackup) > 0 || len(cfg.Hooks.PostBackup) > 0,
			PreBackupCommands:  cfg.Hooks.PreBackup,
			PostBackupCommands: cfg.Hooks.PostBackup,
			FailFast:           cfg.Hooks.FailFast,
			Env: map[string]string{
				"DATPATCH_SOURCE":  cfg.Source,
				"DATPATCH_TARGET":  cfg.TargetBase,
				"DATPATCH_MODE":    mode.String(),
				"DATPATCH_DRY_RUN": strconv.FormatBool(dryRun),
			},
			DryRun: dryRun,
			Silent: silent,
		},
		Scan: &pathscan.Plan{
			ExcludePatterns: cfg.Selection.ExcludePatterns(),
			ExcludeDirs:     excludeDirs,
			Location:        loc,
			Silent:          silent,
			Metrics:         metrics,
		},
		Archive: &patharchive.Plan{
			Format:      cfg.Compression.Format,
			Level:       cfg.Compression.Level,
			CopyWorkers: cfg.Engine.Performance.CopyWorkers,
			Location:    loc,
			DryRun:      dryRun,
			Silent:      silent,
			Metrics:     metrics,
		},
		Retention: retentionPlan(cfg, loc),
	}, nil
}

// GeneratePrunePlan builds the plan of a standalone prune.
func GeneratePrunePlan(cfg config.Config) (*PrunePlan, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &PrunePlan{
		DryRun:  cfg.Runtime.DryRun,
		Silent:  cfg.Runtime.Silent,
		Metrics: cfg.Engine.Metrics,
		Preflight: &preflight.Plan{
			TargetAccessible: true,
			DryRun:           cfg.Runtime.DryRun,
			Silent:           cfg.Runtime.Silent,
		},
		Retention: retentionPlan(cfg, loc),
	}, nil
}

// GenerateListPlan builds the plan of the list command.
func GenerateListPlan(cfg config.Config) (*ListPlan, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &ListPlan{Location: loc, Silent: cfg.Runtime.Silent}, nil
}

func retentionPlan(cfg config.Config, loc *time.Location) *pathretention.Plan {
	return &pathretention.Plan{
		Enabled:       cfg.Retention.Enabled && cfg.Retention.KeepMonths > 0,
		KeepMonths:    cfg.Retention.KeepMonths,
		DeleteWorkers: cfg.Engine.Performance.DeleteWorkers,
		Location:      loc,
		DryRun:        cfg.Runtime.DryRun,
		Silent:        cfg.Runtime.Silent,
		Metrics:       cfg.Engine.Metrics,
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/paulschiretz/datpatch/pkg/buildinfo"
	"github.com/paulschiretz/datpatch/pkg/config"
	"github.com/paulschiretz/datpatch/pkg/flagparse"
	"github.com/paulschiretz/datpatch/pkg/lockfile"
	"github.com/paulschiretz/datpatch/pkg/plog"
	"github.com/paulschiretz/datpatch/pkg/preflight"
	"github.com/paulschiretz/datpatch/pkg/util"
)

// RunInit handles the logic for the 'init' command.
func RunInit(ctx context.Context, flagMap map[string]any) error {
	target, ok := flagMap["to"].(string)
	if !ok || target == "" {
		return fmt.Errorf("the -to flag is required for the init operation")
	}
	absTargetPath, err := util.ExpandedAbsPath(target)
	if err != nil {
		return fmt.Errorf("target path invalid: %w", err)
	}

	force, _ := flagMap["force"].(bool)
	configPath := config.Path(absTargetPath)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s, use -force to overwrite it", configPath)
	}

	// Existing settings survive a forced init unless a flag overrides them.
	baseConfig, err := config.Load(absTargetPath)
	if err != nil {
		plog.Warn("Could not load existing configuration, starting with defaults.", "reason", err)
		baseConfig = config.NewDefault()
	}

	runConfig := config.MergeConfigWithFlags(flagparse.Init, baseConfig, flagMap)
	runConfig.TargetBase = absTargetPath
	if runConfig.Source == "" {
		return fmt.Errorf("the -from flag is required for the init operation")
	}
	if err := runConfig.Validate(true); err != nil {
		return err
	}
	applyLogLevel(runConfig)

	startTime := time.Now()

	pfPlan := &preflight.Plan{
		SourceAccessible:   true,
		TargetAccessible:   true,
		EnsureTargetExists: true,
		TargetWritable:     true,
		DryRun:             runConfig.Runtime.DryRun,
		Silent:             runConfig.Runtime.Silent,
	}
	if err := preflight.Run(runConfig.Source, runConfig.TargetBase, pfPlan); err != nil {
		return fmt.Errorf("initialization preflight failed: %w", err)
	}

	if runConfig.Runtime.DryRun {
		plog.Notice("[DRY RUN] WRITE", "path", configPath)
		return nil
	}

	appID := fmt.Sprintf("%s-init:%s", buildinfo.BinaryName, runConfig.TargetBase)
	lock, err := lockfile.Acquire(ctx, runConfig.TargetBase, appID)
	if err != nil {
		var active *lockfile.ErrLockActive
		if errors.As(err, &active) {
			return fmt.Errorf("cannot initialize while another run uses the destination: %w", err)
		}
		return fmt.Errorf("failed to acquire lock on target directory: %w", err)
	}
	defer lock.Release()

	if err := config.Generate(runConfig); err != nil {
		return fmt.Errorf("failed to generate config file: %w", err)
	}

	duration := time.Since(startTime).Round(time.Millisecond)
	plog.Info(buildinfo.Name+" target successfully initialized.", "duration", duration)
	return nil
}

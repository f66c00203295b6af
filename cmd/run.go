package cmd

import (
	"fmt"

	"github.com/paulschiretz/datpatch/pkg/config"
	"github.com/paulschiretz/datpatch/pkg/engine"
	"github.com/paulschiretz/datpatch/pkg/flagparse"
	"github.com/paulschiretz/datpatch/pkg/hook"
	"github.com/paulschiretz/datpatch/pkg/patharchive"
	"github.com/paulschiretz/datpatch/pkg/pathretention"
	"github.com/paulschiretz/datpatch/pkg/pathscan"
	"github.com/paulschiretz/datpatch/pkg/plog"
	"github.com/paulschiretz/datpatch/pkg/util"
)

// loadRunConfig loads the configuration of the destination named by -to,
// applies the flags on top and validates the result. It also sets the global
// log level.
func loadRunConfig(command flagparse.Command, flagMap map[string]any, checkSource bool) (config.Config, error) {
	target, ok := flagMap["to"].(string)
	if !ok || target == "" {
		return config.Config{}, fmt.Errorf("the -to flag is required to run %s", command)
	}
	absTargetPath, err := util.ExpandedAbsPath(target)
	if err != nil {
		return config.Config{}, fmt.Errorf("target path invalid: %w", err)
	}

	loadedConfig, err := config.Load(absTargetPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load configuration from target: %w", err)
	}

	runConfig := config.MergeConfigWithFlags(command, loadedConfig, flagMap)
	runConfig.TargetBase = absTargetPath

	if err := runConfig.Validate(checkSource); err != nil {
		return config.Config{}, err
	}
	applyLogLevel(runConfig)
	return runConfig, nil
}

// applyLogLevel sets the global log level. Silent runs only print errors.
func applyLogLevel(c config.Config) {
	level, err := plog.LevelFromString(c.LogLevel)
	if err != nil {
		level = plog.LevelInfo
	}
	if c.Runtime.Silent {
		level = plog.LevelError
	}
	plog.SetLevel(level)
}

// newRunner creates the engine and feeds it with our leaf workers.
func newRunner(c config.Config) *engine.Runner {
	return engine.NewRunner(
		pathscan.NewPathScanner(),
		patharchive.NewPathArchiver(c.Engine.Performance.BufferSizeKB),
		pathretention.NewPathRetainer(),
		hook.NewExecutor(nil),
	)
}

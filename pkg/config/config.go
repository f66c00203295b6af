// Package config holds the persistent settings of a backup destination.
//
// The configuration lives in <destination>/datpatch.config.yaml. Every field
// has a default, so a missing file or a partial file is valid. Values of the
// form $(NAME) are replaced with the environment variable NAME before the
// YAML is decoded.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/paulschiretz/datpatch/pkg/backupmonth"
	"github.com/paulschiretz/datpatch/pkg/buildinfo"
	"github.com/paulschiretz/datpatch/pkg/flagparse"
	"github.com/paulschiretz/datpatch/pkg/pathcompression"
	"github.com/paulschiretz/datpatch/pkg/pathscan"
	"github.com/paulschiretz/datpatch/pkg/plog"
	"github.com/paulschiretz/datpatch/pkg/scheduler"
	"github.com/paulschiretz/datpatch/pkg/util"
)

// ConfigFileName is the name of the configuration file inside the destination.
const ConfigFileName = "datpatch.config.yaml"

// matches $(VAR_NAME)
var envPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_]+)\)`)

func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envPattern.FindStringSubmatch(m)[1])
	})
}

type PerformanceConfig struct {
	CopyWorkers   int `yaml:"copyWorkers"`
	DeleteWorkers int `yaml:"deleteWorkers"`
	BufferSizeKB  int `yaml:"bufferSizeKB"`
}

type EngineConfig struct {
	Metrics     bool              `yaml:"metrics"`
	Performance PerformanceConfig `yaml:"performance"`
}

type SelectionConfig struct {
	DefaultExcludes []string `yaml:"defaultExcludes"`
	// UserExcludes has no omitempty so that it shows up in generated files.
	UserExcludes []string `yaml:"userExcludes"`
}

type CompressionConfig struct {
	Format pathcompression.Format `yaml:"format"`
	Level  pathcompression.Level  `yaml:"level"`
}

type RetentionConfig struct {
	Enabled    bool `yaml:"enabled"`
	KeepMonths int  `yaml:"keepMonths"`
}

type HooksConfig struct {
	// PreBackup and PostBackup are shell commands run as given.
	PreBackup  []string `yaml:"preBackup"`
	PostBackup []string `yaml:"postBackup"`
	FailFast   bool     `yaml:"failFast"`
}

type ScheduleConfig struct {
	// Cron is a standard five field cron expression, or a descriptor such as "@daily".
	Cron string `yaml:"cron"`
	// Mode is the month mode used for scheduled runs.
	Mode string `yaml:"mode"`
}

type RuntimeConfig struct {
	Mode   string
	DryRun bool
	Silent bool
}

type Config struct {
	Version     string            `yaml:"version"`
	Source      string            `yaml:"source"`
	TargetBase  string            `yaml:"-"`
	Runtime     RuntimeConfig     `yaml:"-"`
	LogLevel    string            `yaml:"logLevel"`
	Timezone    string            `yaml:"timezone"`
	Engine      EngineConfig      `yaml:"engine"`
	Selection   SelectionConfig   `yaml:"selection"`
	Compression CompressionConfig `yaml:"compression"`
	Retention   RetentionConfig   `yaml:"retention"`
	Hooks       HooksConfig       `yaml:"hooks"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
}

// NewDefault returns a Config with the default values.
func NewDefault() Config {
	return Config{
		Version:  buildinfo.Version,
		LogLevel: "info",
		Engine: EngineConfig{
			Metrics: true,
			Performance: PerformanceConfig{
				CopyWorkers:   4,
				DeleteWorkers: 4,
				BufferSizeKB:  256,
			},
		},
		Selection: SelectionConfig{
			DefaultExcludes: []string{},
			UserExcludes:    []string{},
		},
		Compression: CompressionConfig{
			Format: pathcompression.Zip,
			Level:  pathcompression.Default,
		},
		Retention: RetentionConfig{
			Enabled:    true,
			KeepMonths: 6,
		},
		Hooks: HooksConfig{
			PreBackup:  []string{},
			PostBackup: []string{},
		},
		Schedule: ScheduleConfig{
			Cron: "0 3 * * *",
			Mode: backupmonth.Dynamic.String(),
		},
	}
}

// Path returns the absolute path of the configuration file in targetBase.
func Path(targetBase string) string {
	return filepath.Join(targetBase, ConfigFileName)
}

// Load reads the configuration of targetBase. A missing file yields the
// defaults; a file that cannot be parsed is an error.
func Load(targetBase string) (Config, error) {
	absTargetBase, err := filepath.Abs(targetBase)
	if err != nil {
		return Config{}, fmt.Errorf("could not determine absolute path for %s: %w", targetBase, err)
	}

	config := NewDefault()
	config.TargetBase = absTargetBase

	configPath := Path(absTargetBase)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config, nil
		}
		return Config{}, fmt.Errorf("error reading config file %s: %w", configPath, err)
	}

	plog.Debug("Loading configuration", "path", configPath)
	// Decoding over the defaults keeps values the file leaves out.
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &config); err != nil {
		return Config{}, fmt.Errorf("error parsing config file %s: %w", configPath, err)
	}
	config.TargetBase = absTargetBase
	config.Version = buildinfo.Version
	return config, nil
}

// Generate writes c to the configuration file of c.TargetBase, replacing any
// existing file.
func Generate(c Config) error {
	if err := os.MkdirAll(c.TargetBase, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("failed to create target directory %s: %w", c.TargetBase, err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	configPath := Path(c.TargetBase)
	if err := os.WriteFile(configPath, data, util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	plog.Info("Saved config file", "path", configPath)
	return nil
}

// Validate checks c for logical errors and normalizes its paths. With
// checkSource the source must be set and exist.
func (c *Config) Validate(checkSource bool) error {
	if checkSource && c.Source == "" {
		return fmt.Errorf("source path cannot be empty")
	}
	if c.TargetBase == "" {
		return fmt.Errorf("target path cannot be empty")
	}

	var err error
	if c.Source != "" {
		if c.Source, err = util.ExpandedAbsPath(c.Source); err != nil {
			return fmt.Errorf("could not expand source path: %w", err)
		}
		if checkSource {
			if _, err := os.Stat(c.Source); errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("source path '%s' does not exist", c.Source)
			}
		}
	}
	if c.TargetBase, err = util.ExpandedAbsPath(c.TargetBase); err != nil {
		return fmt.Errorf("could not expand target path: %w", err)
	}
	if c.Source != "" && c.Source == c.TargetBase {
		return fmt.Errorf("source and target cannot be the same directory: %s", c.Source)
	}

	if c.Runtime.Mode != "" {
		if _, err := backupmonth.ParseMode(c.Runtime.Mode); err != nil {
			return err
		}
	}
	if _, err := plog.LevelFromString(c.LogLevel); err != nil {
		return fmt.Errorf("logLevel: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Compression.Format, err = pathcompression.ParseFormat(string(c.Compression.Format)); err != nil {
		return fmt.Errorf("compression.format: %w", err)
	}
	if c.Compression.Level, err = pathcompression.ParseLevel(string(c.Compression.Level)); err != nil {
		return fmt.Errorf("compression.level: %w", err)
	}

	if c.Engine.Performance.CopyWorkers < 1 {
		return fmt.Errorf("engine.performance.copyWorkers must be at least 1")
	}
	if c.Engine.Performance.DeleteWorkers < 1 {
		return fmt.Errorf("engine.performance.deleteWorkers must be at least 1")
	}
	if c.Engine.Performance.BufferSizeKB <= 0 {
		return fmt.Errorf("engine.performance.bufferSizeKB must be greater than 0")
	}
	if c.Retention.KeepMonths < 0 {
		return fmt.Errorf("retention.keepMonths cannot be negative")
	}

	if c.Schedule.Cron != "" {
		if _, err := scheduler.Parse(c.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron: %w", err)
		}
	}
	if c.Schedule.Mode != "" {
		if _, err := backupmonth.ParseMode(c.Schedule.Mode); err != nil {
			return fmt.Errorf("schedule.mode: %w", err)
		}
	}

	if err := pathscan.ValidatePatterns(c.Selection.DefaultExcludes); err != nil {
		return fmt.Errorf("selection.defaultExcludes: %w", err)
	}
	if err := pathscan.ValidatePatterns(c.Selection.UserExcludes); err != nil {
		return fmt.Errorf("selection.userExcludes: %w", err)
	}
	return nil
}

// Location resolves the configured timezone. An empty value or "Local" is
// the system zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ExcludePatterns returns the default and user exclusion patterns,
// deduplicated. Both are empty unless configured.
func (s *SelectionConfig) ExcludePatterns() []string {
	return util.MergeAndDeduplicate(s.DefaultExcludes, s.UserExcludes)
}

// LogSummary logs the effective configuration.
func (c *Config) LogSummary() {
	logArgs := []any{
		"mode", c.Runtime.Mode,
		"log_level", c.LogLevel,
		"source", c.Source,
		"target", c.TargetBase,
		"dry_run", c.Runtime.DryRun,
		"metrics", c.Engine.Metrics,
		"copy_workers", c.Engine.Performance.CopyWorkers,
		"delete_workers", c.Engine.Performance.DeleteWorkers,
		"buffer_size_kb", c.Engine.Performance.BufferSizeKB,
		"compression", fmt.Sprintf("%s (l:%s)", c.Compression.Format, c.Compression.Level),
	}
	if c.Timezone != "" {
		logArgs = append(logArgs, "timezone", c.Timezone)
	}
	if c.Retention.Enabled && c.Retention.KeepMonths > 0 {
		logArgs = append(logArgs, "retention", fmt.Sprintf("enabled (m:%d)", c.Retention.KeepMonths))
	} else {
		logArgs = append(logArgs, "retention", "disabled")
	}
	if excludes := c.Selection.ExcludePatterns(); len(excludes) > 0 {
		logArgs = append(logArgs, "excludes", strings.Join(excludes, ", "))
	}
	if len(c.Hooks.PreBackup) > 0 {
		logArgs = append(logArgs, "pre_backup_hooks", strings.Join(c.Hooks.PreBackup, "; "))
	}
	if len(c.Hooks.PostBackup) > 0 {
		logArgs = append(logArgs, "post_backup_hooks", strings.Join(c.Hooks.PostBackup, "; "))
	}
	plog.Scoped(c.Runtime.Silent).Info("Configuration loaded", logArgs...)
}

// MergeConfigWithFlags overlays the flags the user set explicitly on top of
// base. Values have already been type checked by flagparse.
func MergeConfigWithFlags(command flagparse.Command, base Config, setFlags map[string]any) Config {
	merged := base

	for name, value := range setFlags {
		switch name {
		case "from":
			merged.Source = value.(string)
		case "to":
			merged.TargetBase = value.(string)
		case "mode":
			if command == flagparse.Schedule {
				merged.Schedule.Mode = value.(string)
			} else {
				merged.Runtime.Mode = value.(string)
			}
		case "silent":
			merged.Runtime.Silent = value.(bool)
		case "log-level":
			merged.LogLevel = value.(string)
		case "dry-run":
			merged.Runtime.DryRun = value.(bool)
		case "metrics":
			merged.Engine.Metrics = value.(bool)
		case "timezone":
			merged.Timezone = value.(string)
		case "keep-months":
			merged.Retention.KeepMonths = value.(int)
			merged.Retention.Enabled = value.(int) > 0
		case "format":
			merged.Compression.Format = pathcompression.Format(value.(string))
		case "level":
			merged.Compression.Level = pathcompression.Level(value.(string))
		case "copy-workers":
			merged.Engine.Performance.CopyWorkers = value.(int)
		case "delete-workers":
			merged.Engine.Performance.DeleteWorkers = value.(int)
		case "buffer-size-kb":
			merged.Engine.Performance.BufferSizeKB = value.(int)
		case "exclude":
			merged.Selection.UserExcludes = value.([]string)
		case "pre-backup-hooks":
			merged.Hooks.PreBackup = value.([]string)
		case "post-backup-hooks":
			merged.Hooks.PostBackup = value.([]string)
		case "cron":
			merged.Schedule.Cron = value.(string)
		default:
			plog.Debug("unhandled flag in MergeConfigWithFlags", "flag", name)
		}
	}
	return merged
}

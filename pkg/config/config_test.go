package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/paulschiretz/datpatch/pkg/flagparse"
	"github.com/paulschiretz/datpatch/pkg/pathcompression"
)

func newValidConfig(t *testing.T) Config {
	t.Helper()
	cfg := NewDefault()
	cfg.Source = t.TempDir()
	cfg.TargetBase = t.TempDir()
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	t.Run("Valid Config", func(t *testing.T) {
		cfg := newValidConfig(t)
		if err := cfg.Validate(true); err != nil {
			t.Errorf("expected valid config to pass validation, but got error: %v", err)
		}
	})

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{"Empty Source Path", func(c *Config) { c.Source = "" }, "source path cannot be empty"},
		{"Non-Existent Source Path", func(c *Config) { c.Source = filepath.Join(c.Source, "missing") }, "does not exist"},
		{"Empty Target Path", func(c *Config) { c.TargetBase = "" }, "target path cannot be empty"},
		{"Source Equals Target", func(c *Config) { c.TargetBase = c.Source }, "cannot be the same"},
		{"Invalid Mode", func(c *Config) { c.Runtime.Mode = "weekly" }, "invalid backup mode"},
		{"Invalid Log Level", func(c *Config) { c.LogLevel = "loud" }, "logLevel"},
		{"Invalid Timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "invalid timezone"},
		{"Invalid Format", func(c *Config) { c.Compression.Format = "rar" }, "compression.format"},
		{"Invalid Level", func(c *Config) { c.Compression.Level = "max" }, "compression.level"},
		{"Zero Copy Workers", func(c *Config) { c.Engine.Performance.CopyWorkers = 0 }, "copyWorkers"},
		{"Zero Delete Workers", func(c *Config) { c.Engine.Performance.DeleteWorkers = 0 }, "deleteWorkers"},
		{"Zero Buffer", func(c *Config) { c.Engine.Performance.BufferSizeKB = 0 }, "bufferSizeKB"},
		{"Negative Keep Months", func(c *Config) { c.Retention.KeepMonths = -1 }, "keepMonths"},
		{"Invalid Cron", func(c *Config) { c.Schedule.Cron = "every day" }, "schedule.cron"},
		{"Cron Never Fires", func(c *Config) { c.Schedule.Cron = "0 0 30 2 *" }, "never fires"},
		{"Invalid Schedule Mode", func(c *Config) { c.Schedule.Mode = "weekly" }, "schedule.mode"},
		{"Invalid Exclude Pattern", func(c *Config) { c.Selection.UserExcludes = []string{"[abc"} }, "selection.userExcludes"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newValidConfig(t)
			tc.modify(&cfg)
			err := cfg.Validate(true)
			if err == nil {
				t.Fatal("expected validation error, but got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, but got %v", tc.wantErr, err)
			}
		})
	}

	t.Run("Source Not Checked", func(t *testing.T) {
		cfg := newValidConfig(t)
		cfg.Source = ""
		if err := cfg.Validate(false); err != nil {
			t.Errorf("expected no error without source check, but got %v", err)
		}
	})

	t.Run("Empty Format Defaults To Zip", func(t *testing.T) {
		cfg := newValidConfig(t)
		cfg.Compression.Format = ""
		if err := cfg.Validate(true); err != nil {
			t.Fatal(err)
		}
		if cfg.Compression.Format != pathcompression.Zip {
			t.Errorf("expected zip, got %s", cfg.Compression.Format)
		}
	})
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TargetBase != dir {
		t.Errorf("expected target %s, got %s", dir, cfg.TargetBase)
	}
	if cfg.Retention.KeepMonths != 6 || cfg.Compression.Format != pathcompression.Zip {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestGenerateAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefault()
	cfg.TargetBase = dir
	cfg.Source = "/data/photos"
	cfg.Compression.Format = pathcompression.TarZst
	cfg.Compression.Level = pathcompression.Best
	cfg.Retention.KeepMonths = 12
	cfg.Hooks.PreBackup = []string{"echo start"}

	if err := Generate(cfg); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Source != cfg.Source ||
		loaded.Compression.Format != pathcompression.TarZst ||
		loaded.Compression.Level != pathcompression.Best ||
		loaded.Retention.KeepMonths != 12 ||
		!slices.Equal(loaded.Hooks.PreBackup, cfg.Hooks.PreBackup) {
		t.Errorf("loaded config differs from generated one: %+v", loaded)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	content := "source: /src\nretention:\n  keepMonths: 2\n"
	if err := os.WriteFile(Path(dir), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Retention.KeepMonths != 2 {
		t.Errorf("expected keepMonths 2, got %d", cfg.Retention.KeepMonths)
	}
	if !cfg.Retention.Enabled || cfg.Engine.Performance.CopyWorkers != 4 {
		t.Errorf("expected untouched fields to keep defaults, got %+v", cfg)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATPATCH_TEST_SRC", "/mnt/share")
	if err := os.WriteFile(Path(dir), []byte("source: $(DATPATCH_TEST_SRC)/docs\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Source != "/mnt/share/docs" {
		t.Errorf("expected expanded source, got %q", cfg.Source)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(Path(dir), []byte("compression:\n  format: rar\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for invalid format, but got nil")
	}
}

func TestLocation(t *testing.T) {
	cfg := NewDefault()
	loc, err := cfg.Location()
	if err != nil || loc != time.Local {
		t.Errorf("expected time.Local, got %v (%v)", loc, err)
	}
	cfg.Timezone = "UTC"
	loc, err = cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Errorf("expected UTC, got %v (%v)", loc, err)
	}
}

func TestExcludePatterns(t *testing.T) {
	tests := []struct {
		name string
		sel  SelectionConfig
		want []string
	}{
		{"Defaults Exclude Nothing", NewDefault().Selection, nil},
		{"User Only", SelectionConfig{UserExcludes: []string{"**/*.iso"}}, []string{"**/*.iso"}},
		{
			"Merged And Deduplicated",
			SelectionConfig{UserExcludes: []string{"**/*.iso", "**/*.tmp"}, DefaultExcludes: []string{"**/*.tmp"}},
			[]string{"**/*.iso", "**/*.tmp"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.sel.ExcludePatterns()
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for _, want := range tc.want {
				if !slices.Contains(got, want) {
					t.Errorf("expected %q in %v", want, got)
				}
			}
		})
	}
}

func TestMergeConfigWithFlags(t *testing.T) {
	base := NewDefault()
	flags := map[string]any{
		"from":        "/src",
		"to":          "/dst",
		"mode":        "current",
		"keep-months": 0,
		"format":      "tar.gz",
		"exclude":     []string{"**/*.iso"},
		"dry-run":     true,
	}
	merged := MergeConfigWithFlags(flagparse.Backup, base, flags)

	if merged.Source != "/src" || merged.TargetBase != "/dst" {
		t.Errorf("unexpected paths %q %q", merged.Source, merged.TargetBase)
	}
	if merged.Runtime.Mode != "current" || !merged.Runtime.DryRun {
		t.Errorf("unexpected runtime %+v", merged.Runtime)
	}
	if merged.Retention.Enabled || merged.Retention.KeepMonths != 0 {
		t.Errorf("expected retention disabled, got %+v", merged.Retention)
	}
	if merged.Compression.Format != pathcompression.TarGz {
		t.Errorf("expected tar.gz, got %s", merged.Compression.Format)
	}
	if !slices.Equal(merged.Selection.UserExcludes, []string{"**/*.iso"}) {
		t.Errorf("unexpected excludes %v", merged.Selection.UserExcludes)
	}
	if base.Source != "" {
		t.Error("expected base config to be left untouched")
	}

	scheduled := MergeConfigWithFlags(flagparse.Schedule, base, map[string]any{"mode": "previous", "cron": "@daily"})
	if scheduled.Schedule.Mode != "previous" || scheduled.Schedule.Cron != "@daily" || scheduled.Runtime.Mode != "" {
		t.Errorf("expected schedule fields to be set, got %+v / %+v", scheduled.Schedule, scheduled.Runtime)
	}
}

package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulschiretz/datpatch/pkg/archivename"
	"github.com/paulschiretz/datpatch/pkg/backupmonth"
)

func TestRunPrune(t *testing.T) {
	target := t.TempDir()
	now := time.Now()

	old := now.AddDate(-1, 0, 0)
	oldPath := filepath.Join(target, archivename.Format(backupmonth.Of(old), old, "zip"))
	freshPath := filepath.Join(target, archivename.Format(backupmonth.Of(now), now, "zip"))
	for _, p := range []string{oldPath, freshPath} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := RunPrune(context.Background(), map[string]any{"to": target, "keep-months": 3, "silent": true}); err != nil {
		t.Fatalf("RunPrune failed: %v", err)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Errorf("expected %s to be pruned", oldPath)
	}
	if _, err := os.Stat(freshPath); err != nil {
		t.Errorf("expected %s to be kept: %v", freshPath, err)
	}
}

func TestRunPrune_DryRunKeepsArchives(t *testing.T) {
	target := t.TempDir()
	old := time.Now().AddDate(-1, 0, 0)
	oldPath := filepath.Join(target, archivename.Format(backupmonth.Of(old), old, "zip"))
	if err := os.WriteFile(oldPath, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	flagMap := map[string]any{"to": target, "keep-months": 1, "dry-run": true, "silent": true}
	if err := RunPrune(context.Background(), flagMap); err != nil {
		t.Fatalf("RunPrune failed: %v", err)
	}
	if _, err := os.Stat(oldPath); err != nil {
		t.Errorf("expected archive to survive a dry run: %v", err)
	}
}

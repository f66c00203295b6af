package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paulschiretz/datpatch/pkg/archivename"
	"github.com/paulschiretz/datpatch/pkg/backupmonth"
	"github.com/paulschiretz/datpatch/pkg/cachefile"
	"github.com/paulschiretz/datpatch/pkg/engine"
)

func captureList(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := listOutput
	listOutput = &buf
	t.Cleanup(func() { listOutput = orig })
	return &buf
}

func TestRunList(t *testing.T) {
	target := t.TempDir()
	buf := captureList(t)

	stamps := []time.Time{
		time.Date(2023, time.March, 1, 4, 0, 0, 0, time.Local),
		time.Date(2023, time.January, 1, 4, 0, 0, 0, time.Local),
	}
	for _, ts := range stamps {
		name := archivename.Format(backupmonth.Of(ts), ts, "zip")
		if err := os.WriteFile(filepath.Join(target, name), make([]byte, 2048), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(cachefile.Path(target)), 0755); err != nil {
		t.Fatal(err)
	}
	rec := cachefile.NewRecord(stamps[0], stamps[0].Add(time.Minute), []backupmonth.Month{backupmonth.Of(stamps[0])})
	if err := cachefile.Write(cachefile.Path(target), []cachefile.Record{rec}); err != nil {
		t.Fatal(err)
	}

	if err := RunList(context.Background(), map[string]any{"to": target, "silent": true}); err != nil {
		t.Fatalf("RunList failed: %v", err)
	}

	out := buf.String()
	jan := strings.Index(out, "2023-01_backup_20230101040000.zip")
	mar := strings.Index(out, "2023-03_backup_20230301040000.zip")
	if jan < 0 || mar < 0 || jan > mar {
		t.Errorf("expected both archives, oldest first, got:\n%s", out)
	}
	for _, want := range []string{"2.0 KiB", "2 archives, 4.0 KiB total", "Backup for 2023-03"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestPrintListing_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := printListing(&buf, "/backups", engine.Listing{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No archives found in /backups") {
		t.Errorf("unexpected output %q", buf.String())
	}
	if strings.Contains(buf.String(), "STARTED") {
		t.Errorf("expected no run table without runs, got %q", buf.String())
	}
}

func TestRunList_RequiresTarget(t *testing.T) {
	if err := RunList(context.Background(), map[string]any{}); err == nil {
		t.Fatal("expected an error without -to")
	}
}

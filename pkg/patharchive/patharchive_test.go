package patharchive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/paulschiretz/datpatch/pkg/archivename"
	"github.com/paulschiretz/datpatch/pkg/backupmonth"
	"github.com/paulschiretz/datpatch/pkg/hints"
	"github.com/paulschiretz/datpatch/pkg/pathcompression"
)

func writeSourceFiles(t *testing.T, root string, rels ...string) []string {
	t.Helper()
	var abs []string
	for _, rel := range rels {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte("data:"+rel), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
		abs = append(abs, path)
	}
	return abs
}

func zipNames(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open archive %s: %v", path, err)
	}
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	slices.Sort(names)
	return names
}

func TestBuild_FlatFiles(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	const n = 25

	var rels []string
	for i := range n {
		rels = append(rels, fmt.Sprintf("file-%02d.txt", i))
	}
	files := writeSourceFiles(t, src, rels...)

	month := backupmonth.Month{Year: 2025, Month: time.January}
	ts := time.Date(2025, time.February, 3, 4, 5, 6, 0, time.UTC)
	plan := &Plan{Format: pathcompression.Zip, CopyWorkers: 4, Location: time.UTC}

	archivePath, err := NewPathArchiver(64).Build(context.Background(), src, files, dest, month, plan, ts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	wantPath := filepath.Join(dest, "2025-01_backup_20250203040506.zip")
	if archivePath != wantPath {
		t.Errorf("expected archive path %s, but got %s", wantPath, archivePath)
	}
	if got := zipNames(t, archivePath); !slices.Equal(got, rels) {
		t.Errorf("expected %d entries %v, but got %v", n, rels, got)
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only the archive in the destination, but found %v", names)
	}
}

func TestBuild_NestedFilesIncludeDirEntries(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	files := writeSourceFiles(t, src, "a/b/one.txt", "a/two.txt", "three.txt")

	month := backupmonth.Month{Year: 2024, Month: time.December}
	archivePath, err := NewPathArchiver(64).Build(context.Background(), src, files, dest, month, &Plan{CopyWorkers: 2}, time.Now())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := []string{"a/", "a/b/", "a/b/one.txt", "a/two.txt", "three.txt"}
	if got := zipNames(t, archivePath); !slices.Equal(got, want) {
		t.Errorf("expected entries %v, but got %v", want, got)
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != "a/b/one.txt" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if string(data) != "data:a/b/one.txt" {
			t.Errorf("unexpected content %q", data)
		}
	}
}

func TestBuild_FileOutsideRoot(t *testing.T) {
	src := t.TempDir()
	other := t.TempDir()
	dest := t.TempDir()

	files := writeSourceFiles(t, src, "inside.txt")
	files = append(files, writeSourceFiles(t, other, "outside.txt")...)

	month := backupmonth.Month{Year: 2025, Month: time.March}
	_, err := NewPathArchiver(64).Build(context.Background(), src, files, dest, month, &Plan{}, time.Now())
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, but got %v", err)
	}

	entries, _ := os.ReadDir(dest)
	if len(entries) != 0 {
		t.Errorf("expected destination to be untouched, found %d entries", len(entries))
	}
}

func TestBuild_NoFiles(t *testing.T) {
	dest := t.TempDir()
	month := backupmonth.Month{Year: 2025, Month: time.March}

	_, err := NewPathArchiver(64).Build(context.Background(), t.TempDir(), nil, dest, month, &Plan{}, time.Now())
	if !hints.Is(err, ErrNothingToArchive) {
		t.Fatalf("expected ErrNothingToArchive hint, but got %v", err)
	}
}

func TestBuild_DryRun(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	files := writeSourceFiles(t, src, "x.txt")

	month := backupmonth.Month{Year: 2025, Month: time.March}
	archivePath, err := NewPathArchiver(64).Build(context.Background(), src, files, dest, month, &Plan{DryRun: true}, time.Now())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(archivePath), "2025-03_backup_") {
		t.Errorf("unexpected would-be archive path %s", archivePath)
	}
	entries, _ := os.ReadDir(dest)
	if len(entries) != 0 {
		t.Errorf("expected no changes in dry run, found %d entries", len(entries))
	}
}

func TestBuild_TarZstNameParses(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	files := writeSourceFiles(t, src, "x.txt")

	month := backupmonth.Month{Year: 2025, Month: time.April}
	ts := time.Date(2025, time.April, 30, 23, 0, 0, 0, time.Local)
	plan := &Plan{Format: pathcompression.TarZst}
	archivePath, err := NewPathArchiver(64).Build(context.Background(), src, files, dest, month, plan, ts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	info, ok := archivename.Parse(filepath.Base(archivePath), time.Local)
	if !ok {
		t.Fatalf("expected %s to be a recognised archive name", archivePath)
	}
	if info.Month != month || !info.Timestamp.Equal(ts) || info.Extension != "tar.zst" {
		t.Errorf("unexpected archive info %+v", info)
	}
}

func TestBuild_SameSecondFailsWithoutClobbering(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	files := writeSourceFiles(t, src, "x.txt")

	month := backupmonth.Month{Year: 2025, Month: time.March}
	ts := time.Date(2025, time.March, 5, 10, 0, 0, 0, time.UTC)
	a := NewPathArchiver(64)
	plan := &Plan{Location: time.UTC}

	first, err := a.Build(context.Background(), src, files, dest, month, plan, ts)
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	if _, err := a.Build(context.Background(), src, files, dest, month, plan, ts); err == nil {
		t.Fatal("expected second Build with the same timestamp to fail, but got nil")
	}

	entries, _ := os.ReadDir(dest)
	if len(entries) != 1 || entries[0].Name() != filepath.Base(first) {
		t.Errorf("expected only the first archive to remain, found %d entries", len(entries))
	}
}

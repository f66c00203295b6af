package pathcompression

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// archiveEntry is a file or directory below the staging root.
type archiveEntry struct {
	absPath string
	relPath string // slash-separated; directories carry no trailing slash
	info    fs.FileInfo
}

// entryWriter writes entries into an archive stream.
type entryWriter interface {
	writeDir(e archiveEntry) error
	writeFile(e archiveEntry, buf []byte) error
	Close() error
}

// compressMetricWriter wraps an io.Writer and updates metrics on every write.
type compressMetricWriter struct {
	w       io.Writer
	metrics Metrics
}

func (mw *compressMetricWriter) Write(p []byte) (n int, err error) {
	n, err = mw.w.Write(p)
	if n > 0 {
		mw.metrics.AddBytesWritten(int64(n))
	}
	return
}

// collectEntries lists every file and every directory below absRoot, the root
// itself excluded, in lexical order. Symlinks are rejected: the staging tree
// only ever contains regular files and directories.
func collectEntries(ctx context.Context, absRoot string) ([]archiveEntry, error) {
	var entries []archiveEntry
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == absRoot {
			return nil
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return fmt.Errorf("unsupported entry type %s in staging tree: %s", d.Type(), path)
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info for %s: %w", path, err)
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}
		entries = append(entries, archiveEntry{absPath: path, relPath: filepath.ToSlash(rel), info: info})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// secureFileOpen verifies that the file at path is the same one we expected (TOCTOU check).
func secureFileOpen(absFilePath string, expected os.FileInfo) (*os.File, error) {
	f, err := os.Open(absFilePath)
	if err != nil {
		return nil, err
	}

	openedInfo, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat opened file: %w", err)
	}
	if !os.SameFile(expected, openedInfo) {
		f.Close()
		return nil, fmt.Errorf("file changed during compression (TOCTOU): %s", absFilePath)
	}
	// A size change would corrupt tar headers written from the expected info.
	if openedInfo.Size() != expected.Size() {
		f.Close()
		return nil, fmt.Errorf("file size changed during compression: %s", absFilePath)
	}
	return f, nil
}

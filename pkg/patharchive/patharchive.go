// Package patharchive builds the dated archive of one backup month.
//
// The selected files are first copied into a private staging directory below
// the destination, mirroring their paths relative to the source root. The
// staging tree is then compressed into <destination>/<archive name> and
// removed. Concurrent builds never share a staging directory, since each one
// is named after a fresh random UUID.
package patharchive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/paulschiretz/datpatch/pkg/archivename"
	"github.com/paulschiretz/datpatch/pkg/backupmonth"
	"github.com/paulschiretz/datpatch/pkg/hints"
	"github.com/paulschiretz/datpatch/pkg/pathcompression"
	"github.com/paulschiretz/datpatch/pkg/plog"
	"github.com/paulschiretz/datpatch/pkg/pool"
	"github.com/paulschiretz/datpatch/pkg/util"
)

// ErrNothingToArchive is returned as a hint when a month has no selected files.
var ErrNothingToArchive = hints.New("nothing to archive")

// ErrInvalidInput is returned when a selected file does not lie below the source root.
var ErrInvalidInput = errors.New("file is not located below the source root")

// Archiver defines the interface for a component that turns a list of files into a month archive.
type Archiver interface {
	Build(ctx context.Context, absSourceRoot string, files []string, absDestDir string, month backupmonth.Month, p *Plan, timestamp time.Time) (string, error)
}

type PathArchiver struct {
	compressor   pathcompression.Compressor
	ioBufferPool *pool.FixedBufferPool
}

// Statically assert that *PathArchiver implements the Archiver interface.
var _ Archiver = (*PathArchiver)(nil)

// NewPathArchiver creates a new PathArchiver that copies and compresses with
// buffers of bufferSizeKB.
func NewPathArchiver(bufferSizeKB int) *PathArchiver {
	return &PathArchiver{
		compressor:   pathcompression.NewPathCompressor(bufferSizeKB),
		ioBufferPool: pool.NewFixedBuffer(int64(bufferSizeKB) * 1024),
	}
}

// Build archives files, all of which must lie below absSourceRoot, into
// absDestDir and returns the absolute archive path. The archive name encodes
// month and timestamp at second precision.
func (a *PathArchiver) Build(ctx context.Context, absSourceRoot string, files []string, absDestDir string, month backupmonth.Month, p *Plan, timestamp time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", ErrNothingToArchive
	}

	log := plog.Scoped(p.Silent)

	relPaths, err := relativePaths(absSourceRoot, files)
	if err != nil {
		return "", err
	}

	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	format := p.Format
	if format == "" {
		format = pathcompression.Zip
	}
	archivePath := filepath.Join(absDestDir, archivename.Format(month, timestamp.In(loc), format.Extension()))

	if p.DryRun {
		log.Notice("[DRY RUN] ARCHIVE", "month", month, "files", len(files), "archive", archivePath)
		return archivePath, nil
	}

	var m Metrics
	if p.Metrics && !log.Silent() {
		m = &ArchiveMetrics{}
	} else {
		m = &NoopMetrics{}
	}
	m.StartProgress("Archive progress", 10*time.Second)
	defer func() {
		m.StopProgress()
		m.LogSummary("Archive finished")
	}()

	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("could not generate staging directory name: %w", err)
	}
	stagingDir := filepath.Join(absDestDir, id.String())
	if err := os.Mkdir(stagingDir, util.UserWritableDirPerms); err != nil {
		return "", fmt.Errorf("could not create staging directory %s: %w", stagingDir, err)
	}
	defer func() {
		// Best effort on failure paths; success removes it explicitly below.
		if _, statErr := os.Stat(stagingDir); statErr == nil {
			if err := os.RemoveAll(stagingDir); err != nil {
				log.Warn("Could not remove staging directory", "path", stagingDir, "error", err)
			}
		}
	}()

	log.Info("Staging files", "month", month, "files", len(files), "staging", stagingDir)

	t := &stageTask{
		ctx:          ctx,
		absSrcRoot:   absSourceRoot,
		absStageRoot: stagingDir,
		relPaths:     relPaths,
		numWorkers:   max(p.CopyWorkers, 1),
		ioBufferPool: a.ioBufferPool,
		metrics:      m,
		log:          log,
	}
	if err := t.execute(); err != nil {
		return "", fmt.Errorf("staging for %s failed: %w", month, err)
	}

	compressPlan := &pathcompression.Plan{
		Format:  format,
		Level:   p.Level,
		Silent:  p.Silent,
		Metrics: p.Metrics,
	}
	if err := a.compressor.Compress(ctx, stagingDir, archivePath, compressPlan); err != nil {
		return "", fmt.Errorf("compressing %s failed: %w", month, err)
	}

	if err := os.RemoveAll(stagingDir); err != nil {
		log.Warn("Could not remove staging directory", "path", stagingDir, "error", err)
	}

	m.AddArchivesCreated(1)
	size := ""
	if info, err := os.Stat(archivePath); err == nil {
		size = humanize.IBytes(uint64(info.Size()))
	}
	log.Notice("ARCHIVED", "month", month, "archive", archivePath, "files", len(files), "size", size)
	return archivePath, nil
}

// relativePaths maps every file onto its path relative to root. Any file
// outside root fails the whole batch with ErrInvalidInput.
func relativePaths(absRoot string, files []string) ([]string, error) {
	rels := make([]string, len(files))
	for i, f := range files {
		rel, err := filepath.Rel(absRoot, f)
		if err != nil || rel == "." || !util.IsSubPath(absRoot, f) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidInput, f)
		}
		rels[i] = rel
	}
	return rels, nil
}

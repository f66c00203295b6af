// Package pathcompression packs a directory tree into a single archive file
// (zip, tar.gz or tar.zst).
//
// Every file and every directory below the source root becomes an entry with
// a slash-separated path relative to the root. The archive is written to a
// temporary file next to the target and renamed into place once complete,
// so a failed or cancelled run never leaves a truncated archive behind.
package pathcompression

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/paulschiretz/datpatch/pkg/plog"
	"github.com/paulschiretz/datpatch/pkg/pool"
	"github.com/paulschiretz/datpatch/pkg/util"
)

// Compressor defines the interface for a component that packs a directory into an archive.
type Compressor interface {
	Compress(ctx context.Context, absSourcePath, absArchiveFilePath string, p *Plan) error
}

type PathCompressor struct {
	ioBufferPool *pool.FixedBufferPool
	ioBufferSize int
	flatePools   map[Level]*sync.Pool
}

// Statically assert that *PathCompressor implements the Compressor interface.
var _ Compressor = (*PathCompressor)(nil)

// NewPathCompressor creates a new PathCompressor using read buffers of bufferSizeKB.
func NewPathCompressor(bufferSizeKB int) *PathCompressor {
	bufferPool := pool.NewFixedBuffer(int64(bufferSizeKB) * 1024)
	flatePools := make(map[Level]*sync.Pool, len(levelToString))
	for l := range levelToString {
		flatePools[l] = newFlatePool(l.flateLevel())
	}
	return &PathCompressor{
		ioBufferPool: bufferPool,
		ioBufferSize: int(bufferPool.Size()),
		flatePools:   flatePools,
	}
}

// Compress packs absSourcePath into absArchiveFilePath. An existing file at
// absArchiveFilePath is never overwritten.
func (c *PathCompressor) Compress(ctx context.Context, absSourcePath, absArchiveFilePath string, p *Plan) (retErr error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	log := plog.Scoped(p.Silent)

	if p.DryRun {
		log.Notice("[DRY RUN] COMPRESS", "source", absSourcePath, "archive", absArchiveFilePath, "format", p.Format)
		return nil
	}

	if _, err := os.Stat(absArchiveFilePath); err == nil {
		return fmt.Errorf("archive %s already exists", absArchiveFilePath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("could not check archive destination %s: %w", absArchiveFilePath, err)
	}

	entries, err := collectEntries(ctx, absSourcePath)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", absSourcePath, err)
	}

	var m Metrics
	if p.Metrics && !log.Silent() {
		m = &CompressionMetrics{}
	} else {
		m = &NoopMetrics{}
	}
	m.StartProgress("Compression progress", 10*time.Second)
	defer func() {
		m.StopProgress()
		m.LogSummary("Compression finished")
	}()

	log.Notice("COMPRESS", "source", absSourcePath, "archive", absArchiveFilePath, "format", p.Format, "entries", len(entries))

	// The temp file lives next to the target so the final rename is atomic.
	trgF, err := os.CreateTemp(filepath.Dir(absArchiveFilePath), "datpatch-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tempTrgPath := trgF.Name()
	defer func() {
		if retErr != nil {
			trgF.Close()
			os.Remove(tempTrgPath)
		}
	}()

	if err := c.writeEntries(ctx, trgF, entries, p, m); err != nil {
		return err
	}

	if err := trgF.Chmod(util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("failed to set permissions on temp archive: %w", err)
	}
	if err := trgF.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempTrgPath, absArchiveFilePath); err != nil {
		return fmt.Errorf("failed to rename temp archive to final path: %w", err)
	}
	return nil
}

func (c *PathCompressor) writeEntries(ctx context.Context, f *os.File, entries []archiveEntry, p *Plan, m Metrics) (retErr error) {
	bufWriter := bufio.NewWriterSize(&compressMetricWriter{w: f, metrics: m}, c.ioBufferSize)

	var ew entryWriter
	switch p.Format {
	case Zip, "":
		flatePool, ok := c.flatePools[p.Level]
		if !ok {
			flatePool = c.flatePools[Default]
		}
		ew = newZipEntryWriter(bufWriter, flatePool, m)
	case TarGz, TarZst:
		tw, err := newTarEntryWriter(bufWriter, p.Format, p.Level, m)
		if err != nil {
			return err
		}
		ew = tw
	default:
		return fmt.Errorf("unsupported compression format: %s", p.Format)
	}

	defer func() {
		if err := ew.Close(); err != nil && retErr == nil {
			retErr = err
		}
		if err := bufWriter.Flush(); err != nil && retErr == nil {
			retErr = fmt.Errorf("buffer flush failed: %w", err)
		}
	}()

	bufPtr := c.ioBufferPool.Get()
	defer c.ioBufferPool.Put(bufPtr)
	buf := (*bufPtr)[:cap(*bufPtr)]

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		if e.info.IsDir() {
			err = ew.writeDir(e)
		} else {
			err = ew.writeFile(e, buf)
		}
		if err != nil {
			return err
		}
		m.AddEntriesProcessed(1)
	}
	return nil
}

package patharchive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/paulschiretz/datpatch/pkg/plog"
	"github.com/paulschiretz/datpatch/pkg/pool"
	"github.com/paulschiretz/datpatch/pkg/sharded"
	"github.com/paulschiretz/datpatch/pkg/util"
)

// stageTask holds the mutable state for copying one batch of files into a
// staging tree.
type stageTask struct {
	ctx          context.Context
	absSrcRoot   string
	absStageRoot string
	relPaths     []string
	numWorkers   int
	ioBufferPool *pool.FixedBufferPool
	metrics      Metrics
	log          plog.Logger

	// createdDirs remembers staging directories that already exist, and
	// dirGroup makes sure only one worker creates any given directory.
	createdDirs *sharded.Set
	dirGroup    singleflight.Group
}

func (t *stageTask) execute() error {
	t.createdDirs = sharded.NewSet(sharded.DefaultShards)
	t.createdDirs.Store(".")

	g, ctx := errgroup.WithContext(t.ctx)
	g.SetLimit(t.numWorkers)

	for _, rel := range t.relPaths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return t.copyFile(rel)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// errgroup's derived context is cancelled by Wait, so check the parent.
	return t.ctx.Err()
}

// ensureDir creates the staging directory for relDir and all of its parents once.
func (t *stageTask) ensureDir(relDir string) error {
	if t.createdDirs.Has(relDir) {
		return nil
	}
	_, err, _ := t.dirGroup.Do(relDir, func() (any, error) {
		if t.createdDirs.Has(relDir) {
			return nil, nil
		}
		absDir := filepath.Join(t.absStageRoot, relDir)
		if err := os.MkdirAll(absDir, util.UserWritableDirPerms); err != nil {
			return nil, fmt.Errorf("could not create staging directory %s: %w", absDir, err)
		}
		t.createdDirs.Store(relDir)
		t.metrics.AddDirsCreated(1)
		return nil, nil
	})
	return err
}

func (t *stageTask) copyFile(rel string) error {
	if err := t.ensureDir(filepath.Dir(rel)); err != nil {
		return err
	}

	absSrc := filepath.Join(t.absSrcRoot, rel)
	absDst := filepath.Join(t.absStageRoot, rel)

	src, err := os.Open(absSrc)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", absSrc, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("could not stat %s: %w", absSrc, err)
	}

	dst, err := os.OpenFile(absDst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, util.WithUserWritePermission(info.Mode().Perm()))
	if err != nil {
		return fmt.Errorf("could not create %s: %w", absDst, err)
	}
	defer dst.Close() // safety net; closed explicitly below

	bufPtr := t.ioBufferPool.Get()
	defer t.ioBufferPool.Put(bufPtr)

	// Hide WriterTo/ReaderFrom so the pooled buffer is actually used.
	n, err := io.CopyBuffer(struct{ io.Writer }{dst}, struct{ io.Reader }{src}, *bufPtr)
	if err != nil {
		return fmt.Errorf("could not copy %s: %w", absSrc, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("could not close %s: %w", absDst, err)
	}

	// The archive records the source modification time.
	if err := os.Chtimes(absDst, info.ModTime(), info.ModTime()); err != nil {
		t.log.Debug("Could not preserve modification time", "path", absDst, "error", err)
	}

	t.metrics.AddFilesStaged(1)
	t.metrics.AddBytesStaged(n)
	t.log.Debug("STAGE", "file", filepath.ToSlash(rel))
	return nil
}

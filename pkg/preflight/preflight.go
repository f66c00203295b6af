// Package preflight validates the source and destination of a run before any
// work starts, and prepares the destination layout.
package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/paulschiretz/datpatch/pkg/cachefile"
	"github.com/paulschiretz/datpatch/pkg/plog"
	"github.com/paulschiretz/datpatch/pkg/util"
)

// Run executes the checks enabled in p in order and stops at the first failure.
func Run(absSourcePath, absTargetPath string, p *Plan) error {
	log := plog.Scoped(p.Silent)

	if p.SourceAccessible {
		if err := CheckSourceAccessible(absSourcePath); err != nil {
			return err
		}
	}
	if p.TargetAccessible {
		if err := CheckTargetAccessible(absTargetPath); err != nil {
			return err
		}
	}
	if p.EnsureTargetExists {
		if p.DryRun {
			if _, err := os.Stat(absTargetPath); errors.Is(err, fs.ErrNotExist) {
				log.Notice("[DRY RUN] MKDIR", "path", absTargetPath)
			}
		} else if err := EnsureTargetLayout(absTargetPath, log); err != nil {
			return err
		}
	}
	if p.TargetWritable && !p.DryRun {
		if err := CheckTargetWritable(absTargetPath); err != nil {
			return err
		}
	}
	if p.SameDeviceWarning {
		if same, err := sameDevice(absSourcePath, absTargetPath); err == nil && same {
			log.Warn("Destination is on the same filesystem as the source; a disk failure would lose both", "source", absSourcePath, "target", absTargetPath)
		}
	}
	return nil
}

// CheckSourceAccessible validates that the source path exists and is a directory.
func CheckSourceAccessible(srcPath string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("source directory %s does not exist", srcPath)
		}
		return fmt.Errorf("cannot stat source directory %s: %w", srcPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source path %s is not a directory", srcPath)
	}
	return nil
}

// CheckTargetAccessible verifies the destination is a directory, or that it
// can be created because its parent exists.
func CheckTargetAccessible(targetPath string) error {
	info, err := os.Stat(targetPath)
	if errors.Is(err, fs.ErrNotExist) {
		parent := filepath.Dir(targetPath)
		if _, err := os.Stat(parent); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("target path and its parent directory do not exist: %s", parent)
		} else if err != nil {
			return fmt.Errorf("cannot access parent directory %s: %w", parent, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access target path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("target path exists but is not a directory: %s", targetPath)
	}
	return nil
}

// EnsureTargetLayout creates the destination, with a warning when it was
// missing, and its cache directory.
func EnsureTargetLayout(targetPath string, log plog.Logger) error {
	if _, err := os.Stat(targetPath); errors.Is(err, fs.ErrNotExist) {
		log.Warn("Destination directory does not exist, creating it", "path", targetPath)
	}
	cacheDir := filepath.Join(targetPath, cachefile.DirName)
	if err := os.MkdirAll(cacheDir, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", cacheDir, err)
	}
	return nil
}

// CheckTargetWritable creates and removes a probe file in the destination.
func CheckTargetWritable(targetPath string) error {
	probe := filepath.Join(targetPath, ".~datpatch-writetest.tmp")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("target directory %s is not writable: %w", targetPath, err)
	}
	f.Close()
	_ = os.Remove(probe)
	return nil
}

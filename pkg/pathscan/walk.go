package pathscan

import (
	"context"
	"errors"
	"io/fs"
	"iter"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var errStopWalk = errors.New("walk stopped by consumer")

// entry is a regular file reachable from the scan root.
type entry struct {
	absPath string
	relPath string // slash-separated, relative to the root
	d       fs.DirEntry
}

// walk lazily yields the regular files below absRoot that survive the
// exclusion rules. Entries below the root that cannot be read are dropped.
// An error is yielded only when the root itself cannot be read or ctx is
// cancelled, and it is always the last value.
func walk(ctx context.Context, absRoot string, p *Plan, onExcluded func()) iter.Seq2[entry, error] {
	return func(yield func(entry, error) bool) {
		err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == absRoot {
					return err
				}
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if path == absRoot {
				return nil
			}

			rel, relErr := filepath.Rel(absRoot, path)
			if relErr != nil {
				return nil
			}
			relSlash := filepath.ToSlash(rel)

			if d.IsDir() {
				if slices.Contains(p.ExcludeDirs, path) || isExcluded(p.ExcludePatterns, relSlash) {
					onExcluded()
					return filepath.SkipDir
				}
				return nil
			}
			// Symlinks, devices and sockets are never archived.
			if !d.Type().IsRegular() {
				return nil
			}
			if isExcluded(p.ExcludePatterns, relSlash) {
				onExcluded()
				return nil
			}
			if !yield(entry{absPath: path, relPath: relSlash, d: d}, nil) {
				return errStopWalk
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopWalk) {
			yield(entry{}, err)
		}
	}
}

// isExcluded reports whether relPath matches any of the patterns. A pattern
// without a slash also matches the base name at any depth.
func isExcluded(patterns []string, relPath string) bool {
	base := relPath
	if i := strings.LastIndexByte(relPath, '/'); i >= 0 {
		base = relPath[i+1:]
	}
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, _ := doublestar.Match(pattern, base); ok {
				return true
			}
		}
	}
	return false
}

// ValidatePatterns returns an error naming the first invalid pattern.
func ValidatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return &InvalidPatternError{Pattern: pattern}
		}
	}
	return nil
}

// InvalidPatternError reports an exclude pattern doublestar cannot parse.
type InvalidPatternError struct {
	Pattern string
}

func (e *InvalidPatternError) Error() string {
	return "invalid exclude pattern: " + e.Pattern
}

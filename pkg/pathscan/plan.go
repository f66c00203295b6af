package pathscan

import "time"

type Plan struct {
	// ExcludePatterns are doublestar globs matched against the slash-separated
	// path relative to the scan root. Matching directories are not descended.
	ExcludePatterns []string
	// ExcludeDirs are absolute directories that are never descended into.
	ExcludeDirs []string
	// Location defines local midnight for month boundaries. Nil means time.Local.
	Location *time.Location

	// Global Flags
	Silent  bool
	Metrics bool
}

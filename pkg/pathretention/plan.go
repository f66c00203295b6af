package pathretention

import "time"

type Plan struct {
	Enabled bool
	// KeepMonths is the retention window in 30-day months. Zero disables pruning.
	KeepMonths int
	// DeleteWorkers bounds the number of concurrent deletions.
	DeleteWorkers int
	// Location interprets the timestamps encoded in archive names. Nil means time.Local.
	Location *time.Location

	// Global Flags
	DryRun  bool
	Silent  bool
	Metrics bool
}

package patharchive

import (
	"time"

	"github.com/paulschiretz/datpatch/pkg/pathcompression"
)

type Plan struct {
	Format pathcompression.Format
	Level  pathcompression.Level
	// CopyWorkers bounds the number of files staged concurrently.
	CopyWorkers int
	// Location renders the archive timestamp. Nil means time.Local.
	Location *time.Location

	// Global Flags
	DryRun  bool
	Silent  bool
	Metrics bool
}

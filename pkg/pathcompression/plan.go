package pathcompression

type Plan struct {
	Format Format
	Level  Level

	// Global Flags
	DryRun  bool
	Silent  bool
	Metrics bool
}

package preflight

type Plan struct {
	SourceAccessible   bool
	TargetAccessible   bool
	EnsureTargetExists bool
	TargetWritable     bool
	SameDeviceWarning  bool

	// Global Flags
	DryRun bool
	Silent bool
}

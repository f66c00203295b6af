package hook

// Plan configures the shell hooks of one backup run.
type Plan struct {
	Enabled bool

	PreBackupCommands  []string
	PostBackupCommands []string

	// Env is appended to the process environment of every hook as KEY=VALUE.
	Env map[string]string

	// FailFast aborts the stage on the first failing command.
	FailFast bool

	// Global Flags
	DryRun bool
	Silent bool
}

// Package flagparse turns command-line arguments into a command and the set
// of flags the user gave explicitly.
//
// Only flags that were actually set end up in the returned map, so the map
// can be overlaid on a configuration file without clobbering its values with
// flag defaults.
package flagparse

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulschiretz/datpatch/pkg/buildinfo"
)

// cliFlags holds pointers to all possible flags. A nil pointer means the
// flag is not registered for the current command.
type cliFlags struct {
	// Global
	LogLevel *string
	DryRun   *bool
	Metrics  *bool
	Silent   *bool

	From *string
	To   *string

	// Month modes, mutually exclusive.
	Previous *bool
	Current  *bool
	Dynamic  *bool

	Timezone        *string
	KeepMonths      *int
	Format          *string
	Level           *string
	CopyWorkers     *int
	DeleteWorkers   *int
	BufferSizeKB    *int
	Exclude         *string
	PreBackupHooks  *string
	PostBackupHooks *string

	// Schedule specific
	Cron *string

	// Init specific
	Force *bool
}

func registerGlobalFlags(fs *flag.FlagSet, f *cliFlags) {
	f.LogLevel = fs.String("log-level", "info", "Set the logging level: 'debug', 'info', 'notice', 'warn', 'error'.")
	f.DryRun = fs.Bool("dry-run", false, "Show what would be done without making any changes.")
	f.Metrics = fs.Bool("metrics", false, "Log progress and summary metrics.")
	f.Silent = fs.Bool("s", false, "Silent mode: only errors are printed.")
}

func registerTargetFlag(fs *flag.FlagSet, f *cliFlags) {
	f.To = fs.String("to", "", "Destination directory holding the archives. (Required)")
}

func registerModeFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Previous = fs.Bool("p", false, "Back up the previous calendar month.")
	f.Current = fs.Bool("n", false, "Back up the current calendar month.")
	f.Dynamic = fs.Bool("d", false, "Back up the current month, plus the previous one during the first days of a month.")
}

func registerBackupFlags(fs *flag.FlagSet, f *cliFlags) {
	f.From = fs.String("from", "", "Source directory to back up. (Required)")
	registerTargetFlag(fs, f)
	registerModeFlags(fs, f)
	registerSettingsFlags(fs, f)
}

// registerSettingsFlags registers the flags that map onto config file values.
func registerSettingsFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Timezone = fs.String("timezone", "", "IANA timezone defining month boundaries, e.g. 'Europe/Berlin'. Default is the system zone.")
	f.KeepMonths = fs.Int("keep-months", 6, "Delete archives older than this many 30-day months. 0 disables retention.")
	f.Format = fs.String("format", "", "Archive format: 'zip', 'tar.gz', or 'tar.zst'.")
	f.Level = fs.String("level", "", "Compression level: 'default', 'fastest', 'better', 'best'.")
	f.CopyWorkers = fs.Int("copy-workers", 0, "Number of worker goroutines for staging files.")
	f.DeleteWorkers = fs.Int("delete-workers", 0, "Number of worker goroutines for deleting outdated archives.")
	f.BufferSizeKB = fs.Int("buffer-size-kb", 0, "Size of the I/O buffer in kilobytes for copies and compression.")
	f.Exclude = fs.String("exclude", "", "Comma-separated list of glob patterns to exclude, e.g. '**/*.iso,node_modules'.")
	f.PreBackupHooks = fs.String("pre-backup-hooks", "", "Comma-separated list of commands to run before the backup.")
	f.PostBackupHooks = fs.String("post-backup-hooks", "", "Comma-separated list of commands to run after the backup.")
}

func registerPruneFlags(fs *flag.FlagSet, f *cliFlags) {
	registerTargetFlag(fs, f)
	f.KeepMonths = fs.Int("keep-months", 6, "Delete archives older than this many 30-day months.")
	f.DeleteWorkers = fs.Int("delete-workers", 0, "Number of worker goroutines for deleting outdated archives.")
}

func registerInitFlags(fs *flag.FlagSet, f *cliFlags) {
	f.From = fs.String("from", "", "Source directory to back up. (Required)")
	registerTargetFlag(fs, f)
	registerSettingsFlags(fs, f)
	f.Force = fs.Bool("force", false, "Overwrite an existing configuration file.")
}

func registerScheduleFlags(fs *flag.FlagSet, f *cliFlags) {
	registerBackupFlags(fs, f)
	f.Cron = fs.String("cron", "", "Cron expression for scheduled runs, e.g. '0 3 * * *' or '@daily'.")
}

var commandDescriptions = map[Command]string{
	Backup:   "Archive the files changed in the due month(s) and apply retention.",
	Prune:    "Apply the retention policy to the archives in the destination.",
	List:     "List the archives in the destination and the recorded runs.",
	Init:     "Write a configuration file into the destination.",
	Schedule: "Run backups on a cron schedule until interrupted.",
}

// Parse parses args (usually os.Args[1:]). When the first argument is a
// flag the backup command is implied.
func Parse(args []string) (Command, map[string]any, error) {
	return parse(args, os.Stderr)
}

func parse(args []string, out io.Writer) (Command, map[string]any, error) {
	if len(args) == 0 {
		printTopLevelUsage(out)
		return None, nil, nil
	}

	cmdStr := strings.ToLower(args[0])
	switch cmdStr {
	case "help", "-h", "-help", "--help":
		printTopLevelUsage(out)
		return None, nil, nil
	}

	var command Command
	if strings.HasPrefix(cmdStr, "-") {
		command = Backup
	} else {
		var err error
		if command, err = ParseCommand(cmdStr); err != nil {
			return None, nil, err
		}
		args = args[1:]
	}
	if command == Version {
		return Version, nil, nil
	}

	f := &cliFlags{}
	fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
	fs.SetOutput(out)
	registerGlobalFlags(fs, f)
	switch command {
	case Backup:
		registerBackupFlags(fs, f)
	case Prune:
		registerPruneFlags(fs, f)
	case List:
		registerTargetFlag(fs, f)
	case Init:
		registerInitFlags(fs, f)
	case Schedule:
		registerScheduleFlags(fs, f)
	}
	fs.Usage = func() {
		printSubcommandUsage(out, command, commandDescriptions[command], fs)
	}

	if err := fs.Parse(args); err != nil {
		return command, nil, err
	}
	if fs.NArg() > 0 {
		return command, nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	flagMap, err := flagsToMap(fs, f)
	return command, flagMap, err
}

func flagsToMap(fs *flag.FlagSet, f *cliFlags) (map[string]any, error) {
	usedFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { usedFlags[f.Name] = true })

	flagMap := make(map[string]any)

	addIfUsed(flagMap, usedFlags, "log-level", "log-level", f.LogLevel)
	addIfUsed(flagMap, usedFlags, "dry-run", "dry-run", f.DryRun)
	addIfUsed(flagMap, usedFlags, "metrics", "metrics", f.Metrics)
	addIfUsed(flagMap, usedFlags, "s", "silent", f.Silent)
	addIfUsed(flagMap, usedFlags, "from", "from", f.From)
	addIfUsed(flagMap, usedFlags, "to", "to", f.To)
	addIfUsed(flagMap, usedFlags, "timezone", "timezone", f.Timezone)
	addIfUsed(flagMap, usedFlags, "keep-months", "keep-months", f.KeepMonths)
	addIfUsed(flagMap, usedFlags, "format", "format", f.Format)
	addIfUsed(flagMap, usedFlags, "level", "level", f.Level)
	addIfUsed(flagMap, usedFlags, "copy-workers", "copy-workers", f.CopyWorkers)
	addIfUsed(flagMap, usedFlags, "delete-workers", "delete-workers", f.DeleteWorkers)
	addIfUsed(flagMap, usedFlags, "buffer-size-kb", "buffer-size-kb", f.BufferSizeKB)
	addIfUsed(flagMap, usedFlags, "cron", "cron", f.Cron)
	addIfUsed(flagMap, usedFlags, "force", "force", f.Force)

	addParsedIfUsed(flagMap, usedFlags, "exclude", f.Exclude, ParseExcludeList)
	addParsedIfUsed(flagMap, usedFlags, "pre-backup-hooks", f.PreBackupHooks, ParseCmdList)
	addParsedIfUsed(flagMap, usedFlags, "post-backup-hooks", f.PostBackupHooks, ParseCmdList)

	mode, err := modeFromFlags(usedFlags, f)
	if err != nil {
		return nil, err
	}
	if mode != "" {
		flagMap["mode"] = mode
	}
	return flagMap, nil
}

// modeFromFlags maps the mutually exclusive -p, -n and -d flags onto a
// mode name. Setting none of them yields "".
func modeFromFlags(usedFlags map[string]bool, f *cliFlags) (string, error) {
	var modes []string
	for _, m := range []struct {
		flag string
		ptr  *bool
		name string
	}{
		{"p", f.Previous, "previous"},
		{"n", f.Current, "current"},
		{"d", f.Dynamic, "dynamic"},
	} {
		if m.ptr != nil && usedFlags[m.flag] && *m.ptr {
			modes = append(modes, m.name)
		}
	}
	if len(modes) > 1 {
		return "", fmt.Errorf("flags -p, -n and -d are mutually exclusive, got %s", strings.Join(modes, ", "))
	}
	if len(modes) == 1 {
		return modes[0], nil
	}
	return "", nil
}

// addIfUsed stores *ptr under key when the flag name was set.
func addIfUsed[T any](flagMap map[string]any, usedFlags map[string]bool, name, key string, ptr *T) {
	if ptr != nil && usedFlags[name] {
		flagMap[key] = *ptr
	}
}

func addParsedIfUsed(flagMap map[string]any, usedFlags map[string]bool, name string, ptr *string, parser func(string) []string) {
	if ptr != nil && usedFlags[name] {
		flagMap[name] = parser(*ptr)
	}
}

func printTopLevelUsage(w io.Writer) {
	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(w, "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(w, "Calendar-aware incremental monthly backups.\n\n")
	fmt.Fprintf(w, "Usage: %s <command> [flags]\n\n", execName)
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  backup      Run one backup (default when the first argument is a flag)\n")
	fmt.Fprintf(w, "  prune       Apply retention to the destination\n")
	fmt.Fprintf(w, "  list        List archives and recorded runs\n")
	fmt.Fprintf(w, "  init        Write a configuration file into the destination\n")
	fmt.Fprintf(w, "  schedule    Run backups on a cron schedule\n")
	fmt.Fprintf(w, "  version     Print the application version\n")
	fmt.Fprintf(w, "\nExample: %s -from ~/Documents -to /mnt/backup -d\n", execName)
	fmt.Fprintf(w, "Run '%s <command> -help' for more information on a command.\n", execName)
}

func printSubcommandUsage(w io.Writer, command Command, desc string, fs *flag.FlagSet) {
	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(w, "%s(%s)\n\n", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(w, "Usage: %s %s [flags]\n\n", execName, command)
	fmt.Fprintf(w, "%s\n\n", desc)
	fmt.Fprintf(w, "Flags:\n")
	fs.PrintDefaults()
}

// Package hook runs user supplied shell commands before and after a backup.
package hook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"

	"github.com/paulschiretz/datpatch/pkg/hints"
	"github.com/paulschiretz/datpatch/pkg/plog"
)

var ErrNothingToExecute = hints.New("nothing to execute")
var ErrDisabled = hints.New("hook execution is disabled")

// Stage selects which command list of a Plan runs.
type Stage int

const (
	PreBackup Stage = iota
	PostBackup
)

func (s Stage) String() string {
	if s == PostBackup {
		return "post-backup"
	}
	return "pre-backup"
}

// Runner runs the commands of one hook stage.
type Runner interface {
	Run(ctx context.Context, stage Stage, p *Plan) error
}

type Executor struct {
	// commandContext allows mocking os/exec in tests.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// Statically assert that *Executor implements the Runner interface.
var _ Runner = (*Executor)(nil)

// NewExecutor creates an Executor. A nil commandContext uses exec.CommandContext.
func NewExecutor(commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd) *Executor {
	if commandContext == nil {
		commandContext = exec.CommandContext
	}
	return &Executor{commandContext: commandContext}
}

// Run executes the commands of stage in order. A failing command is logged
// and the next one runs, unless the plan asks to fail fast.
func (e *Executor) Run(ctx context.Context, stage Stage, p *Plan) error {
	if !p.Enabled {
		return ErrDisabled
	}
	commands := p.PreBackupCommands
	if stage == PostBackup {
		commands = p.PostBackupCommands
	}
	if len(commands) == 0 {
		return ErrNothingToExecute
	}

	log := plog.Scoped(p.Silent)
	log.Info("Running hook commands", "stage", stage, "count", len(commands))

	env := os.Environ()
	keys := make([]string, 0, len(p.Env))
	for k := range p.Env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		env = append(env, k+"="+p.Env[k])
	}

	for _, command := range commands {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.DryRun {
			log.Notice("[DRY RUN] HOOK", "stage", stage, "command", command)
			continue
		}
		log.Notice("HOOK", "stage", stage, "command", command)

		cmd := e.shellCommand(ctx, command)
		cmd.Env = append(cmd.Env, env...)
		if !p.Silent {
			cmd.Stdout = os.Stdout
		}
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return context.Canceled
			}
			if p.FailFast {
				return fmt.Errorf("%s hook %q failed: %w", stage, command, err)
			}
			log.Warn("Hook command failed", "stage", stage, "command", command, "error", err)
		}
	}
	return nil
}

// Package lockfile guards a destination directory against concurrent backup
// runs.
//
// The lock is a small JSON file created with O_EXCL. While held, a background
// heartbeat refreshes its timestamp; a lock whose heartbeat is older than
// staleAfter is considered abandoned and may be taken over.
package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paulschiretz/datpatch/pkg/plog"
	"github.com/paulschiretz/datpatch/pkg/util"
)

// FileName is the name of the lock file inside the destination.
const FileName = ".~datpatch.lock"

// Holder describes the process owning a lock.
type Holder struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	AppID     string    `json:"appID"`
	Heartbeat time.Time `json:"heartbeat"`
	Token     string    `json:"token"`
}

// ErrLockActive is returned when another live process holds the lock.
type ErrLockActive struct {
	Holder Holder
	Age    time.Duration
}

func (e *ErrLockActive) Error() string {
	return fmt.Sprintf("destination is locked by PID %d on host %q (%s), last heartbeat %s ago",
		e.Holder.PID, e.Holder.Hostname, e.Holder.AppID, e.Age.Truncate(time.Second))
}

// ErrCorrupt marks a lock file that cannot be decoded.
var ErrCorrupt = errors.New("lock file is corrupt")

// errTakeoverLost means a competing process replaced a stale lock first.
var errTakeoverLost = errors.New("lost stale lock takeover")

// Test hooks.
var (
	heartbeatEvery = time.Minute
	staleAfter     = 3 * heartbeatEvery
)

// Lock is a held destination lock.
type Lock struct {
	path   string
	holder Holder
	stop   context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	released bool
}

// Acquire takes the lock in dir for appID. It fails with *ErrLockActive when a
// live holder exists; stale or corrupt locks are taken over.
func Acquire(ctx context.Context, dir, appID string) (*Lock, error) {
	path := filepath.Join(dir, FileName)

	const attempts = 3
	for range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		l, err := create(path, appID)
		if err == nil {
			l.start()
			return l, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("could not create lock file %s: %w", path, err)
		}

		existing, err := read(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Released between our create and read.
			continue
		case errors.Is(err, ErrCorrupt):
			plog.Warn("Lock file is corrupt, taking it over", "path", path, "error", err)
		case err != nil:
			return nil, err
		default:
			age := time.Since(existing.Heartbeat)
			if age < staleAfter {
				return nil, &ErrLockActive{Holder: existing, Age: age}
			}
			plog.Warn("Found stale lock, taking it over", "pid", existing.PID, "host", existing.Hostname, "age", age.Truncate(time.Second))
		}

		l, err = takeover(path, appID)
		if err != nil {
			plog.Debug("Lock takeover failed, retrying", "error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		l.start()
		return l, nil
	}
	return nil, fmt.Errorf("could not acquire lock %s after %d attempts", path, attempts)
}

func newHolder(appID string) (Holder, error) {
	host, err := os.Hostname()
	if err != nil {
		return Holder{}, fmt.Errorf("could not determine hostname: %w", err)
	}
	return Holder{
		PID:       os.Getpid(),
		Hostname:  host,
		AppID:     appID,
		Heartbeat: time.Now().UTC(),
		Token:     uuid.NewString(),
	}, nil
}

func create(path, appID string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, util.UserWritableFilePerms)
	if err != nil {
		return nil, err
	}
	h, err := newHolder(appID)
	if err == nil {
		err = json.NewEncoder(f).Encode(h)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("could not write lock file: %w", err)
	}
	return &Lock{path: path, holder: h}, nil
}

// takeover replaces the lock atomically and reads it back to detect a
// concurrent winner.
func takeover(path, appID string) (*Lock, error) {
	h, err := newHolder(appID)
	if err != nil {
		return nil, err
	}
	if err := write(path, h); err != nil {
		return nil, err
	}
	got, err := read(path)
	if err != nil {
		return nil, err
	}
	if got.Token != h.Token {
		return nil, errTakeoverLost
	}
	return &Lock{path: path, holder: h}, nil
}

func read(path string) (Holder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Holder{}, err
	}
	var h Holder
	if err := json.Unmarshal(data, &h); err != nil {
		return Holder{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return h, nil
}

// write replaces the lock file through a temp file and rename.
func write(path string, h Holder) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp lock file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(h); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write temp lock file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close temp lock file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("could not replace lock file: %w", err)
	}
	return nil
}

func (l *Lock) start() {
	ctx, cancel := context.WithCancel(context.Background())
	l.stop = cancel
	l.done = make(chan struct{})
	go l.heartbeat(ctx)
}

func (l *Lock) heartbeat(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.holder.Heartbeat = time.Now().UTC()
			if err := write(l.path, l.holder); err != nil {
				plog.Warn("Could not refresh lock heartbeat", "path", l.path, "error", err)
			}
		}
	}
}

// Path returns the absolute lock file path.
func (l *Lock) Path() string { return l.path }

// Release stops the heartbeat and removes the lock file. It is safe to call
// more than once.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.released = true
	l.stop()
	<-l.done

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		plog.Warn("Could not remove lock file", "path", l.path, "error", err)
		return
	}
	plog.Debug("Lock released", "path", l.path)
}

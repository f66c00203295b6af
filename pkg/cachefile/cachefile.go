// Package cachefile persists the history of completed backup runs.
//
// The history is a JSON array stored at <destination>/.cache/backupEvents.json.
// The latest EndTime is the cutoff for the next run: only files modified after
// it are archived again.
package cachefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/paulschiretz/datpatch/pkg/backupmonth"
	"github.com/paulschiretz/datpatch/pkg/util"
)

const (
	// DirName is the cache directory inside the destination.
	DirName = ".cache"
	// FileName is the run history file inside DirName.
	FileName = "backupEvents.json"
)

// Sentinel is the last-backup time used when no run has been recorded yet.
// Every file on disk is newer than it.
var Sentinel = time.Unix(0, 0).UTC()

// Record describes one completed backup run.
type Record struct {
	StartTime  time.Time `json:"StartTime"`
	EndTime    time.Time `json:"EndTime"`
	BackupInfo string    `json:"BackupInfo"`
}

// NewRecord builds the record for a run that covered months. Times are stored
// in UTC.
func NewRecord(start, end time.Time, months []backupmonth.Month) Record {
	return Record{
		StartTime:  start.UTC(),
		EndTime:    end.UTC(),
		BackupInfo: "Backup for " + backupmonth.Describe(months),
	}
}

// Path returns the location of the history file for a destination directory.
func Path(destination string) string {
	return filepath.Join(destination, DirName, FileName)
}

// Read loads the run history. A missing file or one containing only
// whitespace yields an empty history. Malformed content is an error, since
// the cutoff for the next run cannot be determined from it.
func Read(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("could not read cache file %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []Record{}, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("could not parse cache file %s: %w. It may be corrupt", path, err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Write replaces the run history with records. The content is written to a
// temporary file next to path and renamed over it, so a crash never leaves a
// truncated history behind.
func Write(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	jsonData, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal cache records: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("could not create cache directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temporary cache file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(jsonData); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write cache file %s: %w", tmpPath, err)
	}
	if err := tmp.Chmod(util.UserWritableFilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("could not set permissions on %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close cache file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("could not replace cache file %s: %w", path, err)
	}
	return nil
}

// Append reads the history at path, adds rec and writes it back.
func Append(path string, rec Record) error {
	records, err := Read(path)
	if err != nil {
		return err
	}
	return Write(path, append(records, rec))
}

// LastBackupTime returns the latest EndTime in records, or Sentinel if
// records is empty.
func LastBackupTime(records []Record) time.Time {
	if len(records) == 0 {
		return Sentinel
	}
	latest := slices.MaxFunc(records, func(a, b Record) int {
		return a.EndTime.Compare(b.EndTime)
	})
	return latest.EndTime
}

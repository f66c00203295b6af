package patharchive

import (
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/paulschiretz/datpatch/pkg/plog"
)

// Metrics defines the interface for collecting and reporting archive statistics.
type Metrics interface {
	AddFilesStaged(n int64)
	AddBytesStaged(n int64)
	AddDirsCreated(n int64)
	AddArchivesCreated(n int64)
	LogSummary(msg string)
	StartProgress(msg string, interval time.Duration)
	StopProgress()
}

// ArchiveMetrics holds the atomic counters for tracking the archive operation's progress.
type ArchiveMetrics struct {
	FilesStaged     atomic.Int64
	BytesStaged     atomic.Int64
	DirsCreated     atomic.Int64
	ArchivesCreated atomic.Int64
	stopChan        chan struct{}
}

func (m *ArchiveMetrics) AddFilesStaged(n int64)     { m.FilesStaged.Add(n) }
func (m *ArchiveMetrics) AddBytesStaged(n int64)     { m.BytesStaged.Add(n) }
func (m *ArchiveMetrics) AddDirsCreated(n int64)     { m.DirsCreated.Add(n) }
func (m *ArchiveMetrics) AddArchivesCreated(n int64) { m.ArchivesCreated.Add(n) }

func (m *ArchiveMetrics) StartProgress(msg string, interval time.Duration) {
	m.stopChan = make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.LogSummary(msg)
			case <-m.stopChan:
				return
			}
		}
	}()
}

func (m *ArchiveMetrics) StopProgress() {
	if m.stopChan != nil {
		close(m.stopChan)
		m.stopChan = nil
	}
}

func (m *ArchiveMetrics) LogSummary(msg string) {
	plog.Info(msg,
		"files_staged", m.FilesStaged.Load(),
		"bytes_staged", humanize.IBytes(uint64(max(m.BytesStaged.Load(), 0))),
		"dirs_created", m.DirsCreated.Load(),
		"archives_created", m.ArchivesCreated.Load(),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no operations.
type NoopMetrics struct{}

func (m *NoopMetrics) AddFilesStaged(n int64)                           {}
func (m *NoopMetrics) AddBytesStaged(n int64)                           {}
func (m *NoopMetrics) AddDirsCreated(n int64)                           {}
func (m *NoopMetrics) AddArchivesCreated(n int64)                       {}
func (m *NoopMetrics) LogSummary(msg string)                            {}
func (m *NoopMetrics) StartProgress(msg string, interval time.Duration) {}
func (m *NoopMetrics) StopProgress()                                    {}

var _ Metrics = (*ArchiveMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)

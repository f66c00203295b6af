package pathretention

import (
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/paulschiretz/datpatch/pkg/plog"
)

// Metrics defines the interface for collecting and reporting retention statistics.
type Metrics interface {
	AddArchivesDeleted(n int64)
	AddArchivesFailed(n int64)
	AddBytesFreed(n int64)
	LogSummary(msg string)
	StartProgress(msg string, interval time.Duration)
	StopProgress()
}

// RetentionMetrics holds the atomic counters for tracking the retention operation's progress.
type RetentionMetrics struct {
	ArchivesDeleted atomic.Int64
	ArchivesFailed  atomic.Int64
	BytesFreed      atomic.Int64

	stopChan chan struct{}
}

func (m *RetentionMetrics) AddArchivesDeleted(n int64) { m.ArchivesDeleted.Add(n) }
func (m *RetentionMetrics) AddArchivesFailed(n int64)  { m.ArchivesFailed.Add(n) }
func (m *RetentionMetrics) AddBytesFreed(n int64)      { m.BytesFreed.Add(n) }

func (m *RetentionMetrics) StartProgress(msg string, interval time.Duration) {
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

func (m *RetentionMetrics) StopProgress() {
	if m.stopChan != nil {
		close(m.stopChan)
		m.stopChan = nil
	}
}

func (m *RetentionMetrics) LogSummary(msg string) {
	plog.Info(msg,
		"archives_deleted", m.ArchivesDeleted.Load(),
		"archives_failed", m.ArchivesFailed.Load(),
		"bytes_freed", humanize.IBytes(uint64(max(m.BytesFreed.Load(), 0))),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no operations.
type NoopMetrics struct{}

func (m *NoopMetrics) AddArchivesDeleted(n int64)                       {}
func (m *NoopMetrics) AddArchivesFailed(n int64)                        {}
func (m *NoopMetrics) AddBytesFreed(n int64)                            {}
func (m *NoopMetrics) LogSummary(msg string)                            {}
func (m *NoopMetrics) StartProgress(msg string, interval time.Duration) {}
func (m *NoopMetrics) StopProgress()                                    {}

var _ Metrics = (*RetentionMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)

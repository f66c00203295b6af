package pathcompression

import (
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/paulschiretz/datpatch/pkg/plog"
)

// Metrics defines the interface for collecting compression statistics.
type Metrics interface {
	AddEntriesProcessed(n int64)
	AddBytesRead(n int64)
	AddBytesWritten(n int64)
	LogSummary(msg string)
	StartProgress(msg string, interval time.Duration)
	StopProgress()
}

// CompressionMetrics holds the atomic counters of a compression run.
type CompressionMetrics struct {
	EntriesProcessed atomic.Int64
	BytesRead        atomic.Int64
	BytesWritten     atomic.Int64
	stopChan         chan struct{}
}

func (m *CompressionMetrics) AddEntriesProcessed(n int64) { m.EntriesProcessed.Add(n) }
func (m *CompressionMetrics) AddBytesRead(n int64)        { m.BytesRead.Add(n) }
func (m *CompressionMetrics) AddBytesWritten(n int64)     { m.BytesWritten.Add(n) }

func (m *CompressionMetrics) StartProgress(msg string, interval time.Duration) {
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

func (m *CompressionMetrics) StopProgress() {
	if m.stopChan != nil {
		close(m.stopChan)
		m.stopChan = nil
	}
}

func (m *CompressionMetrics) LogSummary(msg string) {
	read := m.BytesRead.Load()
	written := m.BytesWritten.Load()
	ratio := 0.0
	if read > 0 {
		ratio = float64(written) / float64(read)
	}
	plog.Info(msg,
		"entries_processed", m.EntriesProcessed.Load(),
		"bytes_read", humanize.IBytes(uint64(max(read, 0))),
		"bytes_written", humanize.IBytes(uint64(max(written, 0))),
		"ratio", humanize.FtoaWithDigits(ratio, 2),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no operations.
type NoopMetrics struct{}

func (m *NoopMetrics) AddEntriesProcessed(n int64)                      {}
func (m *NoopMetrics) AddBytesRead(n int64)                             {}
func (m *NoopMetrics) AddBytesWritten(n int64)                          {}
func (m *NoopMetrics) LogSummary(msg string)                            {}
func (m *NoopMetrics) StartProgress(msg string, interval time.Duration) {}
func (m *NoopMetrics) StopProgress()                                    {}

var _ Metrics = (*CompressionMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)

package pathscan

import (
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/paulschiretz/datpatch/pkg/plog"
)

// Metrics defines the interface for collecting scan statistics.
type Metrics interface {
	AddFilesScanned(n int64)
	AddFilesSelected(n int64)
	AddBytesSelected(n int64)
	AddEntriesExcluded(n int64)
	LogSummary(msg string, args ...any)
}

// ScanMetrics holds the atomic counters of a scan.
type ScanMetrics struct {
	FilesScanned    atomic.Int64
	FilesSelected   atomic.Int64
	BytesSelected   atomic.Int64
	EntriesExcluded atomic.Int64
}

func (m *ScanMetrics) AddFilesScanned(n int64)    { m.FilesScanned.Add(n) }
func (m *ScanMetrics) AddFilesSelected(n int64)   { m.FilesSelected.Add(n) }
func (m *ScanMetrics) AddBytesSelected(n int64)   { m.BytesSelected.Add(n) }
func (m *ScanMetrics) AddEntriesExcluded(n int64) { m.EntriesExcluded.Add(n) }

func (m *ScanMetrics) LogSummary(msg string, args ...any) {
	args = append(args,
		"files_scanned", m.FilesScanned.Load(),
		"files_selected", m.FilesSelected.Load(),
		"bytes_selected", humanize.IBytes(uint64(max(m.BytesSelected.Load(), 0))),
		"entries_excluded", m.EntriesExcluded.Load(),
	)
	plog.Info(msg, args...)
}

// NoopMetrics is an implementation of the Metrics interface that performs no operations.
type NoopMetrics struct{}

func (m *NoopMetrics) AddFilesScanned(n int64)            {}
func (m *NoopMetrics) AddFilesSelected(n int64)           {}
func (m *NoopMetrics) AddBytesSelected(n int64)           {}
func (m *NoopMetrics) AddEntriesExcluded(n int64)         {}
func (m *NoopMetrics) LogSummary(msg string, args ...any) {}

var _ Metrics = (*ScanMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)

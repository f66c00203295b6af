package pathretention

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/paulschiretz/datpatch/pkg/plog"
)

func TestRetentionMetrics_LogSummary(t *testing.T) {
	var logBuf bytes.Buffer
	plog.SetOutput(&logBuf)
	t.Cleanup(func() { plog.SetOutput(os.Stderr) })

	m := &RetentionMetrics{}
	m.AddArchivesDeleted(2)
	m.AddArchivesFailed(1)
	m.AddBytesFreed(5 * 1024 * 1024)
	m.LogSummary("Delete finished")

	output := logBuf.String()
	for _, want := range []string{"archives_deleted=2", "archives_failed=1", `bytes_freed="5.0 MiB"`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected log output to contain %s, got: %s", want, output)
		}
	}
}

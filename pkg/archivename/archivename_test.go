package archivename

import (
	"testing"
	"time"

	"github.com/paulschiretz/datpatch/pkg/backupmonth"
	"github.com/paulschiretz/datpatch/pkg/pathcompression"
)

func TestFormat(t *testing.T) {
	ts := time.Date(2025, time.February, 3, 4, 5, 6, 999, time.UTC)
	got := Format(backupmonth.Month{Year: 2025, Month: time.January}, ts, "zip")
	want := "2025-01_backup_20250203040506.zip"
	if got != want {
		t.Errorf("expected %q, but got %q", want, got)
	}

	if got := Format(backupmonth.Month{Year: 999, Month: time.March}, ts, ".tar.zst"); got != "0999-03_backup_20250203040506.tar.zst" {
		t.Errorf("unexpected name %q", got)
	}
}

func TestParse(t *testing.T) {
	loc := time.FixedZone("test", -5*60*60)
	tests := []struct {
		name   string
		input  string
		wantOK bool
		want   Info
	}{
		{
			name:   "Zip archive",
			input:  "2024-12_backup_20250101083000.zip",
			wantOK: true,
			want: Info{
				Month:     backupmonth.Month{Year: 2024, Month: time.December},
				Timestamp: time.Date(2025, time.January, 1, 8, 30, 0, 0, loc),
				Extension: "zip",
			},
		},
		{
			name:   "Tar gz archive",
			input:  "2025-06_backup_20250630235959.tar.gz",
			wantOK: true,
			want: Info{
				Month:     backupmonth.Month{Year: 2025, Month: time.June},
				Timestamp: time.Date(2025, time.June, 30, 23, 59, 59, 0, loc),
				Extension: "tar.gz",
			},
		},
		{name: "Missing digits", input: "2025-06_backup_2025063023595.zip"},
		{name: "Wrong extension", input: "2025-06_backup_20250630235959.rar"},
		{name: "Trailing garbage", input: "2025-06_backup_20250630235959.zip.bak"},
		{name: "Cache directory", input: ".cache"},
		{name: "Impossible month", input: "2025-13_backup_20250630235959.zip"},
		{name: "Impossible timestamp", input: "2025-06_backup_20251340235959.zip"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Parse(tc.input, loc)
			if ok != tc.wantOK {
				t.Fatalf("expected ok=%v, but got %v", tc.wantOK, ok)
			}
			if !ok {
				return
			}
			if got.Month != tc.want.Month || got.Extension != tc.want.Extension || !got.Timestamp.Equal(tc.want.Timestamp) {
				t.Errorf("expected %+v, but got %+v", tc.want, got)
			}
		})
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	loc := time.Local
	ts := time.Date(2025, time.March, 9, 1, 2, 3, 0, loc)
	m := backupmonth.Month{Year: 2025, Month: time.February}

	for _, f := range pathcompression.Formats() {
		ext := f.Extension()
		name := Format(m, ts, ext)
		info, ok := Parse(name, loc)
		if !ok {
			t.Fatalf("expected %q to parse", name)
		}
		if info.Month != m || !info.Timestamp.Equal(ts) || info.Extension != ext {
			t.Errorf("round trip of %q produced %+v", name, info)
		}
	}
}

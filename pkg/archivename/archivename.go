// Package archivename owns the file-name encoding of backup archives.
//
// An archive is named YYYY-MM_backup_YYYYMMDDHHMMSS.<ext>, where YYYY-MM is
// the backed-up month and the 14 digits are the local creation time. The
// retention pruner recovers the creation time from the name, so Format and
// Parse must stay in lockstep.
package archivename

import (
	"regexp"
	"strings"
	"time"

	"github.com/paulschiretz/datpatch/pkg/backupmonth"
	"github.com/paulschiretz/datpatch/pkg/pathcompression"
)

const (
	timestampLayout = "20060102150405"
	infix           = "_backup_"
)

var namePattern = regexp.MustCompile(`^(\d{4})-(\d{2})` + infix + `(\d{14})\.(` + extensionAlternation() + `)$`)

// extensionAlternation matches the extension of every compression format.
func extensionAlternation() string {
	formats := pathcompression.Formats()
	exts := make([]string, len(formats))
	for i, f := range formats {
		exts[i] = regexp.QuoteMeta(f.Extension())
	}
	return strings.Join(exts, "|")
}

// Info is the metadata recovered from an archive name.
type Info struct {
	Month     backupmonth.Month
	Timestamp time.Time
	Extension string
}

// Format builds the archive name for month m created at ts. The timestamp is
// rendered in ts's location at second precision.
func Format(m backupmonth.Month, ts time.Time, ext string) string {
	return m.String() + infix + ts.Format(timestampLayout) + "." + strings.TrimPrefix(ext, ".")
}

// Parse recovers the metadata from an archive name. The timestamp is
// interpreted in loc. ok is false for names that are not archives.
func Parse(name string, loc *time.Location) (info Info, ok bool) {
	match := namePattern.FindStringSubmatch(name)
	if match == nil {
		return Info{}, false
	}

	month, err := backupmonth.ParseMonth(match[1] + "-" + match[2])
	if err != nil {
		return Info{}, false
	}
	ts, err := time.ParseInLocation(timestampLayout, match[3], loc)
	if err != nil {
		return Info{}, false
	}
	return Info{Month: month, Timestamp: ts, Extension: match[4]}, true
}

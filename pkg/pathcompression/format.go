package pathcompression

import (
	"fmt"
	"maps"
	"slices"

	"github.com/paulschiretz/datpatch/pkg/util"
)

// Format represents the archive format for compression.
type Format string

const (
	Zip    Format = "zip"
	TarGz  Format = "tar.gz"
	TarZst Format = "tar.zst"
)

var formatToString = map[Format]string{
	Zip:    "zip",
	TarGz:  "tar.gz",
	TarZst: "tar.zst",
}

var stringToFormat map[string]Format

func init() {
	stringToFormat = util.InvertMap(formatToString)
}

// Formats returns every supported format, sorted by name.
func Formats() []Format {
	return slices.Sorted(maps.Keys(formatToString))
}

func (f Format) String() string {
	if str, ok := formatToString[f]; ok {
		return str
	}
	return fmt.Sprintf("unknown_compression_format(%s)", string(f))
}

// Extension returns the file extension of archives in this format, without the dot.
func (f Format) Extension() string {
	return f.String()
}

// ParseFormat parses a format name. An empty string selects Zip.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return Zip, nil
	}
	if format, ok := stringToFormat[s]; ok {
		return format, nil
	}
	return "", fmt.Errorf("invalid compression format: %q. Must be 'zip', 'tar.gz', or 'tar.zst'", s)
}

// MarshalText implements encoding.TextMarshaler for the JSON and YAML encoders.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	format, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = format
	return nil
}

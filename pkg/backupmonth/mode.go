package backupmonth

import (
	"fmt"

	"github.com/paulschiretz/datpatch/pkg/util"
)

// Mode decides which calendar months a run covers.
type Mode int

const (
	// PreviousMonth backs up the month before today's month.
	PreviousMonth Mode = iota
	// CurrentMonth backs up today's month.
	CurrentMonth
	// Dynamic backs up the current month, plus the previous month during the
	// first days after a month boundary.
	Dynamic
)

var modeToString = map[Mode]string{
	PreviousMonth: "previous",
	CurrentMonth:  "current",
	Dynamic:       "dynamic",
}

var stringToMode map[string]Mode

func init() {
	stringToMode = util.InvertMap(modeToString)
}

func (m Mode) String() string {
	if str, ok := modeToString[m]; ok {
		return str
	}
	return fmt.Sprintf("unknown_mode(%d)", m)
}

// ParseMode parses "previous", "current" or "dynamic".
func ParseMode(s string) (Mode, error) {
	if m, ok := stringToMode[s]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("invalid backup mode: %q. Must be 'previous', 'current', or 'dynamic'", s)
}

// MarshalText implements encoding.TextMarshaler, used by both the JSON and YAML encoders.
func (m Mode) MarshalText() ([]byte, error) {
	if _, ok := modeToString[m]; !ok {
		return nil, fmt.Errorf("cannot marshal %s", m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

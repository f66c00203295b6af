package flagparse

import (
	"errors"
	"flag"
	"io"
	"slices"
	"strings"
	"testing"
)

func TestParseExcludeList(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{"Simple List", "a,b,c", []string{"a", "b", "c"}},
		{"List with Spaces", " a , b, c ", []string{"a", "b", "c"}},
		{"Empty String", "", nil},
		{"Quoted Item with Comma", "'a,b',c", []string{"a,b", "c"}},
		{"Double Quoted Item with Spaces", "\"item with spaces\",b", []string{"item with spaces", "b"}},
		{"Nested Quotes", "\"it's a test\",d", []string{"it's a test", "d"}},
		{"Windows Path with Backslashes", `C:\Users\Test,D:\Data`, []string{`C:\Users\Test`, `D:\Data`}},
		{"Doublestar Patterns", "**/*.iso,node_modules/**", []string{"**/*.iso", "node_modules/**"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseExcludeList(tc.input); !slices.Equal(got, tc.expected) {
				t.Errorf("expected %v, but got %v", tc.expected, got)
			}
		})
	}
}

func TestParseCmdList(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{"Simple List", "cmd1,cmd2", []string{"cmd1", "cmd2"}},
		{"Quoted Item with Comma", "'echo a,b',c", []string{"'echo a,b'", "c"}},
		{"Mixed Single and Double Quotes", "'a b',\"c,d\",e", []string{"'a b'", "\"c,d\"", "e"}},
		{"Escaped Comma Outside Quotes", "a\\,b,c", []string{"a\\,b", "c"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseCmdList(tc.input); !slices.Equal(got, tc.expected) {
				t.Errorf("expected %v, but got %v", tc.expected, got)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantCommand Command
		wantFlags   map[string]any
		wantErr     string
	}{
		{
			name:        "Flags imply backup",
			args:        []string{"-from", "/src", "-to", "/dst", "-d"},
			wantCommand: Backup,
			wantFlags:   map[string]any{"from": "/src", "to": "/dst", "mode": "dynamic"},
		},
		{
			name:        "Explicit backup with settings",
			args:        []string{"backup", "-from", "/src", "-to", "/dst", "-p", "-s", "-keep-months", "3", "-exclude", "a,b"},
			wantCommand: Backup,
			wantFlags: map[string]any{
				"from": "/src", "to": "/dst", "mode": "previous", "silent": true,
				"keep-months": 3, "exclude": []string{"a", "b"},
			},
		},
		{
			name:        "Mode flags are exclusive",
			args:        []string{"-from", "/src", "-to", "/dst", "-p", "-n"},
			wantCommand: Backup,
			wantErr:     "mutually exclusive",
		},
		{
			name:        "Prune",
			args:        []string{"prune", "-to", "/dst", "-keep-months", "2"},
			wantCommand: Prune,
			wantFlags:   map[string]any{"to": "/dst", "keep-months": 2},
		},
		{
			name:        "Prune rejects backup flags",
			args:        []string{"prune", "-from", "/src"},
			wantCommand: Prune,
			wantErr:     "flag provided but not defined",
		},
		{
			name:        "List",
			args:        []string{"list", "-to", "/dst"},
			wantCommand: List,
			wantFlags:   map[string]any{"to": "/dst"},
		},
		{
			name:        "Schedule",
			args:        []string{"schedule", "-to", "/dst", "-cron", "@daily", "-n"},
			wantCommand: Schedule,
			wantFlags:   map[string]any{"to": "/dst", "cron": "@daily", "mode": "current"},
		},
		{
			name:        "Init with force",
			args:        []string{"init", "-from", "/src", "-to", "/dst", "-force"},
			wantCommand: Init,
			wantFlags:   map[string]any{"from": "/src", "to": "/dst", "force": true},
		},
		{
			name:        "Version",
			args:        []string{"version"},
			wantCommand: Version,
		},
		{
			name:        "Unknown command",
			args:        []string{"restore"},
			wantCommand: None,
			wantErr:     "invalid command",
		},
		{
			name:        "Stray arguments",
			args:        []string{"backup", "-to", "/dst", "extra"},
			wantCommand: Backup,
			wantErr:     "unexpected arguments",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			command, flags, err := parse(tc.args, io.Discard)
			if command != tc.wantCommand {
				t.Errorf("expected command %s, got %s", tc.wantCommand, command)
			}
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(flags) != len(tc.wantFlags) {
				t.Fatalf("expected flags %v, got %v", tc.wantFlags, flags)
			}
			for k, want := range tc.wantFlags {
				got, ok := flags[k]
				if !ok {
					t.Errorf("missing flag %q", k)
					continue
				}
				if ws, isSlice := want.([]string); isSlice {
					if !slices.Equal(got.([]string), ws) {
						t.Errorf("flag %q: expected %v, got %v", k, ws, got)
					}
				} else if got != want {
					t.Errorf("flag %q: expected %v, got %v", k, want, got)
				}
			}
		})
	}
}

func TestParse_Help(t *testing.T) {
	command, flags, err := parse(nil, io.Discard)
	if command != None || flags != nil || err != nil {
		t.Errorf("expected usage only, got %s %v %v", command, flags, err)
	}
	if _, _, err := parse([]string{"backup", "-help"}, io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("expected flag.ErrHelp, got %v", err)
	}
}

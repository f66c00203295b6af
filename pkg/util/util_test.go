package util

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestWithUserWritePermission(t *testing.T) {
	testCases := []struct {
		name     string
		input    os.FileMode
		expected os.FileMode
	}{
		{
			name:     "Read-only permission",
			input:    0444, // r--r--r--
			expected: 0644, // rw-r--r--
		},
		{
			name:     "Already has write permission",
			input:    0755,
			expected: 0755,
		},
		{
			name:     "No permissions",
			input:    0000,
			expected: 0200,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := WithUserWritePermission(tc.input)
			if result != tc.expected {
				t.Errorf("expected permission %o, but got %o", tc.expected, result)
			}
		})
	}
}

func TestIsSubPath(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "data", "src")
	testCases := []struct {
		name     string
		child    string
		expected bool
	}{
		{"Same path", root, true},
		{"Direct child", filepath.Join(root, "backups"), true},
		{"Nested child", filepath.Join(root, "a", "b"), true},
		{"Sibling with common prefix", root + "2", false},
		{"Parent", filepath.Dir(root), false},
		{"Dot-dot named child", filepath.Join(root, "..data"), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsSubPath(root, tc.child); got != tc.expected {
				t.Errorf("expected IsSubPath(%q, %q) = %v, but got %v", root, tc.child, tc.expected, got)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}

	got, err := ExpandPath("~/backups")
	if err != nil {
		t.Fatalf("ExpandPath failed: %v", err)
	}
	if want := filepath.Join(home, "backups"); got != want {
		t.Errorf("expected %q, but got %q", want, got)
	}

	got, err = ExpandPath("/abs/path")
	if err != nil || got != "/abs/path" {
		t.Errorf("expected path without tilde to be unchanged, got %q (err %v)", got, err)
	}
}

func TestMergeAndDeduplicate(t *testing.T) {
	got := MergeAndDeduplicate([]string{"b", "a"}, []string{"a", "c"}, nil)
	want := []string{"a", "b", "c"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, but got %v", want, got)
	}
}

func TestInvertMap(t *testing.T) {
	inv := InvertMap(map[int]string{1: "one", 2: "two"})
	if inv["one"] != 1 || inv["two"] != 2 || len(inv) != 2 {
		t.Errorf("unexpected inverted map: %v", inv)
	}
}

package flagparse

import "strings"

// ParseCmdList splits a comma-separated list of shell commands. Quotes and
// backslash escapes are kept for the shell to interpret.
func ParseCmdList(s string) []string {
	return splitList(s, true, true)
}

// ParseExcludeList splits a comma-separated list of patterns. Quotes only
// group items and are removed; backslashes are literal.
func ParseExcludeList(s string) []string {
	return splitList(s, false, false)
}

// splitList splits s on commas outside single or double quotes and trims
// every item. Empty items are dropped.
func splitList(s string, keepQuotes, handleEscapes bool) []string {
	var (
		list    []string
		current strings.Builder
		quote   rune
		escaped bool
	)
	flush := func() {
		if item := strings.TrimSpace(current.String()); item != "" {
			list = append(list, item)
		}
		current.Reset()
	}

	for _, r := range s {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && handleEscapes:
			escaped = true
			current.WriteRune(r)
		case (r == '\'' || r == '"') && (quote == 0 || quote == r):
			if quote == 0 {
				quote = r
			} else {
				quote = 0
			}
			if keepQuotes {
				current.WriteRune(r)
			}
		case r == ',' && quote == 0:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return list
}

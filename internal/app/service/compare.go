package service

import "strings"

// NormalizeOutput applies the comparison policy. Trailing whitespace on each
// line and trailing newlines never matter; CRLF is read as LF. Lenient
// comparison also ignores case and collapses internal whitespace.
func NormalizeOutput(s string, lenient bool) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, " \t\r\f\v")
		if lenient {
			line = strings.Join(strings.Fields(line), " ")
		}
		lines[i] = line
	}
	out := strings.TrimRight(strings.Join(lines, "\n"), "\n")
	if lenient {
		out = strings.ToLower(out)
	}
	return out
}

func OutputsMatch(expected, actual string, lenient bool) bool {
	return NormalizeOutput(expected, lenient) == NormalizeOutput(actual, lenient)
}

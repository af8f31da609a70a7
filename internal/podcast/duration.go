package podcast

import "strings"

// DurationSeconds converts an itunes:duration value to seconds. "H:M:S" and
// "M:S" are read right to left in powers of 60; anything else is a plain
// second count. Unreadable groups count as zero.
func DurationSeconds(raw string) int {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, ":") {
		return leadingInt(raw)
	}

	parts := strings.Split(raw, ":")
	total, unit := 0, 1
	for i := len(parts) - 1; i >= 0; i-- {
		total += leadingInt(parts[i]) * unit
		unit *= 60
	}
	return total
}

// leadingInt reads an optionally signed run of digits at the start of s,
// ignoring whatever follows ("12.5" is 12).
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		return -n
	}
	return n
}

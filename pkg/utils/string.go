package utils

// Truncate shortens s to at most n runes for log-safe echoing of user
// queries. An ellipsis marks the cut.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}

	runes := []rune(s)

	if len(runes) <= n {
		return s
	}

	return string(runes[:n]) + "..."
}

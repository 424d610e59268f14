package utils

import "strconv"

// ToInt coerces a tool argument to an int. JSON numbers arrive as float64,
// but some hosts pass numeric parameters as strings.
func ToInt(v any, fallback int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return fallback
}

// ToFloat coerces a tool argument to a float64, with the same leniency as
// ToInt.
func ToFloat(v any, fallback float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return fallback
}

package nutrition

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	nonNumeric   = regexp.MustCompile(`[^0-9.\-]`)
	leadingFloat = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)`)
)

// NormalizeNutrient converts a display value such as "12g", "250 kcal" or "10-15g" into a
// non-negative whole number. Ranges yield the floor of their midpoint. Anything that cannot
// be read yields 0.
func NormalizeNutrient(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return clampFloor(n)
	case float32:
		return clampFloor(float64(n))
	case int:
		return clampFloor(float64(n))
	case int64:
		return clampFloor(float64(n))
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return clampFloor(f)
	case string:
		return normalizeString(n)
	default:
		return 0
	}
}

func normalizeString(s string) float64 {
	clean := nonNumeric.ReplaceAllString(s, "")
	if clean == "" {
		return 0
	}

	if strings.Contains(clean, "-") {
		parts := strings.Split(clean, "-")
		if len(parts) != 2 {
			return 0
		}
		lo, ok := parseLeadingFloat(parts[0])
		if !ok {
			return 0
		}
		hi, ok := parseLeadingFloat(parts[1])
		if !ok {
			return 0
		}
		return clampFloor((lo + hi) / 2)
	}

	f, ok := parseLeadingFloat(clean)
	if !ok {
		return 0
	}
	return clampFloor(f)
}

// parseLeadingFloat reads the longest numeric prefix, so "12.5.1" reads as 12.5.
func parseLeadingFloat(s string) (float64, bool) {
	m := leadingFloat.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func clampFloor(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	return math.Floor(f)
}


package utils

import (
	"math"
	"strconv"
	"strings"
)

// ParsePrice parses a price that may use either European ("4.136,00") or
// US ("4,136.00") separators. When both separators appear, the one that
// comes last is the decimal point. A lone comma is a decimal point, so
// several commas without a dot ("1,234,567") are rejected as ambiguous.
func ParsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// DigitsOnly parses s after removing every '.' and ','. "40,1234" and
// "40.1234" both become 401234.
func DigitsOnly(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(".", "", ",", "").Replace(s)
	if s == "" || s == "-" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

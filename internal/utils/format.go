
package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatNumber renders v with Turkish grouping: "." for thousands and ","
// for decimals, e.g. 4136.5 with 2 decimals -> "4.136,50".
func FormatNumber(v float64, decimals int) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	pow := math.Pow10(decimals)
	v = math.Round(v*pow) / pow
	s := fmt.Sprintf("%.*f", decimals, v)
	parts := strings.SplitN(s, ".", 2)

	var b strings.Builder
	b.Grow(len(s) + len(s)/3 + 2)
	b.WriteString(sign)
	b.WriteString(groupThousands(parts[0], '.'))
	if len(parts) == 2 {
		b.WriteByte(',')
		b.WriteString(parts[1])
	}
	return b.String()
}

func groupThousands(intPart string, sep byte) string {
	if len(intPart) <= 3 {
		return intPart
	}
	var b strings.Builder
	b.Grow(len(intPart) + len(intPart)/3)
	rem := len(intPart) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(intPart[:rem])
	for i := rem; i < len(intPart); i += 3 {
		b.WriteByte(sep)
		b.WriteString(intPart[i : i+3])
	}
	return b.String()
}

// SignedPercent renders p as "+1,25%" or "-0,40%".
func SignedPercent(p float64) string {
	out := FormatNumber(p, 2) + "%"
	if p > 0 {
		out = "+" + out
	}
	return out
}

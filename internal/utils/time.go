
package utils

import (
	"time"

	_ "time/tzdata"
)

var istanbul = mustLoad("Europe/Istanbul")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Turkey has been on fixed UTC+3 since 2016.
		return time.FixedZone("TRT", 3*60*60)
	}
	return loc
}

// IstanbulLoc returns the Europe/Istanbul location.
func IstanbulLoc() *time.Location {
	return istanbul
}

func NowIstanbul() time.Time {
	return time.Now().In(istanbul)
}

// DateTime returns a string like "17.10.2026 16:40" in Istanbul time.
func DateTime(t time.Time) string {
	return t.In(istanbul).Format("02.01.2006 15:04")
}

// TimeHHMM formats time-of-day in HH:MM (24h).
func TimeHHMM(t time.Time) string {
	return t.In(istanbul).Format("15:04")
}

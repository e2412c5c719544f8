// Package util provides common formatting helpers used across the player.
package util

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
)

// Slug lower-cases s, drops everything but letters, digits, underscores and
// whitespace, and joins the remaining words with dashes.
func Slug(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsSpace(r):
			pendingDash = true
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// FormatHMS formats a duration as [h:]mm:ss, truncating fractions of a second.
// Negative durations get a leading minus.
func FormatHMS(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%s%d:%02d:%02d", sign, hours, minutes, seconds)
	}
	return fmt.Sprintf("%s%02d:%02d", sign, minutes, seconds)
}

// DecimalToDMS formats decimal degrees as D°M'S" with truncated minutes and seconds.
func DecimalToDMS(value float64) string {
	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	}
	degrees := math.Trunc(value)
	subMin := (value - degrees) * 60
	minutes := math.Trunc(subMin)
	seconds := math.Trunc((subMin - minutes) * 60)
	return fmt.Sprintf("%s%d°%d'%d\"", sign, int(degrees), int(minutes), int(seconds))
}

// Race clock labels.
const (
	LabelTimeToStart = "Time to start"
	LabelTimeOfRace  = "Time of the race"
	LabelTime        = "Time"
)

// RaceClock is the caption shown above the map for an instant.
type RaceClock struct {
	Label     string `json:"label"`
	Value     string `json:"value"`
	BeforeRun bool   `json:"beforeStart"`
}

func (c RaceClock) String() string {
	return c.Label + ": " + c.Value
}

// NewRaceClock counts down to raceStart, then counts up from it. Without a
// race start the wall clock time of the instant is shown.
func NewRaceClock(instant, raceStart time.Time) RaceClock {
	if raceStart.IsZero() {
		return RaceClock{Label: LabelTime, Value: instant.Format(time.DateTime)}
	}
	diff := instant.Sub(raceStart)
	if diff < 0 {
		return RaceClock{Label: LabelTimeToStart, Value: FormatHMS(-diff), BeforeRun: true}
	}
	return RaceClock{Label: LabelTimeOfRace, Value: FormatHMS(diff)}
}

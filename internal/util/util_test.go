package util

import (
	"testing"
	"time"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"words", "Hello World!", "hello-world"},
		{"underscore kept", "Python_3.9", "python_39"},
		{"trimmed", "   Leading and trailing spaces   ", "leading-and-trailing-spaces"},
		{"special characters", "Special #$%&* characters!", "special-characters"},
		{"runs of spaces", "Multiple   Spaces", "multiple-spaces"},
		{"tabs and newlines", "a\tb\nc", "a-b-c"},
		{"unicode letters", "Kieler Woche Ärger", "kieler-woche-ärger"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Slug(tt.input)
			if result != tt.expected {
				t.Errorf("Slug(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatHMS(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{time.Hour + 30*time.Minute + 15*time.Second, "1:30:15"},
		{45*time.Minute + 5*time.Second, "45:05"},
		{59 * time.Second, "00:59"},
		{2 * time.Hour, "2:00:00"},
		{0, "00:00"},
		{30 * time.Hour, "30:00:00"},
		{23*time.Hour + 59*time.Minute + 59*time.Second, "23:59:59"},
		{1500 * time.Millisecond, "00:01"},
		{-90 * time.Second, "-01:30"},
	}

	for _, tt := range tests {
		result := FormatHMS(tt.input)
		if result != tt.expected {
			t.Errorf("FormatHMS(%v) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestDecimalToDMS(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{54.5, "54°30'0\""},
		{10.1228, "10°7'22\""},
		{0, "0°0'0\""},
		{-0.5, "-0°30'0\""},
	}

	for _, tt := range tests {
		result := DecimalToDMS(tt.input)
		if result != tt.expected {
			t.Errorf("DecimalToDMS(%v) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestNewRaceClock(t *testing.T) {
	start := time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC)

	before := NewRaceClock(start.Add(-90*time.Second), start)
	if before.Label != LabelTimeToStart || before.Value != "01:30" || !before.BeforeRun {
		t.Errorf("unexpected clock before start: %+v", before)
	}

	after := NewRaceClock(start.Add(time.Hour+5*time.Second), start)
	if after.String() != "Time of the race: 1:00:05" || after.BeforeRun {
		t.Errorf("unexpected clock after start: %+v", after)
	}

	atStart := NewRaceClock(start, start)
	if atStart.Label != LabelTimeOfRace || atStart.Value != "00:00" {
		t.Errorf("unexpected clock at start: %+v", atStart)
	}

	noRace := NewRaceClock(start, time.Time{})
	if noRace.String() != "Time: 2024-06-15 14:00:00" {
		t.Errorf("unexpected clock without race start: %q", noRace.String())
	}
}

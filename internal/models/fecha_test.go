package models

import (
	"testing"
	"time"
)

func TestFormatFechaZeroPadding(t *testing.T) {
	ts := time.Date(2025, 3, 7, 4, 5, 6, 0, time.Local)
	got := FormatFecha(ts)
	want := "2025-03-07 04:05:06"
	if got != want {
		t.Fatalf("FormatFecha() = %q, want %q", got, want)
	}
}

func TestValidFecha(t *testing.T) {
	valid := []string{
		"2025-08-18 01:00:00",
		"1999-12-31 23:59:59",
	}
	for _, s := range valid {
		if !ValidFecha(s) {
			t.Errorf("ValidFecha(%q) = false, want true", s)
		}
	}

	invalid := []string{
		"",
		"2025-08-18",
		"2025-08-18T01:00:00",
		"2025/08/18 01:00:00",
		"2025-08-18 01:00:0x",
		"2025-08-18  1:00:00",
	}
	for _, s := range invalid {
		if ValidFecha(s) {
			t.Errorf("ValidFecha(%q) = true, want false", s)
		}
	}
}

func TestDisplayFecha(t *testing.T) {
	got := DisplayFecha("2025-08-18 01:00:00")
	want := "18/08/2025, 01:00:00"
	if got != want {
		t.Fatalf("DisplayFecha() = %q, want %q", got, want)
	}

	// Malformed input passes through untouched.
	if got := DisplayFecha("garbage"); got != "garbage" {
		t.Fatalf("DisplayFecha(garbage) = %q", got)
	}
}

package models

import "time"

// FechaLayout is the canonical timestamp form used end-to-end:
// capture, wire, storage and window comparison. The zero-padded fixed
// width makes lexicographic order equal to chronological order, so the
// value is never parsed back into a timezone-bearing type.
const FechaLayout = "2006-01-02 15:04:05"

// FormatFecha renders t in the canonical form using its own location.
func FormatFecha(t time.Time) string {
	return t.Format(FechaLayout)
}

// ValidFecha reports whether s has the canonical shape. It checks
// characters positionally instead of parsing, so the value never passes
// through a timezone-bearing type.
func ValidFecha(s string) bool {
	if len(s) != len(FechaLayout) {
		return false
	}
	for i := range s {
		switch i {
		case 4, 7:
			if s[i] != '-' {
				return false
			}
		case 10:
			if s[i] != ' ' {
				return false
			}
		case 13, 16:
			if s[i] != ':' {
				return false
			}
		default:
			if s[i] < '0' || s[i] > '9' {
				return false
			}
		}
	}
	return true
}

// DisplayFecha converts canonical text into the admin display form
// "DD/MM/YYYY, HH:MM:SS" by slicing, never by date arithmetic.
// Malformed input is returned untouched.
func DisplayFecha(fecha string) string {
	if len(fecha) != len(FechaLayout) {
		return fecha
	}
	return fecha[8:10] + "/" + fecha[5:7] + "/" + fecha[0:4] + ", " + fecha[11:]
}

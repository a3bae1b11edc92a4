package domain_test

import (
	"testing"

	"tasktimer/internal/domain"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name    string
		seconds int64
		want    string
	}{
		{"zero", 0, "00:00:00"},
		{"seconds only", 40, "00:00:40"},
		{"minutes and seconds", 125, "00:02:05"},
		{"hours", 3725, "01:02:05"},
		{"past a day", 90000, "25:00:00"},
		{"negative", -5, "00:00:00"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := domain.FormatDuration(tc.seconds); got != tc.want {
				t.Errorf("FormatDuration(%d) = %q; want %q", tc.seconds, got, tc.want)
			}
		})
	}
}

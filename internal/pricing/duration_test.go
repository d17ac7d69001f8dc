package pricing

import (
	"testing"
	"time"
)

func window(start string, d time.Duration) Window {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		panic(err)
	}
	return Window{Start: s, End: s.Add(d)}
}

func TestNormalizeDurationHourly(t *testing.T) {
	cases := []struct {
		name string
		d    time.Duration
		want int64
	}{
		{"one minute rounds up", time.Minute, 1},
		{"exact hour", time.Hour, 1},
		{"hour and a second", time.Hour + time.Second, 2},
		{"two days", 48 * time.Hour, 48},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeDuration(window("2025-01-01T09:00:00Z", tc.d), UnitHourly, DurationOptions{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d units, got %d", tc.want, got)
			}
		})
	}
}

func TestNormalizeDurationDailyRolling(t *testing.T) {
	got, err := NormalizeDuration(window("2025-01-01T10:00:00Z", 25*time.Hour), UnitDaily, DurationOptions{DayCount: DayCountRolling})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected 2 rolling days, got %d", got)
	}
}

func TestNormalizeDurationDailyCalendar(t *testing.T) {
	cases := []struct {
		name  string
		start string
		d     time.Duration
		want  int64
	}{
		{"same day", "2025-01-01T09:00:00Z", 4 * time.Hour, 1},
		{"overnight touches two dates", "2025-01-01T22:00:00Z", 4 * time.Hour, 2},
		{"two full calendar days", "2025-01-01T00:00:00Z", 48 * time.Hour, 2},
		{"ends exactly at midnight", "2025-01-01T10:00:00Z", 14 * time.Hour, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeDuration(window(tc.start, tc.d), UnitDaily, DurationOptions{DayCount: DayCountCalendar})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d calendar days, got %d", tc.want, got)
			}
		})
	}
}

func TestNormalizeDurationWeeklyAndCustom(t *testing.T) {
	got, err := NormalizeDuration(window("2025-01-01T00:00:00Z", 8*24*time.Hour), UnitWeekly, DurationOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected 2 weeks, got %d", got)
	}

	got, err = NormalizeDuration(window("2025-01-01T00:00:00Z", 5*24*time.Hour), UnitCustom, DurationOptions{PeriodDays: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected 2 custom periods, got %d", got)
	}
}

func TestNormalizeDurationMonotonic(t *testing.T) {
	prev := int64(0)
	for d := time.Hour; d <= 14*24*time.Hour; d += 7 * time.Hour {
		got, err := NormalizeDuration(window("2025-03-01T08:30:00Z", d), UnitDaily, DurationOptions{DayCount: DayCountCalendar})
		if err != nil {
			t.Fatalf("unexpected error at %v: %v", d, err)
		}
		if got < 1 {
			t.Fatalf("duration units must be >= 1, got %d", got)
		}
		if got < prev {
			t.Fatalf("duration units decreased from %d to %d at %v", prev, got, d)
		}
		prev = got
	}
}

func TestNormalizeDurationErrors(t *testing.T) {
	now := time.Now()
	if _, err := NormalizeDuration(Window{Start: now, End: now}, UnitHourly, DurationOptions{}); err != ErrInvalidWindow {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if _, err := NormalizeDuration(Window{Start: now, End: now.Add(-time.Hour)}, UnitHourly, DurationOptions{}); err != ErrInvalidWindow {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if _, err := NormalizeDuration(window("2025-01-01T00:00:00Z", time.Hour), UnitKind("monthly"), DurationOptions{}); err != ErrUnsupportedUnit {
		t.Fatalf("expected ErrUnsupportedUnit, got %v", err)
	}
	if _, err := NormalizeDuration(window("2025-01-01T00:00:00Z", time.Hour), UnitCustom, DurationOptions{}); err != ErrUnsupportedUnit {
		t.Fatalf("expected ErrUnsupportedUnit for missing period, got %v", err)
	}
}

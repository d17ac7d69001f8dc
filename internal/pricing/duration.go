package pricing

import (
	"errors"
	"time"
)

// UnitKind enumerates the billing units a rate table may configure.
type UnitKind string

const (
	UnitHourly UnitKind = "hourly"
	UnitDaily  UnitKind = "daily"
	UnitWeekly UnitKind = "weekly"
	UnitCustom UnitKind = "custom"
)

// Valid reports whether the unit kind is one of the supported values.
func (u UnitKind) Valid() bool {
	switch u {
	case UnitHourly, UnitDaily, UnitWeekly, UnitCustom:
		return true
	}
	return false
}

// DayCountPolicy selects how daily rentals are counted. The policy is fixed
// per tenant configuration, never inferred from the request.
type DayCountPolicy string

const (
	// DayCountRolling bills ceil((end-start)/24h).
	DayCountRolling DayCountPolicy = "rolling"
	// DayCountCalendar bills the number of distinct calendar dates the
	// window touches in the tenant's location, at least 1.
	DayCountCalendar DayCountPolicy = "calendar"
)

// Valid reports whether the policy is a supported value.
func (p DayCountPolicy) Valid() bool {
	return p == DayCountRolling || p == DayCountCalendar
}

// ErrInvalidWindow is returned when a rental window has end <= start.
var ErrInvalidWindow = errors.New("invalid rental window")

// ErrUnsupportedUnit is returned when the requested billing unit is unknown
// or cannot be normalized for the product.
var ErrUnsupportedUnit = errors.New("unsupported billing unit")

// Window is a half-open rental interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate ensures the window is non-empty.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() || !w.End.After(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// Overlaps reports whether two half-open windows share any instant. Windows
// that merely touch at a boundary do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// DurationOptions carries tenant-level duration counting configuration.
type DurationOptions struct {
	DayCount   DayCountPolicy
	Location   *time.Location
	PeriodDays int
}

// NormalizeDuration converts a window and billing unit into a billable unit
// count. The result is always >= 1 for a valid window and non-decreasing as
// the window grows.
func NormalizeDuration(w Window, unit UnitKind, opts DurationOptions) (int64, error) {
	if err := w.Validate(); err != nil {
		return 0, err
	}
	switch unit {
	case UnitHourly:
		return ceilUnits(w.Duration(), time.Hour), nil
	case UnitDaily:
		if opts.DayCount == DayCountCalendar {
			return calendarDays(w, opts.Location), nil
		}
		return ceilUnits(w.Duration(), 24*time.Hour), nil
	case UnitWeekly:
		return ceilUnits(w.Duration(), 7*24*time.Hour), nil
	case UnitCustom:
		if opts.PeriodDays < 1 {
			return 0, ErrUnsupportedUnit
		}
		return ceilUnits(w.Duration(), time.Duration(opts.PeriodDays)*24*time.Hour), nil
	}
	return 0, ErrUnsupportedUnit
}

func ceilUnits(d, step time.Duration) int64 {
	units := int64((d + step - 1) / step)
	if units < 1 {
		units = 1
	}
	return units
}

// calendarDays counts the distinct local dates touched by the half-open
// window. A window ending exactly at midnight does not touch the end date.
func calendarDays(w Window, loc *time.Location) int64 {
	if loc == nil {
		loc = time.UTC
	}
	start := w.Start.In(loc)
	last := w.End.Add(-time.Nanosecond).In(loc)
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	lastDay := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, loc)
	// Rounding absorbs DST offsets so a day is always a day.
	days := int64(lastDay.Sub(startDay).Hours()/24 + 0.5)
	return days + 1
}

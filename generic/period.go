package generic

import "fmt"

// =============================================================================
// DATE RANGE - Inclusive span of calendar days
// =============================================================================

// DateRange is the inclusive span [Start, End]. A leave request covers one,
// and so does a team calendar query.
type DateRange struct {
	Start Date
	End   Date
}

// Year returns the calendar year as a range.
func Year(year int) DateRange {
	return DateRange{Start: StartOfYear(year), End: EndOfYear(year)}
}

// Validate checks that both ends are set, no earlier than MinYear, and
// Start <= End.
func (r DateRange) Validate() error {
	if r.Start.IsZero() {
		return &ValidationError{Field: "from_date", Message: "is required"}
	}
	if r.End.IsZero() {
		return &ValidationError{Field: "to_date", Message: "is required"}
	}
	if r.Start.Year() < MinYear {
		return &ValidationError{Field: "from_date", Message: fmt.Sprintf("must be in %d or later", MinYear)}
	}
	if r.Start.After(r.End) {
		return &ValidationError{Field: "from_date", Message: "must be on or before to_date"}
	}
	return nil
}

// Contains returns true if d is within [Start, End].
func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

// Overlaps returns true if the two ranges share at least one day.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(r.End)
}

// Intersect returns the shared days of two ranges; ok is false when disjoint.
func (r DateRange) Intersect(other DateRange) (DateRange, bool) {
	if !r.Overlaps(other) {
		return DateRange{}, false
	}
	out := r
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out, true
}

// Len is the number of calendar days in the range, both ends included.
func (r DateRange) Len() int {
	if r.Start.After(r.End) {
		return 0
	}
	return DaysBetween(r.Start, r.End) + 1
}

// Days returns every day in the range.
func (r DateRange) Days() []Date {
	days := make([]Date, 0, r.Len())
	for current := r.Start; current.BeforeOrEqual(r.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}

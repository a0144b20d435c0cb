package models

import "time"

// Period is a half-open UTC interval [Start, End) over which orders are
// aggregated.
type Period struct {
	RangeType string    `json:"range_type,omitempty"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// Duration is End minus Start.
func (p Period) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Previous returns the comparison period: the immediately preceding
// interval of identical duration, non-overlapping with p.
func (p Period) Previous() Period {
	d := p.Duration()
	return Period{RangeType: p.RangeType, Start: p.Start.Add(-d), End: p.Start}
}

// Contains reports whether t falls inside the half-open interval.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

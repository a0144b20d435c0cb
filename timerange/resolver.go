// Package timerange resolves loosely-specified, human-phrased time ranges
// into exact UTC [start, end) intervals. Specs are parsed into a tagged
// variant before any date arithmetic so the arithmetic code never inspects
// strings. All day boundaries are computed in the caller's local timezone
// and converted to UTC as the final step.
package timerange

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"shoppulse/logger"
	"shoppulse/models"
)

// DefaultRange is the documented fallback applied when a range spec cannot
// be parsed. Users phrase ranges sloppily; degrading beats failing the
// whole query.
const DefaultRange = "last_7_days"

// tick is the smallest interval the resolver distinguishes. Fully-elapsed
// days and months end at 23:59:59.999999 local time.
const tick = time.Microsecond

// Kind tags a parsed range variant.
type Kind int

const (
	KindToday Kind = iota
	KindYesterday
	KindThisMonth
	KindLastMonth
	KindLastN
	KindSpecificMonth
	KindSpecificDate
	KindCustom
)

// Unit is the step of a dynamic last_<N>_<unit> range.
type Unit int

const (
	UnitDay Unit = iota
	UnitWeek
	UnitMonth
	UnitYear
)

var unitNames = map[string]Unit{
	"day": UnitDay, "days": UnitDay,
	"week": UnitWeek, "weeks": UnitWeek,
	"month": UnitMonth, "months": UnitMonth,
	"year": UnitYear, "years": UnitYear,
}

// Range is a parsed range spec. Count/Unit are set for KindLastN,
// Year/Month/Day for the specific variants and Start/End for KindCustom.
type Range struct {
	Kind  Kind
	Count int
	Unit  Unit
	Year  int
	Month time.Month
	Day   int
	Start time.Time
	End   time.Time
}

// Custom builds an explicit range carrying caller-supplied instants.
func Custom(start, end time.Time) Range {
	return Range{Kind: KindCustom, Start: start, End: end}
}

// Parse converts a textual range spec into its tagged variant. A "custom"
// spec cannot be parsed from text alone (it carries no instants); callers
// construct it via Custom.
func Parse(spec string) (Range, error) {
	switch spec {
	case "today":
		return Range{Kind: KindToday}, nil
	case "yesterday":
		return Range{Kind: KindYesterday}, nil
	case "this_month":
		return Range{Kind: KindThisMonth}, nil
	case "last_month":
		return Range{Kind: KindLastMonth}, nil
	}

	parts := strings.Split(spec, "_")
	switch {
	case len(parts) == 3 && parts[0] == "last":
		count, err := strconv.Atoi(parts[1])
		if err != nil || count <= 0 {
			return Range{}, fmt.Errorf("%w: bad count in range spec %q", models.ErrInvalidInput, spec)
		}
		unit, ok := unitNames[parts[2]]
		if !ok {
			return Range{}, fmt.Errorf("%w: bad unit in range spec %q", models.ErrInvalidInput, spec)
		}
		return Range{Kind: KindLastN, Count: count, Unit: unit}, nil

	case len(parts) == 4 && parts[0] == "specific" && parts[1] == "month":
		year, errY := strconv.Atoi(parts[2])
		month, errM := strconv.Atoi(parts[3])
		if errY != nil || errM != nil || year < 1 || month < 1 || month > 12 {
			return Range{}, fmt.Errorf("%w: bad month spec %q", models.ErrInvalidInput, spec)
		}
		return Range{Kind: KindSpecificMonth, Year: year, Month: time.Month(month)}, nil

	case len(parts) == 5 && parts[0] == "specific" && parts[1] == "date":
		year, errY := strconv.Atoi(parts[2])
		month, errM := strconv.Atoi(parts[3])
		day, errD := strconv.Atoi(parts[4])
		if errY != nil || errM != nil || errD != nil || year < 1 || month < 1 || month > 12 || day < 1 || day > 31 {
			return Range{}, fmt.Errorf("%w: bad date spec %q", models.ErrInvalidInput, spec)
		}
		return Range{Kind: KindSpecificDate, Year: year, Month: time.Month(month), Day: day}, nil
	}

	return Range{}, fmt.Errorf("%w: unknown range spec %q", models.ErrInvalidInput, spec)
}

// Resolve turns a textual spec and timezone name into a UTC period.
// Malformed specs and unknown timezones degrade to documented defaults
// (last_7_days, UTC) with a logged warning instead of failing the query.
func Resolve(spec, timezone string, now time.Time) models.Period {
	log := logger.GetLogger().WithComponent("timerange")

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		log.WithFields(logger.Fields{"timezone": timezone}).Warn("unknown timezone, falling back to UTC")
		loc = time.UTC
	}

	r, err := Parse(spec)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{"spec": spec, "fallback": DefaultRange}).Warn("unparseable range spec, degrading to default")
		spec = DefaultRange
		r, _ = Parse(DefaultRange)
	}

	start, end := r.Resolve(loc, now)
	return models.Period{RangeType: spec, Start: start, End: end}
}

// Resolve computes the UTC bounds of the parsed range. Local-time
// arithmetic happens first; the UTC conversion is the last step.
func (r Range) Resolve(loc *time.Location, now time.Time) (time.Time, time.Time) {
	local := now.In(loc)
	var start, end time.Time

	switch r.Kind {
	case KindToday:
		start = startOfDay(local)
		end = local

	case KindYesterday:
		y := local.AddDate(0, 0, -1)
		start = startOfDay(y)
		end = endOfDay(y)

	case KindThisMonth:
		start = startOfMonth(local)
		end = local

	case KindLastMonth:
		thisMonth := startOfMonth(local)
		start = thisMonth.AddDate(0, -1, 0)
		// First instant of the current month minus one tick, so the bound
		// is correct for any month length.
		end = thisMonth.Add(-tick)

	case KindLastN:
		switch r.Unit {
		case UnitDay:
			start = startOfDay(local.AddDate(0, 0, -r.Count))
		case UnitWeek:
			start = startOfDay(local.AddDate(0, 0, -7*r.Count))
		case UnitMonth:
			start = startOfDay(local.AddDate(0, -r.Count, 0))
		case UnitYear:
			start = startOfDay(local.AddDate(-r.Count, 0, 0))
		}
		end = local

	case KindSpecificMonth:
		start = time.Date(r.Year, r.Month, 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 1, 0).Add(-tick)

	case KindSpecificDate:
		start = time.Date(r.Year, r.Month, r.Day, 0, 0, 0, 0, loc)
		end = endOfDay(start)

	case KindCustom:
		start = r.Start.In(loc)
		end = r.End.In(loc)
		// A "through this date" request parsed to exactly local midnight
		// has a zero-width tail; extend it to cover the whole day. Only
		// explicit bounds get this treatment: the relative variants end at
		// now, and extending those past it would include the future.
		if end.Equal(startOfDay(end)) {
			end = endOfDay(end)
		}
	}

	return start.UTC(), end.UTC()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-tick)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

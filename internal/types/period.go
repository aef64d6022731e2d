package types

import "time"

// Period is the contiguous span of calendar dates a run is responsible for
// covering. Start and End are inclusive and Length always equals the number
// of days between them.
type Period struct {
	Start  time.Time
	End    time.Time
	Length int
}

// Day normalizes a timestamp to its calendar date in UTC. One canonical
// location keeps dates comparable with == regardless of where they came
// from: periods are built from the local wall clock while upstream dates
// parse in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewPeriod builds the trailing period of the given length ending at the
// calendar date of "today". Length is assumed pre-validated by the caller.
func NewPeriod(today time.Time, length int) Period {
	end := Day(today)

	return Period{
		Start:  end.AddDate(0, 0, -(length - 1)),
		End:    end,
		Length: length,
	}
}

// Dates returns the strictly increasing, contiguous sequence of calendar
// dates in the period, ending at Period.End.
func (p Period) Dates() []time.Time {
	dates := make([]time.Time, 0, p.Length)
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}

	return dates
}

// Contains reports whether the given date falls within the period. The
// comparison is by calendar date, not instant.
func (p Period) Contains(date time.Time) bool {
	d := Day(date)

	return !d.Before(Day(p.Start)) && !d.After(Day(p.End))
}

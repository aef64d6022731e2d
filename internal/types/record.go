package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// Field names a numeric value carried by a record. The set of fields is
// fixed per source schema, never inferred from the payload.
type Field string

const (
	FieldRate   Field = "rate"
	FieldOpen   Field = "open"
	FieldHigh   Field = "high"
	FieldLow    Field = "low"
	FieldClose  Field = "close"
	FieldVolume Field = "volume"
)

// RawPoint is a source-delivered set of values for a specific date, prior to
// reconciliation and validation. Fetchers return zero or more per period.
type RawPoint struct {
	Date   time.Time
	Values map[Field]optional.Option[float64]
}

// Record is the reconciled unit of output data: exactly one per date in the
// period. A record whose values are all absent represents a non-trading day
// and is not an error by itself.
type Record struct {
	Date   time.Time
	Values map[Field]optional.Option[float64]
	Source string
}

// Value returns the record's value for the given field, or None when the
// field is absent.
func (r Record) Value(field Field) optional.Option[float64] {
	if v, ok := r.Values[field]; ok {
		return v
	}

	return optional.None[float64]()
}

// RunMetadata describes one extraction run and is attached to the artifact.
// It must always agree with the period and source used to produce the rows.
type RunMetadata struct {
	GeneratedAt time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time
	Source      string
}

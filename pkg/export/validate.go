package export

import (
	"fmt"
	"math"
	"time"

	"github.com/kvdm-lab/finexport/internal/types"
	"github.com/kvdm-lab/finexport/pkg/errors"
)

// ValidationReason is the stable reason code attached to a failed validation.
type ValidationReason string

const (
	ReasonLengthMismatch  ValidationReason = "length_mismatch"
	ReasonDateOutOfPeriod ValidationReason = "date_out_of_period"
	ReasonDuplicateDate   ValidationReason = "duplicate_date"
	ReasonOutOfOrderDate  ValidationReason = "out_of_order_date"
	ReasonNonFiniteValue  ValidationReason = "non_finite_value"
	ReasonDomainRule      ValidationReason = "domain_rule_violation"
	ReasonWrongSource     ValidationReason = "wrong_source_tag"
)

// ValidationOutcome is the run-level verdict. On failure it carries the first
// offending date, field, and reason code.
type ValidationOutcome struct {
	Valid   bool
	Date    time.Time
	Field   types.Field
	Reason  ValidationReason
	Message string
}

func fail(date time.Time, field types.Field, reason ValidationReason, format string, args ...any) ValidationOutcome {
	return ValidationOutcome{
		Valid:   false,
		Date:    date,
		Field:   field,
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}

// Err converts a failed outcome into a record-validation error. Returns nil
// for a passing outcome.
func (o ValidationOutcome) Err() error {
	if o.Valid {
		return nil
	}

	return errors.Newf(errors.ErrCodeRecordValidation, "%s (%s)", o.Message, o.Reason)
}

// ValidateRecords confirms the reconciled sequence is safe to persist.
//
// Per record: the date must lie within the period, be unique, and follow the
// previous record's date; every present value must be finite and satisfy the
// schema's domain rule for its field. Absent values are always valid and are
// never coerced to zero. The sequence length must equal the period length.
// Validation stops at the first offending record.
func ValidateRecords(records []types.Record, period types.Period, schema types.Schema) ValidationOutcome {
	if len(records) != period.Length {
		return fail(period.Start, "", ReasonLengthMismatch,
			"expected %d records, got %d", period.Length, len(records))
	}

	seen := make(map[time.Time]struct{}, len(records))

	var prev time.Time

	for i, record := range records {
		day := types.Day(record.Date)

		if !period.Contains(day) {
			return fail(day, "", ReasonDateOutOfPeriod,
				"date %s is outside the period [%s, %s]",
				day.Format(time.DateOnly), period.Start.Format(time.DateOnly), period.End.Format(time.DateOnly))
		}

		if _, dup := seen[day]; dup {
			return fail(day, "", ReasonDuplicateDate, "duplicate date %s", day.Format(time.DateOnly))
		}

		seen[day] = struct{}{}

		if i > 0 && !day.After(prev) {
			return fail(day, "", ReasonOutOfOrderDate,
				"date %s does not follow %s", day.Format(time.DateOnly), prev.Format(time.DateOnly))
		}

		prev = day

		if record.Source != schema.Source {
			return fail(day, "", ReasonWrongSource,
				"record tagged %q, expected %q", record.Source, schema.Source)
		}

		for _, field := range schema.Fields {
			value := record.Value(field.Name)
			if value.IsNone() {
				continue
			}

			v := value.Unwrap()

			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fail(day, field.Name, ReasonNonFiniteValue,
					"non-finite %s value for %s", field.Name, day.Format(time.DateOnly))
			}

			switch field.Rule {
			case types.RuleStrictlyPositive:
				if v <= 0 {
					return fail(day, field.Name, ReasonDomainRule,
						"invalid %s value %v for %s: must be strictly positive", field.Name, v, day.Format(time.DateOnly))
				}
			case types.RuleNonNegative:
				if v < 0 {
					return fail(day, field.Name, ReasonDomainRule,
						"invalid %s value %v for %s: must be non-negative", field.Name, v, day.Format(time.DateOnly))
				}
			}
		}
	}

	return ValidationOutcome{Valid: true}
}

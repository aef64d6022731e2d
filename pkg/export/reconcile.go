package export

import (
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/kvdm-lab/finexport/internal/logger"
	"github.com/kvdm-lab/finexport/internal/types"
	"github.com/kvdm-lab/finexport/pkg/errors"
)

// Reconcile merges the sparse raw points delivered by a source onto the dense
// date sequence of the period, producing exactly one record per calendar day.
//
// Dates outside the period are dropped. Duplicate dates are resolved
// last-wins and logged as a data-quality warning, never treated as fatal.
// A date with no raw point yields a record whose values are all explicitly
// absent.
func Reconcile(period types.Period, schema types.Schema, points []types.RawPoint, log *logger.Logger) ([]types.Record, error) {
	byDate := make(map[time.Time]types.RawPoint, len(points))

	for _, p := range points {
		day := types.Day(p.Date)

		if !period.Contains(day) {
			log.Warn("ignoring raw point outside period",
				zap.Time("date", day),
				zap.Time("period_start", period.Start),
				zap.Time("period_end", period.End),
			)

			continue
		}

		if _, seen := byDate[day]; seen {
			log.Warn("duplicate raw point for date, keeping last",
				zap.Time("date", day),
				zap.String("source", schema.Source),
			)
		}

		byDate[day] = p
	}

	records := make([]types.Record, 0, period.Length)

	for _, day := range period.Dates() {
		values := make(map[types.Field]optional.Option[float64], len(schema.Fields))

		point, ok := byDate[day]
		for _, field := range schema.Fields {
			if !ok {
				values[field.Name] = optional.None[float64]()

				continue
			}

			if v, present := point.Values[field.Name]; present {
				values[field.Name] = v
			} else {
				values[field.Name] = optional.None[float64]()
			}
		}

		records = append(records, types.Record{
			Date:   day,
			Values: values,
			Source: schema.Source,
		})
	}

	// One record per period date is a hard invariant.
	if len(records) != period.Length {
		return nil, errors.Newf(errors.ErrCodeRecordValidation,
			"reconciled %d records for a %d-day period", len(records), period.Length)
	}

	return records, nil
}

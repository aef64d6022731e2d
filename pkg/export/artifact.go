package export

import (
	"fmt"
	"time"

	"github.com/kvdm-lab/finexport/internal/types"
)

// TimestampResolution controls the granularity of the generation timestamp
// encoded in artifact names. Two runs over the same period collide only when
// their generation instants are equal at this resolution; the resolution is
// an explicit configuration choice.
type TimestampResolution string

const (
	ResolutionSeconds      TimestampResolution = "seconds"
	ResolutionMilliseconds TimestampResolution = "milliseconds"
)

// ArtifactName derives the deterministic file name for one run:
// {prefix}_{start}_to_{end}_{reportDate}_{timestamp}. The extension is
// appended by the caller. Pure function, no I/O.
func ArtifactName(prefix string, period types.Period, generatedAt time.Time, resolution TimestampResolution) string {
	timestamp := generatedAt.Format("150405")
	if resolution == ResolutionMilliseconds {
		timestamp = fmt.Sprintf("%s%03d", timestamp, generatedAt.Nanosecond()/int(time.Millisecond))
	}

	return fmt.Sprintf("%s_%s_to_%s_%s_%s",
		prefix,
		period.Start.Format(time.DateOnly),
		period.End.Format(time.DateOnly),
		types.Day(generatedAt).Format(time.DateOnly),
		timestamp,
	)
}

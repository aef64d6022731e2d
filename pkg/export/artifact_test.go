package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/kvdm-lab/finexport/internal/types"
)

type ArtifactNameTestSuite struct {
	suite.Suite
}

func TestArtifactNameSuite(t *testing.T) {
	suite.Run(t, new(ArtifactNameTestSuite))
}

func (suite *ArtifactNameTestSuite) TestSecondsResolution() {
	generatedAt := time.Date(2025, 12, 11, 14, 30, 7, 0, time.UTC)
	period := types.NewPeriod(generatedAt, 7)

	name := ArtifactName("rub_usd", period, generatedAt, ResolutionSeconds)
	suite.Equal("rub_usd_2025-12-05_to_2025-12-11_2025-12-11_143007", name)
}

func (suite *ArtifactNameTestSuite) TestMillisecondsResolution() {
	generatedAt := time.Date(2025, 12, 11, 14, 30, 7, 42*int(time.Millisecond), time.UTC)
	period := types.NewPeriod(generatedAt, 7)

	name := ArtifactName("lqdt_tqtf", period, generatedAt, ResolutionMilliseconds)
	suite.Equal("lqdt_tqtf_2025-12-05_to_2025-12-11_2025-12-11_143007042", name)
}

func (suite *ArtifactNameTestSuite) TestDistinctNamesOneSecondApart() {
	first := time.Date(2025, 12, 11, 14, 30, 7, 0, time.UTC)
	second := first.Add(time.Second)
	period := types.NewPeriod(first, 30)

	suite.NotEqual(
		ArtifactName("rub_usd", period, first, ResolutionSeconds),
		ArtifactName("rub_usd", period, second, ResolutionSeconds),
	)
}

func (suite *ArtifactNameTestSuite) TestSameInstantSameName() {
	generatedAt := time.Date(2025, 12, 11, 9, 5, 3, 0, time.UTC)
	period := types.NewPeriod(generatedAt, 1)

	tests := []struct {
		name       string
		resolution TimestampResolution
	}{
		{name: "seconds", resolution: ResolutionSeconds},
		{name: "milliseconds", resolution: ResolutionMilliseconds},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			first := ArtifactName("rub_usd", period, generatedAt, tc.resolution)
			second := ArtifactName("rub_usd", period, generatedAt, tc.resolution)
			suite.Equal(first, second)
		})
	}
}

func (suite *ArtifactNameTestSuite) TestReportDateFollowsGenerationInstant() {
	// A run started just after midnight reports the new day even when the
	// period still ends on that same day.
	generatedAt := time.Date(2025, 12, 12, 0, 0, 1, 0, time.UTC)
	period := types.NewPeriod(generatedAt, 7)

	name := ArtifactName("rub_usd", period, generatedAt, ResolutionSeconds)
	suite.Equal("rub_usd_2025-12-06_to_2025-12-12_2025-12-12_000001", name)
}

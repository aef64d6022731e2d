package export

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kvdm-lab/finexport/internal/logger"
	"github.com/kvdm-lab/finexport/internal/types"
	"github.com/kvdm-lab/finexport/mocks"
	"github.com/kvdm-lab/finexport/pkg/errors"
)

type RunnerTestSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	source  *mocks.MockSource
	factory *mocks.MockFactory
	writer  *mocks.MockArtifactWriter
	clock   *FixedClock
	log     *logger.Logger
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerTestSuite))
}

func (suite *RunnerTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.source = mocks.NewMockSource(suite.ctrl)
	suite.factory = mocks.NewMockFactory(suite.ctrl)
	suite.writer = mocks.NewMockArtifactWriter(suite.ctrl)
	suite.clock = &FixedClock{Instant: time.Date(2025, 12, 11, 14, 30, 7, 0, time.UTC)}
	suite.log = logger.NewNopLogger()
}

func (suite *RunnerTestSuite) newRunner(outputDir string) *Runner {
	runner, err := NewRunner(RunnerConfig{
		OutputDir:  outputDir,
		Resolution: ResolutionSeconds,
	}, suite.source, suite.factory, suite.clock, suite.log, nil)
	suite.Require().NoError(err)

	return runner
}

func (suite *RunnerTestSuite) TestSuccessfulRun() {
	outputDir := suite.T().TempDir()
	runner := suite.newRunner(outputDir)

	wantPath := filepath.Join(outputDir, "rub_usd_2025-12-05_to_2025-12-11_2025-12-11_143007.parquet")

	suite.source.EXPECT().Schema().Return(types.CBRRates)
	suite.source.EXPECT().Fetch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, period types.Period) ([]types.RawPoint, error) {
			suite.Equal(date(2025, 12, 5), period.Start)
			suite.Equal(date(2025, 12, 11), period.End)

			return []types.RawPoint{
				ratePoint(date(2025, 12, 8), 92.5),
				ratePoint(date(2025, 12, 9), 93.1),
			}, nil
		})

	suite.factory.EXPECT().Extension().Return(".parquet")
	suite.factory.EXPECT().New(wantPath, types.CBRRates).Return(suite.writer)
	suite.writer.EXPECT().Initialize().Return(nil)
	suite.writer.EXPECT().WriteMetadata(gomock.Any()).
		Do(func(meta types.RunMetadata) {
			suite.Equal("CBR", meta.Source)
			suite.Equal(date(2025, 12, 5), meta.PeriodStart)
			suite.Equal(date(2025, 12, 11), meta.PeriodEnd)
		}).Return(nil)
	suite.writer.EXPECT().WriteRecord(gomock.Any()).Return(nil).Times(7)
	suite.writer.EXPECT().Finalize().Return(wantPath, nil)
	suite.writer.EXPECT().Close().Return(nil)

	result, err := runner.Run(context.Background(), 7)
	suite.Require().NoError(err)
	suite.Equal(StateDone, result.Status)
	suite.Equal(StateDone, runner.State())
	suite.Equal(wantPath, result.ArtifactPath)
	suite.Equal(7, result.RecordCount)
	suite.Equal(suite.clock.Instant, result.Metadata.GeneratedAt)
}

func (suite *RunnerTestSuite) TestProgressReportedPerRecord() {
	outputDir := suite.T().TempDir()

	var calls []float64

	runner, err := NewRunner(RunnerConfig{
		OutputDir:  outputDir,
		Resolution: ResolutionSeconds,
	}, suite.source, suite.factory, suite.clock, suite.log,
		func(current, total float64, message string) {
			suite.Equal(3.0, total)
			calls = append(calls, current)
		})
	suite.Require().NoError(err)

	suite.source.EXPECT().Schema().Return(types.CBRRates)
	suite.source.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, nil)
	suite.factory.EXPECT().Extension().Return(".parquet")
	suite.factory.EXPECT().New(gomock.Any(), gomock.Any()).Return(suite.writer)
	suite.writer.EXPECT().Initialize().Return(nil)
	suite.writer.EXPECT().WriteMetadata(gomock.Any()).Return(nil)
	suite.writer.EXPECT().WriteRecord(gomock.Any()).Return(nil).Times(3)
	suite.writer.EXPECT().Finalize().Return("out.parquet", nil)
	suite.writer.EXPECT().Close().Return(nil)

	_, err = runner.Run(context.Background(), 3)
	suite.Require().NoError(err)
	suite.Equal([]float64{1, 2, 3}, calls)
}

func (suite *RunnerTestSuite) TestPeriodLengthOutOfRange() {
	runner := suite.newRunner(suite.T().TempDir())

	tests := []struct {
		name string
		days int
	}{
		{name: "zero", days: 0},
		{name: "negative", days: -3},
		{name: "above maximum", days: 366},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			// No Fetch expectation: rejection happens before any I/O.
			result, err := runner.Run(context.Background(), tc.days)
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeInvalidPeriodLength))
			suite.Equal(StateFailed, result.Status)
			suite.Equal(errors.ExitInputValidation, errors.ExitStatus(err))
		})
	}
}

func (suite *RunnerTestSuite) TestFetchTimeoutProducesNoArtifact() {
	runner := suite.newRunner(suite.T().TempDir())

	suite.source.EXPECT().Schema().Return(types.CBRRates)
	suite.source.EXPECT().Fetch(gomock.Any(), gomock.Any()).
		Return(nil, errors.New(errors.ErrCodeTransportTimeout, "request timed out"))

	// No factory expectation: the writing stage is never reached.
	result, err := runner.Run(context.Background(), 7)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeTransportTimeout))
	suite.Equal(StateFailed, result.Status)
	suite.Equal(StateFailed, runner.State())
	suite.Equal(errors.ExitTransportTimeout, errors.ExitStatus(err))
}

func (suite *RunnerTestSuite) TestValidationFailureProducesNoArtifact() {
	runner := suite.newRunner(suite.T().TempDir())

	suite.source.EXPECT().Schema().Return(types.CBRRates)
	suite.source.EXPECT().Fetch(gomock.Any(), gomock.Any()).
		Return([]types.RawPoint{ratePoint(date(2025, 12, 10), -1.0)}, nil)

	result, err := runner.Run(context.Background(), 7)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeRecordValidation))
	suite.Equal(StateFailed, result.Status)
	suite.Equal(errors.ExitValidationFailure, errors.ExitStatus(err))
}

func (suite *RunnerTestSuite) TestWriterFailureClosesWriter() {
	runner := suite.newRunner(suite.T().TempDir())

	suite.source.EXPECT().Schema().Return(types.CBRRates)
	suite.source.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, nil)
	suite.factory.EXPECT().Extension().Return(".parquet")
	suite.factory.EXPECT().New(gomock.Any(), gomock.Any()).Return(suite.writer)
	suite.writer.EXPECT().Initialize().Return(nil)
	suite.writer.EXPECT().WriteMetadata(gomock.Any()).Return(nil)
	suite.writer.EXPECT().WriteRecord(gomock.Any()).
		Return(errors.New(errors.ErrCodePersistenceFailed, "disk full"))
	suite.writer.EXPECT().Close().Return(nil)

	result, err := runner.Run(context.Background(), 7)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodePersistenceFailed))
	suite.Equal(StateFailed, result.Status)
	suite.Equal(errors.ExitPersistenceFailure, errors.ExitStatus(err))
}

func (suite *RunnerTestSuite) TestFailedRunLogsNoErrorLine() {
	// Error reporting on failure belongs to the caller; the runner itself
	// must not add a second diagnostic above debug level.
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{Logger: zap.New(core)}

	runner, err := NewRunner(RunnerConfig{
		OutputDir:  suite.T().TempDir(),
		Resolution: ResolutionSeconds,
	}, suite.source, suite.factory, suite.clock, log, nil)
	suite.Require().NoError(err)

	suite.source.EXPECT().Schema().Return(types.CBRRates)
	suite.source.EXPECT().Fetch(gomock.Any(), gomock.Any()).
		Return(nil, errors.New(errors.ErrCodeTransportTimeout, "request timed out"))

	_, err = runner.Run(context.Background(), 7)
	suite.Require().Error(err)

	suite.Empty(logs.FilterLevelExact(zapcore.ErrorLevel).All())
	suite.Len(logs.FilterMessage("run failed").All(), 1)
	suite.Equal(zapcore.DebugLevel, logs.FilterMessage("run failed").All()[0].Level)
}

func (suite *RunnerTestSuite) TestInvalidConfiguration() {
	_, err := NewRunner(RunnerConfig{
		OutputDir:  "",
		Resolution: ResolutionSeconds,
	}, suite.source, suite.factory, suite.clock, suite.log, nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = NewRunner(RunnerConfig{
		OutputDir:  suite.T().TempDir(),
		Resolution: "nanoseconds",
	}, suite.source, suite.factory, suite.clock, suite.log, nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

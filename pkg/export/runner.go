package export

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kvdm-lab/finexport/internal/logger"
	"github.com/kvdm-lab/finexport/internal/types"
	"github.com/kvdm-lab/finexport/pkg/errors"
	"github.com/kvdm-lab/finexport/pkg/export/source"
	"github.com/kvdm-lab/finexport/pkg/export/writer"
)

// State names the runner's position in the pipeline. Transitions are
// strictly sequential; StateFailed is terminal and reachable from any
// non-idle state.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateReconciling State = "reconciling"
	StateValidating  State = "validating"
	StateWriting     State = "writing"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// OnProgress reports row-level progress during the writing stage.
type OnProgress = func(current float64, total float64, message string)

// RunnerConfig holds the per-run configuration.
type RunnerConfig struct {
	OutputDir  string              `validate:"required"`
	Resolution TimestampResolution `validate:"required,oneof=seconds milliseconds"`
}

// runParams carries the caller-supplied period length through validation.
type runParams struct {
	Days int `validate:"required,min=1,max=365"`
}

// Runner sequences one extraction run: fetch, reconcile, validate, write.
// It owns the period and run metadata for the duration of the run and
// guarantees that a failed run leaves no artifact behind. A Runner performs
// one run at a time; it is not safe for concurrent use.
type Runner struct {
	config     RunnerConfig
	source     source.Source
	factory    writer.Factory
	clock      Clock
	logger     *logger.Logger
	validate   *validator.Validate
	onProgress OnProgress
	state      State
}

// RunResult reports the outcome of one run.
type RunResult struct {
	Status       State
	ArtifactPath string
	RecordCount  int
	Metadata     types.RunMetadata
}

// NewRunner creates a runner for the given source and writer factory.
// onProgress may be nil.
func NewRunner(config RunnerConfig, src source.Source, factory writer.Factory, clock Clock, log *logger.Logger, onProgress OnProgress) (*Runner, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid runner configuration", err)
	}

	if onProgress == nil {
		onProgress = func(current, total float64, message string) {}
	}

	return &Runner{
		config:     config,
		source:     src,
		factory:    factory,
		clock:      clock,
		logger:     log,
		validate:   validate,
		onProgress: onProgress,
		state:      StateIdle,
	}, nil
}

// State returns the runner's current pipeline state.
func (r *Runner) State() State {
	return r.state
}

// Run executes one complete extraction for a trailing period of the given
// length. It either fully succeeds with exactly one validated artifact on
// disk, or fully fails with none.
func (r *Runner) Run(ctx context.Context, days int) (RunResult, error) {
	if err := r.validate.Struct(runParams{Days: days}); err != nil {
		// Rejected before any I/O.
		return r.fail(errors.Wrapf(errors.ErrCodeInvalidPeriodLength, err,
			"period length %d is out of range [1, 365]", days))
	}

	schema := r.source.Schema()
	generatedAt := r.clock.Now()
	period := types.NewPeriod(generatedAt, days)

	metadata := types.RunMetadata{
		GeneratedAt: generatedAt,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Source:      schema.Source,
	}

	r.logger.Info("starting extraction run",
		zap.String("source", schema.Source),
		zap.Time("period_start", period.Start),
		zap.Time("period_end", period.End),
		zap.Int("days", days),
	)

	r.state = StateFetching

	points, err := r.source.Fetch(ctx, period)
	if err != nil {
		return r.fail(err)
	}

	r.state = StateReconciling

	records, err := Reconcile(period, schema, points, r.logger)
	if err != nil {
		return r.fail(err)
	}

	r.state = StateValidating

	if outcome := ValidateRecords(records, period, schema); !outcome.Valid {
		return r.fail(outcome.Err())
	}

	r.state = StateWriting

	path, err := r.write(schema, period, metadata, records)
	if err != nil {
		return r.fail(err)
	}

	r.state = StateDone

	r.logger.Info("run complete",
		zap.String("artifact", path),
		zap.Int("records", len(records)),
	)

	return RunResult{
		Status:       StateDone,
		ArtifactPath: path,
		RecordCount:  len(records),
		Metadata:     metadata,
	}, nil
}

// write persists the validated records through the configured writer and
// verifies the finalized artifact where the format supports readback.
func (r *Runner) write(schema types.Schema, period types.Period, metadata types.RunMetadata, records []types.Record) (string, error) {
	if err := os.MkdirAll(r.config.OutputDir, 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodePersistenceFailed, "failed to create output directory", err)
	}

	name := ArtifactName(schema.Prefix, period, metadata.GeneratedAt, r.config.Resolution)
	path := filepath.Join(r.config.OutputDir, name+r.factory.Extension())

	w := r.factory.New(path, schema)

	if err := w.Initialize(); err != nil {
		return "", err
	}

	defer func() {
		if err := w.Close(); err != nil {
			r.logger.Warn("failed to close writer", zap.Error(err))
		}
	}()

	if err := w.WriteMetadata(metadata); err != nil {
		return "", err
	}

	total := float64(len(records))

	for i, record := range records {
		if err := w.WriteRecord(record); err != nil {
			return "", err
		}

		r.onProgress(float64(i+1), total, "writing records")
	}

	finalPath, err := w.Finalize()
	if err != nil {
		return "", err
	}

	if verifier, ok := w.(writer.Verifier); ok {
		if err := verifier.VerifyArtifact(finalPath, len(records)); err != nil {
			// A finalized artifact that fails verification must not survive.
			os.Remove(finalPath)

			return "", err
		}
	}

	return finalPath, nil
}

// fail moves the runner to its terminal failure state. Reporting the error
// is the caller's job; logging here stays at debug so a failed run surfaces
// exactly one diagnostic.
func (r *Runner) fail(err error) (RunResult, error) {
	r.state = StateFailed

	r.logger.Debug("run failed",
		zap.Int("exit_status", errors.ExitStatus(err)),
		zap.Error(err),
	)

	return RunResult{Status: StateFailed}, err
}

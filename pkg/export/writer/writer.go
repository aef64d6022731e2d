package writer

import (
	"github.com/kvdm-lab/finexport/internal/types"
	"github.com/kvdm-lab/finexport/pkg/errors"
)

// ArtifactWriter defines the interface for persisting one run's records to a
// single output artifact. Implementations must be atomic: after Finalize the
// fully-formed file exists at the output path; after Close without Finalize
// no file exists there at all.
type ArtifactWriter interface {
	// Initialize sets up the writer, potentially creating tables or files.
	Initialize() error
	// WriteRecord persists a single reconciled record.
	WriteRecord(record types.Record) error
	// WriteMetadata attaches the run metadata to the artifact.
	WriteMetadata(meta types.RunMetadata) error
	// Finalize completes the writing process and moves the artifact to its
	// final path.
	Finalize() (outputPath string, err error)
	// Close releases any resources held by the writer and removes any
	// partial output.
	Close() error
	// OutputPath returns the configured output file path.
	OutputPath() string
}

// Verifier is implemented by writers that can read an artifact back and
// confirm its row count matches what the run produced.
type Verifier interface {
	VerifyArtifact(path string, expectedRows int) error
}

// Type selects the artifact format.
type Type string

const (
	TypeParquet Type = "parquet"
	TypeXLSX    Type = "xlsx"
)

// Factory builds writers for one artifact format.
type Factory interface {
	// Extension returns the format's file extension including the dot.
	Extension() string
	// New creates a writer targeting the given path with the given schema.
	New(path string, schema types.Schema) ArtifactWriter
}

// NewFactory returns the factory for the given writer type.
func NewFactory(t Type) (Factory, error) {
	switch t {
	case TypeParquet:
		return DuckDBFactory{}, nil
	case TypeXLSX:
		return XLSXFactory{}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedWriter, "unsupported writer type: %s", t)
	}
}

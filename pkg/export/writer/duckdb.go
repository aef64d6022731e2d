package writer

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/kvdm-lab/finexport/internal/types"
	"github.com/kvdm-lab/finexport/pkg/errors"
)

// DuckDBFactory builds Parquet writers backed by an in-memory DuckDB.
type DuckDBFactory struct{}

func (DuckDBFactory) Extension() string {
	return ".parquet"
}

func (DuckDBFactory) New(path string, schema types.Schema) ArtifactWriter {
	return &DuckDBWriter{
		outputPath: path,
		tmpPath:    path + ".tmp",
		schema:     schema,
	}
}

// DuckDBWriter implements ArtifactWriter for Parquet output. Records are
// staged in an in-memory DuckDB table and exported with COPY on Finalize.
// The export targets a temporary path which is renamed into place only after
// the COPY succeeds, so a failed run never leaves a partial artifact.
type DuckDBWriter struct {
	db         *sql.DB
	tx         *sql.Tx
	stmt       *sql.Stmt
	schema     types.Schema
	meta       *types.RunMetadata
	outputPath string
	tmpPath    string
	finalized  bool
}

// Initialize opens the database, creates the staging table for the schema's
// field set, begins a transaction, and prepares the insert statement.
func (w *DuckDBWriter) Initialize() (err error) {
	w.db, err = sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to open DuckDB connection", err)
	}

	columns := []string{"id TEXT", "date DATE", "source TEXT"}
	for _, field := range w.schema.Fields {
		columns = append(columns, fmt.Sprintf("%s DOUBLE", field.Name))
	}

	_, err = w.db.Exec(fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS daily_records (%s)`, strings.Join(columns, ", "),
	))
	if err != nil {
		w.db.Close()

		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to create staging table", err)
	}

	w.tx, err = w.db.Begin()
	if err != nil {
		w.db.Close()

		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to begin transaction", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", 3+len(w.schema.Fields)), ", ")

	w.stmt, err = w.tx.Prepare(fmt.Sprintf(`INSERT INTO daily_records VALUES (%s)`, placeholders))
	if err != nil {
		w.tx.Rollback()
		w.db.Close()

		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to prepare statement", err)
	}

	return nil
}

// WriteRecord inserts a single record. Absent values are written as SQL NULL,
// never zero.
func (w *DuckDBWriter) WriteRecord(record types.Record) error {
	if w.stmt == nil {
		return errors.New(errors.ErrCodePersistenceFailed, "writer not initialized or statement is nil")
	}

	args := make([]any, 0, 3+len(w.schema.Fields))
	args = append(args, uuid.New().String(), record.Date, record.Source)

	for _, field := range w.schema.Fields {
		value := record.Value(field.Name)
		if value.IsSome() {
			args = append(args, sql.NullFloat64{Float64: value.Unwrap(), Valid: true})
		} else {
			args = append(args, sql.NullFloat64{})
		}
	}

	if _, err := w.stmt.Exec(args...); err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to insert record", err)
	}

	return nil
}

// WriteMetadata stages the run metadata; it is embedded as Parquet key-value
// metadata during Finalize.
func (w *DuckDBWriter) WriteMetadata(meta types.RunMetadata) error {
	w.meta = &meta

	return nil
}

// Finalize commits the staged rows, exports them to a temporary Parquet file
// with the run metadata attached, and renames the file into place.
func (w *DuckDBWriter) Finalize() (string, error) {
	if w.tx == nil {
		return "", errors.New(errors.ErrCodePersistenceFailed, "writer not initialized or transaction is nil")
	}

	if err := w.tx.Commit(); err != nil {
		w.tx.Rollback()

		return "", errors.Wrap(errors.ErrCodePersistenceFailed, "failed to commit transaction", err)
	}

	w.tx = nil

	copyOptions := "FORMAT PARQUET"
	if w.meta != nil {
		copyOptions = fmt.Sprintf("%s, KV_METADATA {%s}", copyOptions, kvMetadata(*w.meta))
	}

	_, err := w.db.Exec(fmt.Sprintf(
		`COPY daily_records TO '%s' (%s)`, escapeSQL(w.tmpPath), copyOptions,
	))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodePersistenceFailed, "failed to export to Parquet", err)
	}

	if err := os.Rename(w.tmpPath, w.outputPath); err != nil {
		os.Remove(w.tmpPath)

		return "", errors.Wrap(errors.ErrCodePersistenceFailed, "failed to move artifact into place", err)
	}

	w.finalized = true

	return w.outputPath, nil
}

// Close cleans up resources. If Finalize was never reached, any staged state
// and temporary file are discarded so no partial artifact survives.
func (w *DuckDBWriter) Close() error {
	var closeErrs []string

	if w.stmt != nil {
		if err := w.stmt.Close(); err != nil {
			closeErrs = append(closeErrs, fmt.Sprintf("close statement: %v", err))
		}

		w.stmt = nil
	}

	if w.tx != nil {
		w.tx.Rollback()
		w.tx = nil
	}

	if w.db != nil {
		if err := w.db.Close(); err != nil {
			closeErrs = append(closeErrs, fmt.Sprintf("close db: %v", err))
		}

		w.db = nil
	}

	if !w.finalized {
		os.Remove(w.tmpPath)
	}

	if len(closeErrs) > 0 {
		return errors.Newf(errors.ErrCodePersistenceFailed,
			"errors occurred during close: %s", strings.Join(closeErrs, "; "))
	}

	return nil
}

func (w *DuckDBWriter) OutputPath() string {
	return w.outputPath
}

// VerifyArtifact reads the finalized Parquet file back and checks its row
// count against what the run produced.
func (w *DuckDBWriter) VerifyArtifact(path string, expectedRows int) error {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to open DuckDB for verification", err)
	}
	defer db.Close()

	query, _, err := squirrel.Select("count(*)").
		From(fmt.Sprintf("read_parquet('%s')", escapeSQL(path))).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to build verification query", err)
	}

	var count int
	if err := db.QueryRow(query).Scan(&count); err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to read artifact back", err)
	}

	if count != expectedRows {
		return errors.Newf(errors.ErrCodePersistenceFailed,
			"artifact row count %d does not match expected %d", count, expectedRows)
	}

	return nil
}

func kvMetadata(meta types.RunMetadata) string {
	pairs := []string{
		fmt.Sprintf("generated_at: '%s'", meta.GeneratedAt.Format(time.RFC3339)),
		fmt.Sprintf("period_start: '%s'", meta.PeriodStart.Format(time.DateOnly)),
		fmt.Sprintf("period_end: '%s'", meta.PeriodEnd.Format(time.DateOnly)),
		fmt.Sprintf("source: '%s'", escapeSQL(meta.Source)),
	}

	return strings.Join(pairs, ", ")
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

package writer

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kvdm-lab/finexport/internal/types"
	"github.com/kvdm-lab/finexport/pkg/errors"
)

const (
	dataSheet     = "data"
	metadataSheet = "metadata"
)

// XLSXFactory builds XLSX writers.
type XLSXFactory struct{}

func (XLSXFactory) Extension() string {
	return ".xlsx"
}

func (XLSXFactory) New(path string, schema types.Schema) ArtifactWriter {
	return &XLSXWriter{
		outputPath: path,
		tmpPath:    path + ".tmp",
		schema:     schema,
	}
}

// XLSXWriter implements ArtifactWriter for XLSX output. Rows go to a "data"
// sheet with a header row; XLSX has no out-of-band metadata slot for
// arbitrary keys, so run metadata is written as a fixed block on a separate
// "metadata" sheet. The workbook is saved to a temporary path and renamed
// into place on Finalize.
type XLSXWriter struct {
	file       *excelize.File
	schema     types.Schema
	outputPath string
	tmpPath    string
	row        int
	finalized  bool
}

func (w *XLSXWriter) Initialize() error {
	w.file = excelize.NewFile()

	index, err := w.file.NewSheet(dataSheet)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to create data sheet", err)
	}

	w.file.SetActiveSheet(index)

	if err := w.file.DeleteSheet("Sheet1"); err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to drop default sheet", err)
	}

	header := []any{"Date"}
	for _, field := range w.schema.Fields {
		header = append(header, titleCase(string(field.Name)))
	}

	if err := w.file.SetSheetRow(dataSheet, "A1", &header); err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to write header row", err)
	}

	w.row = 1

	return nil
}

// WriteRecord appends one row. Absent values leave the cell empty rather
// than writing a zero.
func (w *XLSXWriter) WriteRecord(record types.Record) error {
	if w.file == nil {
		return errors.New(errors.ErrCodePersistenceFailed, "writer not initialized")
	}

	w.row++

	cells := []any{record.Date.Format(time.DateOnly)}

	for _, field := range w.schema.Fields {
		value := record.Value(field.Name)
		if value.IsSome() {
			cells = append(cells, value.Unwrap())
		} else {
			cells = append(cells, nil)
		}
	}

	anchor, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to compute cell anchor", err)
	}

	if err := w.file.SetSheetRow(dataSheet, anchor, &cells); err != nil {
		return errors.Wrapf(errors.ErrCodePersistenceFailed, err,
			"failed to write row for %s", record.Date.Format(time.DateOnly))
	}

	return nil
}

func (w *XLSXWriter) WriteMetadata(meta types.RunMetadata) error {
	if w.file == nil {
		return errors.New(errors.ErrCodePersistenceFailed, "writer not initialized")
	}

	if _, err := w.file.NewSheet(metadataSheet); err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to create metadata sheet", err)
	}

	rows := [][]any{
		{"generated_at", meta.GeneratedAt.Format(time.RFC3339)},
		{"period_start", meta.PeriodStart.Format(time.DateOnly)},
		{"period_end", meta.PeriodEnd.Format(time.DateOnly)},
		{"source", meta.Source},
	}

	for i, pair := range rows {
		anchor := fmt.Sprintf("A%d", i+1)
		if err := w.file.SetSheetRow(metadataSheet, anchor, &pair); err != nil {
			return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to write metadata row", err)
		}
	}

	return nil
}

func (w *XLSXWriter) Finalize() (string, error) {
	if w.file == nil {
		return "", errors.New(errors.ErrCodePersistenceFailed, "writer not initialized")
	}

	// SaveAs refuses the .tmp extension, so stream the workbook into the
	// temporary file ourselves.
	tmp, err := os.Create(w.tmpPath)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodePersistenceFailed, "failed to create temporary file", err)
	}

	if err := w.file.Write(tmp); err != nil {
		tmp.Close()
		os.Remove(w.tmpPath)

		return "", errors.Wrap(errors.ErrCodePersistenceFailed, "failed to save workbook", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(w.tmpPath)

		return "", errors.Wrap(errors.ErrCodePersistenceFailed, "failed to save workbook", err)
	}

	if err := os.Rename(w.tmpPath, w.outputPath); err != nil {
		os.Remove(w.tmpPath)

		return "", errors.Wrap(errors.ErrCodePersistenceFailed, "failed to move artifact into place", err)
	}

	w.finalized = true

	return w.outputPath, nil
}

func (w *XLSXWriter) Close() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to close workbook", err)
		}

		w.file = nil
	}

	if !w.finalized {
		os.Remove(w.tmpPath)
	}

	return nil
}

func (w *XLSXWriter) OutputPath() string {
	return w.outputPath
}

// VerifyArtifact reopens the finalized workbook and checks the data row
// count (excluding the header) against what the run produced.
func (w *XLSXWriter) VerifyArtifact(path string, expectedRows int) error {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to reopen artifact", err)
	}
	defer file.Close()

	rows, err := file.GetRows(dataSheet)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to read artifact rows", err)
	}

	if got := len(rows) - 1; got != expectedRows {
		return errors.Newf(errors.ErrCodePersistenceFailed,
			"artifact row count %d does not match expected %d", got, expectedRows)
	}

	return nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}

package writer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"

	"github.com/kvdm-lab/finexport/internal/types"
	"github.com/kvdm-lab/finexport/pkg/errors"
)

type XLSXWriterTestSuite struct {
	suite.Suite
	outputPath string
}

func TestXLSXWriterSuite(t *testing.T) {
	suite.Run(t, new(XLSXWriterTestSuite))
}

func (suite *XLSXWriterTestSuite) SetupTest() {
	suite.outputPath = filepath.Join(suite.T().TempDir(), "lqdt_tqtf_test.xlsx")
}

func (suite *XLSXWriterTestSuite) candle(day int, values map[types.Field]optional.Option[float64]) types.Record {
	return types.Record{
		Date:   time.Date(2025, 12, day, 0, 0, 0, 0, time.UTC),
		Values: values,
		Source: "MOEX",
	}
}

func (suite *XLSXWriterTestSuite) TestRoundTrip() {
	w := XLSXFactory{}.New(suite.outputPath, types.MoexCandles)
	suite.Require().NoError(w.Initialize())

	defer w.Close()

	suite.Require().NoError(w.WriteMetadata(types.RunMetadata{
		GeneratedAt: time.Date(2025, 12, 11, 14, 30, 7, 0, time.UTC),
		PeriodStart: time.Date(2025, 12, 8, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, 12, 9, 0, 0, 0, 0, time.UTC),
		Source:      "MOEX",
	}))

	suite.Require().NoError(w.WriteRecord(suite.candle(8, map[types.Field]optional.Option[float64]{
		types.FieldOpen:   optional.Some(1.4451),
		types.FieldHigh:   optional.Some(1.4460),
		types.FieldLow:    optional.Some(1.4450),
		types.FieldClose:  optional.Some(1.4459),
		types.FieldVolume: optional.Some(86500.0),
	})))
	suite.Require().NoError(w.WriteRecord(suite.candle(9, map[types.Field]optional.Option[float64]{})))

	path, err := w.Finalize()
	suite.Require().NoError(err)
	suite.Equal(suite.outputPath, path)
	suite.FileExists(path)
	suite.NoFileExists(path + ".tmp")

	file, err := excelize.OpenFile(path)
	suite.Require().NoError(err)

	defer file.Close()

	rows, err := file.GetRows("data")
	suite.Require().NoError(err)
	suite.Require().Len(rows, 3)

	suite.Equal([]string{"Date", "Open", "High", "Low", "Close", "Volume"}, rows[0])
	suite.Equal("2025-12-08", rows[1][0])
	suite.Equal("1.4451", rows[1][1])

	// The all-absent day keeps its date cell; the value cells stay empty,
	// never zero. GetRows trims trailing empty cells.
	suite.Equal("2025-12-09", rows[2][0])
	suite.Len(rows[2], 1)

	meta, err := file.GetRows("metadata")
	suite.Require().NoError(err)
	suite.Require().Len(meta, 4)
	suite.Equal([]string{"generated_at", "2025-12-11T14:30:07Z"}, meta[0])
	suite.Equal([]string{"period_start", "2025-12-08"}, meta[1])
	suite.Equal([]string{"period_end", "2025-12-09"}, meta[2])
	suite.Equal([]string{"source", "MOEX"}, meta[3])
}

func (suite *XLSXWriterTestSuite) TestFinalizeStagesThroughTmpPath() {
	// The staging file carries a .tmp suffix, which must not trip the
	// workbook writer's extension handling.
	w := XLSXFactory{}.New(suite.outputPath, types.MoexCandles)
	suite.Require().NoError(w.Initialize())

	defer w.Close()

	path, err := w.Finalize()
	suite.Require().NoError(err)
	suite.Equal(suite.outputPath, path)
	suite.NoFileExists(suite.outputPath + ".tmp")

	file, err := excelize.OpenFile(path)
	suite.Require().NoError(err)
	suite.NoError(file.Close())
}

func (suite *XLSXWriterTestSuite) TestCloseWithoutFinalizeLeavesNoFile() {
	w := XLSXFactory{}.New(suite.outputPath, types.MoexCandles)
	suite.Require().NoError(w.Initialize())
	suite.Require().NoError(w.WriteRecord(suite.candle(8, map[types.Field]optional.Option[float64]{
		types.FieldClose: optional.Some(1.4459),
	})))
	suite.Require().NoError(w.Close())

	suite.NoFileExists(suite.outputPath)
	suite.NoFileExists(suite.outputPath + ".tmp")
}

func (suite *XLSXWriterTestSuite) TestWriteBeforeInitialize() {
	w := XLSXFactory{}.New(suite.outputPath, types.MoexCandles)

	err := w.WriteRecord(suite.candle(8, nil))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodePersistenceFailed))

	err = w.WriteMetadata(types.RunMetadata{})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodePersistenceFailed))

	_, err = w.Finalize()
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodePersistenceFailed))
}

func (suite *XLSXWriterTestSuite) TestVerifyArtifact() {
	w := XLSXFactory{}.New(suite.outputPath, types.MoexCandles)
	suite.Require().NoError(w.Initialize())

	defer w.Close()

	for day := 8; day <= 10; day++ {
		suite.Require().NoError(w.WriteRecord(suite.candle(day, map[types.Field]optional.Option[float64]{
			types.FieldClose: optional.Some(1.44),
		})))
	}

	path, err := w.Finalize()
	suite.Require().NoError(err)

	verifier, ok := w.(Verifier)
	suite.Require().True(ok)

	suite.NoError(verifier.VerifyArtifact(path, 3))

	err = verifier.VerifyArtifact(path, 4)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodePersistenceFailed))
}

func (suite *XLSXWriterTestSuite) TestOutputPath() {
	w := XLSXFactory{}.New(suite.outputPath, types.MoexCandles)
	suite.Equal(suite.outputPath, w.OutputPath())
}

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/moznion/go-optional"

	"github.com/kvdm-lab/finexport/internal/types"
	pkgerrors "github.com/kvdm-lab/finexport/pkg/errors"
)

// MoexConfig configures the Moscow Exchange ISS candle source.
type MoexConfig struct {
	BaseURL string `json:"baseUrl" jsonschema:"title=Base URL,description=MOEX ISS root"`
	// Engine/Market/Board/Security address one instrument on ISS.
	Engine   string `json:"engine" jsonschema:"default=stock"`
	Market   string `json:"market" jsonschema:"default=shares"`
	Board    string `json:"board" jsonschema:"default=TQTF"`
	Security string `json:"security" jsonschema:"default=LQDT"`
	// Timeout bounds a single request.
	Timeout time.Duration `json:"timeout" jsonschema:"-"`
}

// DefaultMoexConfig returns the production LQDT/TQTF configuration.
func DefaultMoexConfig() MoexConfig {
	return MoexConfig{
		BaseURL:  "https://iss.moex.com",
		Engine:   "stock",
		Market:   "shares",
		Board:    "TQTF",
		Security: "LQDT",
		Timeout:  DefaultTimeout,
	}
}

// MoexSource fetches daily OHLCV candles from the MOEX ISS API. ISS returns
// a columns/data table whose cells are addressed positionally.
type MoexSource struct {
	config MoexConfig
	client *http.Client
}

func NewMoexSource(config MoexConfig) *MoexSource {
	return &MoexSource{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

func (s *MoexSource) Schema() types.Schema {
	return types.MoexCandles
}

type moexResponse struct {
	Candles struct {
		Columns []string `json:"columns"`
		Data    [][]any  `json:"data"`
	} `json:"candles"`
}

// interval=24 selects daily candles on ISS.
const moexDailyInterval = "24"

func (s *MoexSource) Fetch(ctx context.Context, period types.Period) ([]types.RawPoint, error) {
	endpoint, err := s.buildURL(period)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeSourceUnavailable, "failed to build request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var payload moexResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeMalformedUpstreamData, "invalid JSON response", err)
	}

	return s.parseCandles(payload)
}

func (s *MoexSource) buildURL(period types.Period) (string, error) {
	base, err := url.Parse(s.config.BaseURL)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfiguration, "invalid MOEX base URL", err)
	}

	base.Path = fmt.Sprintf("/iss/engines/%s/markets/%s/boards/%s/securities/%s/candles.json",
		s.config.Engine, s.config.Market, s.config.Board, s.config.Security)

	query := base.Query()
	query.Set("from", period.Start.Format(time.DateOnly))
	query.Set("till", period.End.Format(time.DateOnly))
	query.Set("interval", moexDailyInterval)
	base.RawQuery = query.Encode()

	return base.String(), nil
}

var moexRequiredColumns = []string{"open", "high", "low", "close", "volume", "begin"}

func (s *MoexSource) parseCandles(payload moexResponse) ([]types.RawPoint, error) {
	if len(payload.Candles.Columns) == 0 {
		return nil, pkgerrors.New(pkgerrors.ErrCodeMalformedUpstreamData, "response has no candles section")
	}

	index := make(map[string]int, len(payload.Candles.Columns))
	for i, column := range payload.Candles.Columns {
		index[column] = i
	}

	for _, column := range moexRequiredColumns {
		if _, ok := index[column]; !ok {
			return nil, pkgerrors.Newf(pkgerrors.ErrCodeMalformedUpstreamData, "response is missing column %q", column)
		}
	}

	points := make([]types.RawPoint, 0, len(payload.Candles.Data))

	for _, row := range payload.Candles.Data {
		if len(row) != len(payload.Candles.Columns) {
			return nil, pkgerrors.Newf(pkgerrors.ErrCodeMalformedUpstreamData,
				"row has %d cells, expected %d", len(row), len(payload.Candles.Columns))
		}

		begin, ok := row[index["begin"]].(string)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.ErrCodeMalformedUpstreamData, "candle begin time is not a string")
		}

		date, err := time.Parse(time.DateTime, begin)
		if err != nil {
			return nil, pkgerrors.Wrapf(pkgerrors.ErrCodeMalformedUpstreamData, err,
				"unparseable candle begin time %q", begin)
		}

		if boardIdx, ok := index["boardid"]; ok {
			if board, _ := row[boardIdx].(string); board != s.config.Board {
				return nil, pkgerrors.Newf(pkgerrors.ErrCodeMalformedUpstreamData,
					"got board %q, expected %q", board, s.config.Board)
			}
		}

		values := make(map[types.Field]optional.Option[float64], len(types.MoexCandles.Fields))

		for _, field := range types.MoexCandles.Fields {
			value, err := numericCell(row[index[string(field.Name)]], field.Name)
			if err != nil {
				return nil, err
			}

			values[field.Name] = value
		}

		points = append(points, types.RawPoint{Date: date, Values: values})
	}

	return points, nil
}

// numericCell converts an ISS table cell into an optional numeric value.
// JSON null means the value was not published that day.
func numericCell(cell any, field types.Field) (optional.Option[float64], error) {
	if cell == nil {
		return optional.None[float64](), nil
	}

	v, ok := cell.(float64)
	if !ok {
		return optional.None[float64](), pkgerrors.Newf(pkgerrors.ErrCodeMalformedUpstreamData,
			"non-numeric %s value %v", field, cell)
	}

	return optional.Some(v), nil
}

package source

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/kvdm-lab/finexport/internal/types"
	pkgerrors "github.com/kvdm-lab/finexport/pkg/errors"
)

// CBRConfig configures the Bank of Russia exchange rate source.
type CBRConfig struct {
	// BaseURL is the XML_dynamic endpoint.
	BaseURL string `json:"baseUrl" jsonschema:"title=Base URL,description=CBR XML_dynamic endpoint"`
	// CurrencyCode is the CBR internal currency identifier (R01235 = USD).
	CurrencyCode string `json:"currencyCode" jsonschema:"title=Currency Code,description=CBR currency identifier,default=R01235"`
	// Timeout bounds a single request.
	Timeout time.Duration `json:"timeout" jsonschema:"-"`
}

// DefaultCBRConfig returns the production endpoint configuration.
func DefaultCBRConfig() CBRConfig {
	return CBRConfig{
		BaseURL:      "https://www.cbr.ru/scripts/XML_dynamic.asp",
		CurrencyCode: "R01235",
		Timeout:      DefaultTimeout,
	}
}

// CBRSource fetches daily RUB/USD exchange rates from the Bank of Russia.
// The upstream serves windows-1251 encoded XML with comma decimal separators
// and a per-record nominal the value must be divided by.
type CBRSource struct {
	config CBRConfig
	client *http.Client
}

func NewCBRSource(config CBRConfig) *CBRSource {
	return &CBRSource{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

func (s *CBRSource) Schema() types.Schema {
	return types.CBRRates
}

// cbrRecord mirrors one <Record> element of the XML_dynamic response.
type cbrRecord struct {
	Date    string `xml:"Date,attr"`
	Nominal string `xml:"Nominal"`
	Value   string `xml:"Value"`
}

type cbrResponse struct {
	XMLName xml.Name    `xml:"ValCurs"`
	Records []cbrRecord `xml:"Record"`
}

func (s *CBRSource) Fetch(ctx context.Context, period types.Period) ([]types.RawPoint, error) {
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

	return parseCBRResponse(resp.Body)
}

func (s *CBRSource) buildURL(period types.Period) (string, error) {
	base, err := url.Parse(s.config.BaseURL)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfiguration, "invalid CBR base URL", err)
	}

	query := base.Query()
	query.Set("date_req1", period.Start.Format("02/01/2006"))
	query.Set("date_req2", period.End.Format("02/01/2006"))
	query.Set("VAL_NM_RQ", s.config.CurrencyCode)
	base.RawQuery = query.Encode()

	return base.String(), nil
}

// parseCBRResponse decodes the windows-1251 XML payload into sparse raw
// points, one per published day. Rate = Value / Nominal.
func parseCBRResponse(body io.Reader) ([]types.RawPoint, error) {
	decoder := xml.NewDecoder(body)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		switch strings.ToLower(charset) {
		case "windows-1251":
			return charmap.Windows1251.NewDecoder().Reader(input), nil
		default:
			return input, nil
		}
	}

	var payload cbrResponse
	if err := decoder.Decode(&payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeMalformedUpstreamData, "invalid or malformed XML response", err)
	}

	points := make([]types.RawPoint, 0, len(payload.Records))

	for _, record := range payload.Records {
		date, err := time.Parse("02.01.2006", record.Date)
		if err != nil {
			return nil, pkgerrors.Wrapf(pkgerrors.ErrCodeMalformedUpstreamData, err,
				"unparseable record date %q", record.Date)
		}

		rate, err := parseCBRRate(record.Value, record.Nominal)
		if err != nil {
			return nil, pkgerrors.Wrapf(pkgerrors.ErrCodeMalformedUpstreamData, err,
				"unparseable rate for %s", record.Date)
		}

		points = append(points, types.RawPoint{
			Date: date,
			Values: map[types.Field]optional.Option[float64]{
				types.FieldRate: optional.Some(rate),
			},
		})
	}

	return points, nil
}

// parseCBRRate converts the comma-decimal value and its nominal into a
// per-unit rate. Decimal arithmetic avoids drift on the division.
func parseCBRRate(value, nominal string) (float64, error) {
	v, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(value), ",", "."))
	if err != nil {
		return 0, err
	}

	n, err := decimal.NewFromString(strings.TrimSpace(nominal))
	if err != nil {
		return 0, err
	}

	if n.IsZero() {
		return 0, pkgerrors.New(pkgerrors.ErrCodeMalformedUpstreamData, "zero nominal in record")
	}

	return v.Div(n).InexactFloat64(), nil
}

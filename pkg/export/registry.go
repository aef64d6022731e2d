package export

import (
	"encoding/json"
	"sort"

	"github.com/invopop/jsonschema"

	"github.com/kvdm-lab/finexport/pkg/errors"
	"github.com/kvdm-lab/finexport/pkg/export/source"
)

// SourceInfo contains metadata about a supported data source.
type SourceInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	// RequiresAuth is false for both current sources; kept so new sources
	// can declare credentials without an interface change.
	RequiresAuth bool `json:"requiresAuth"`
}

// sourceRegistry holds metadata about all supported sources.
var sourceRegistry = map[source.Type]SourceInfo{
	source.TypeCBR: {
		Name:         string(source.TypeCBR),
		DisplayName:  "Bank of Russia",
		Description:  "Daily RUB/USD exchange rates from the CBR XML_dynamic API",
		RequiresAuth: false,
	},
	source.TypeMoex: {
		Name:         string(source.TypeMoex),
		DisplayName:  "Moscow Exchange",
		Description:  "Daily LQDT/TQTF OHLCV candles from the MOEX ISS API",
		RequiresAuth: false,
	},
}

// SupportedSources returns the names of all supported sources, sorted.
func SupportedSources() []string {
	names := make([]string, 0, len(sourceRegistry))
	for t := range sourceRegistry {
		names = append(names, string(t))
	}

	sort.Strings(names)

	return names
}

// GetSourceInfo returns metadata for a specific source.
func GetSourceInfo(name string) (SourceInfo, error) {
	info, exists := sourceRegistry[source.Type(name)]
	if !exists {
		return SourceInfo{}, errors.Newf(errors.ErrCodeUnsupportedSource, "unsupported source: %s", name)
	}

	return info, nil
}

// GetSourceConfigSchema returns the JSON schema for a source's configuration.
func GetSourceConfigSchema(name string) (string, error) {
	switch source.Type(name) {
	case source.TypeCBR:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return toJSONSchema(source.CBRConfig{})
	case source.TypeMoex:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return toJSONSchema(source.MoexConfig{})
	default:
		return "", errors.Newf(errors.ErrCodeUnsupportedSource, "unsupported source: %s", name)
	}
}

func toJSONSchema(config any) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(config)

	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

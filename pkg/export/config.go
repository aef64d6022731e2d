package export

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kvdm-lab/finexport/pkg/errors"
	"github.com/kvdm-lab/finexport/pkg/export/source"
)

// FileConfig is the optional YAML configuration the CLI can load. Every
// field has a default; flags override the file.
type FileConfig struct {
	OutputDir      string `yaml:"output_dir" validate:"required"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"min=1,max=300"`
	// Resolution is the artifact timestamp resolution: seconds or
	// milliseconds. Millisecond resolution disambiguates reruns within the
	// same second.
	Resolution TimestampResolution `yaml:"timestamp_resolution" validate:"oneof=seconds milliseconds"`
	// CBRBaseURL and MoexBaseURL override the production endpoints, mainly
	// for testing against local fixtures.
	CBRBaseURL  string `yaml:"cbr_base_url" validate:"omitempty,url"`
	MoexBaseURL string `yaml:"moex_base_url" validate:"omitempty,url"`
}

// DefaultFileConfig returns the configuration used when no file is given.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		OutputDir:      ".",
		TimeoutSeconds: int(source.DefaultTimeout / time.Second),
		Resolution:     ResolutionSeconds,
	}
}

// LoadFileConfig reads and validates a YAML configuration file. Missing
// fields fall back to defaults.
func LoadFileConfig(path string) (FileConfig, error) {
	config := DefaultFileConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to read config file", err)
	}

	if err := yaml.Unmarshal(raw, &config); err != nil {
		return FileConfig{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config file", err)
	}

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return FileConfig{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return config, nil
}

// Timeout returns the configured upstream request bound.
func (c FileConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

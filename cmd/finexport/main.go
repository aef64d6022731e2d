package main

import (
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/kvdm-lab/finexport/internal/logger"
	"github.com/kvdm-lab/finexport/pkg/errors"
	"github.com/kvdm-lab/finexport/pkg/export"
	"github.com/kvdm-lab/finexport/pkg/export/source"
	"github.com/kvdm-lab/finexport/pkg/export/writer"
)

func extractFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "days",
			Aliases: []string{"n"},
			Usage:   "Number of trailing calendar days to extract (1-365)",
			Value:   7,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Directory the artifact is written to",
			Value:   ".",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Upstream request timeout",
			Value: source.DefaultTimeout,
		},
		&cli.BoolFlag{
			Name:  "millis",
			Usage: "Use millisecond resolution in artifact timestamps",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Only log warnings and errors, no progress bar",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
		},
	}
}

// loadConfig merges the optional config file with command line flags; flags
// win where both are given.
func loadConfig(cmd *cli.Command) (export.FileConfig, error) {
	config := export.DefaultFileConfig()

	if path := cmd.String("config"); path != "" {
		loaded, err := export.LoadFileConfig(path)
		if err != nil {
			return export.FileConfig{}, err
		}

		config = loaded
	}

	if cmd.IsSet("output") || config.OutputDir == "" {
		config.OutputDir = cmd.String("output")
	}

	if cmd.IsSet("timeout") {
		config.TimeoutSeconds = int(cmd.Duration("timeout").Seconds())
	}

	if cmd.Bool("millis") {
		config.Resolution = export.ResolutionMilliseconds
	}

	return config, nil
}

func buildSource(sourceType source.Type, config export.FileConfig) (source.Source, error) {
	switch sourceType {
	case source.TypeCBR:
		cbrConfig := source.DefaultCBRConfig()
		cbrConfig.Timeout = config.Timeout()

		if config.CBRBaseURL != "" {
			cbrConfig.BaseURL = config.CBRBaseURL
		}

		return source.NewCBRSource(cbrConfig), nil
	case source.TypeMoex:
		moexConfig := source.DefaultMoexConfig()
		moexConfig.Timeout = config.Timeout()

		if config.MoexBaseURL != "" {
			moexConfig.BaseURL = config.MoexBaseURL
		}

		return source.NewMoexSource(moexConfig), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedSource, "unsupported source type: %s", sourceType)
	}
}

func extractAction(ctx context.Context, cmd *cli.Command, sourceType source.Type, writerType writer.Type) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	quiet := cmd.Bool("quiet")

	var log *logger.Logger
	if quiet {
		log, err = logger.NewQuietLogger()
	} else {
		log, err = logger.NewLogger()
	}

	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to create logger", err)
	}
	defer log.Sync()

	src, err := buildSource(sourceType, config)
	if err != nil {
		return err
	}

	factory, err := writer.NewFactory(writerType)
	if err != nil {
		return err
	}

	var onProgress export.OnProgress
	if !quiet {
		var bar *progressbar.ProgressBar

		onProgress = func(current, total float64, message string) {
			if bar == nil {
				bar = progressbar.NewOptions(int(total), progressbar.OptionSetDescription(message))
			}

			bar.Set(int(current))
		}
	}

	runner, err := export.NewRunner(export.RunnerConfig{
		OutputDir:  config.OutputDir,
		Resolution: config.Resolution,
	}, src, factory, export.SystemClock{}, log, onProgress)
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx, int(cmd.Int("days")))
	if err != nil {
		return err
	}

	fmt.Printf("Successfully created %s (%d records)\n", result.ArtifactPath, result.RecordCount)

	return nil
}

func extractCommand(name, usage string, sourceType source.Type, writerType writer.Type) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: extractFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return extractAction(ctx, cmd, sourceType, writerType)
		},
	}
}

func sourcesCommand() *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "List supported data sources",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "schema",
				Usage: "Print the JSON configuration schema for the named source",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if name := cmd.String("schema"); name != "" {
				schema, err := export.GetSourceConfigSchema(name)
				if err != nil {
					return err
				}

				fmt.Println(schema)

				return nil
			}

			for _, name := range export.SupportedSources() {
				info, err := export.GetSourceInfo(name)
				if err != nil {
					return err
				}

				fmt.Printf("%-8s %s - %s\n", info.Name, info.DisplayName, info.Description)
			}

			return nil
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "finexport",
		Usage: "Extract daily financial time series into dated artifacts",
		Commands: []*cli.Command{
			extractCommand("cbr", "Export RUB/USD exchange rates for the trailing period to Parquet", source.TypeCBR, writer.TypeParquet),
			extractCommand("moex", "Export LQDT/TQTF daily candles for the trailing period to XLSX", source.TypeMoex, writer.TypeXLSX),
			sourcesCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(errors.ExitStatus(err))
	}
}

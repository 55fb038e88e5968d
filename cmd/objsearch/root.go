package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/objsearch"
	"github.com/kailas-cloud/objsearch/internal/config"
	"github.com/kailas-cloud/objsearch/internal/logger"
	"github.com/kailas-cloud/objsearch/internal/metrics"
)

// app holds the state shared by all subcommands once the root pre-run has completed.
type app struct {
	configPath string

	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	client   *objsearch.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "objsearch",
		Short: "Object detection metadata processing and search",
		Long: `objsearch runs an external object detector over batches of images, stores one
metadata document per batch, and searches those documents by object class and count.

Configuration is read from config/<ENV>.yaml (ENV defaults to "local") or from --config.
A .env file in the working directory is loaded first when present.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			if err := a.init(); err != nil {
				return err
			}
			cmd.SetContext(logger.ContextWithLogger(cmd.Context(), a.logger.With(zap.String("command", cmd.Name()))))
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file (default: config/<ENV>.yaml)")

	cmd.AddCommand(newProcessCmd(a))
	cmd.AddCommand(newBatchesCmd(a))
	cmd.AddCommand(newClassesCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newRenderCmd(a))
	cmd.AddCommand(newHealthCmd(a))

	return cmd
}

func (a *app) init() error {
	env := config.GetEnv()

	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load(env)
	}
	if err != nil {
		return err
	}

	a.logger, err = logger.NewLogger(env, a.cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	a.registry = prometheus.NewRegistry()
	a.client, err = objsearch.New(
		objsearch.WithBaseDir(a.cfg.Storage.BaseDir),
		objsearch.WithProcessedDir(a.cfg.Storage.ProcessedDir),
		objsearch.WithDetectorCommand(a.cfg.Detector.Command, a.cfg.Detector.Args...),
		objsearch.WithDetectorTimeout(a.cfg.Detector.Timeout()),
		objsearch.WithDefaultWeights(a.cfg.Detector.DefaultWeights),
		objsearch.WithExtensions(a.cfg.Detector.Extensions...),
		objsearch.WithStyle(objsearch.Style{
			Color:          a.cfg.Render.Color,
			HighlightColor: a.cfg.Render.HighlightColor,
			MutedColor:     a.cfg.Render.MutedColor,
			StrokeWidth:    a.cfg.Render.StrokeWidth,
		}),
		objsearch.WithLogger(a.logger),
		objsearch.WithPrometheus(a.registry),
	)
	if err != nil {
		return err
	}

	a.logger.Debug("Configuration loaded",
		zap.String("env", env),
		zap.String("processed_dir", a.cfg.Storage.ProcessedDir),
		zap.String("detector", a.cfg.Detector.Command),
	)
	return nil
}

func (a *app) close() error {
	if a.logger != nil {
		defer func() { _ = a.logger.Sync() }()
	}
	if a.registry == nil || a.cfg.Metrics.Textfile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile, a.registry); err != nil {
		return err
	}
	a.logger.Debug("Metrics written", zap.String("path", a.cfg.Metrics.Textfile))
	return nil
}

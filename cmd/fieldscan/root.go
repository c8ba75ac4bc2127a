package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/platinummonkey/fieldscan/internal/config"
	"github.com/platinummonkey/fieldscan/internal/logger"
)

var (
	cfgFile string

	// v collects flag values; config.LoadViper layers file, env and defaults under them.
	v = viper.New()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fieldscan",
	Short: "Extract configured fields from scanned vendor documents",
	Long: `fieldscan reads scanned delivery tickets and similar vendor documents,
crops every field a vendor layout defines, and recognizes its contents.

Features:
  - Per-vendor YAML layouts in inches or pixels
  - Printed text via Tesseract or a vision LLM (Ollama, OpenAI, Anthropic, Google)
  - Handwriting detection and recognition with ONNX models
  - Ticket number fallback to a reference template
  - CSV and highlighted XLSX exports, crops and thumbnails for audit
  - Watch mode for an inbox directory`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fieldscan.yaml)")
	pf.String("configs-dir", "", "directory of vendor layout YAML files")
	pf.String("models-dir", "", "directory of ONNX models")
	pf.String("templates-dir", "", "directory holding the ticket template image")
	pf.String("output-dir", "", "root directory for results")
	pf.Float64("dpi", 0, "rasterization resolution")
	pf.Int("workers", 0, "page worker count (0 = number of CPUs)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (console, json)")
	pf.String("log-file", "", "also write logs to this file")
	pf.String("printed-provider", "", "printed text engine (tesseract, ollama, openai, anthropic, google)")
	pf.String("printed-model", "", "vision model for LLM providers")
	pf.Bool("use-handwriting", true, "route fields through the handwriting classifier")
	pf.String("handwriting-routing", "", "classifier combination (both, either, heuristic, learned)")

	for _, name := range []string{
		"configs-dir", "models-dir", "templates-dir", "output-dir", "dpi", "workers",
		"log-level", "log-format", "log-file", "printed-provider", "printed-model",
		"use-handwriting", "handwriting-routing",
	} {
		bindFlag(rootCmd, name)
	}
}

// bindFlag binds a flag to viper only when it was set, so unset flags fall
// through to the file, environment and defaults.
func bindFlag(cmd *cobra.Command, name string) {
	f := cmd.PersistentFlags().Lookup(name)
	if f == nil {
		f = cmd.Flags().Lookup(name)
	}
	cobra.OnInitialize(func() {
		if f != nil && f.Changed {
			v.Set(name, f.Value.String())
		}
	})
}

// setup loads configuration and initializes the global logger.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadViper(v, cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(&logger.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		OutputPath: cfg.LogFile,
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.Get()
	log.Debugw("Configuration loaded", "config", cfg.String())
	return cfg, log, nil
}

package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/menta2k/overlay-editor/internal/config"
	"github.com/menta2k/overlay-editor/internal/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "overlay-editor",
		Short: "Put a 67 on every face",
		Long: `Overlay editor detects the face in a photo and stamps the 67 overlay on it.

Run it as a web service with an interactive drag and zoom editor, or render
photos straight from the command line.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.GetConfigPath(), "Configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newRenderCmd(opts))
	cmd.AddCommand(newDetectCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))

	return cmd
}

// load reads the config file, applies environment overrides and sets up logging
func (o *rootOptions) load() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.ApplyEnv()
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	return cfg, log, nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/FairForge/storm/internal/config"
	"github.com/FairForge/storm/internal/loadtest"
	"github.com/FairForge/storm/internal/logging"
	"github.com/FairForge/storm/internal/submit"
)

// NewRootCmd builds the storm command tree.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "storm <api_url> <file> <count>",
		Short: "Replay one artifact against the content submission API and report tail latency",
		Long: `Submit the same artifact count times, as fast as the worker pool allows,
and report p75/p95/p99 latency of the successful submissions.

Each submission gets a unique content id of the form
storm-<inline|url>-<date>-<uuid>-<filename>.

Settings can also come from a YAML file passed with --config:

api:
  url: https://api.example.com
  token: <bearer token>
  timeout: 30s
run:
  file: ./photo.jpg
  count: 1000
  workers: 50
  url_mode: false
  additional_fields: [campaign=storm]

Precedence is defaults < --config file < STORM_* environment < flags.
`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, v, args)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			// no cancellation: the run always completes, bounded by the
			// per-request timeout
			return runStorm(context.Background(), cfg, logger, cmd.OutOrStdout())
		},
	}

	persistent := rootCmd.PersistentFlags()
	persistent.String("config", "", "YAML config file")
	persistent.String("log-level", "info", "Log level (debug, info, warn, error)")
	persistent.String("log-format", logging.FormatJSON, "Log format (json, console)")

	flags := rootCmd.Flags()
	flags.String("token", "", "Bearer token sent with every submission")
	flags.Bool("url_mode", false, "Submit through a presigned upload URL instead of inline content")
	flags.Int("workers", loadtest.DefaultWorkers, "Maximum submissions in flight")
	flags.Duration("timeout", submit.DefaultTimeout, "Per-request timeout")
	flags.StringArray("field", nil, "Additional field attached to every submission (repeatable)")
	flags.String("content-type", submit.DefaultContentType, "content_type sent with every submission")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run")

	bindFlags(v, persistent)
	bindFlags(v, flags)

	rootCmd.AddCommand(newStubAPICmd(v))
	return rootCmd
}

// Execute runs the root command and exits non-zero on construction errors.
// A run in which some submissions failed still exits zero.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})
}

// buildConfig layers defaults, the optional config file, the environment,
// positional args and explicitly set flags, then validates the result.
func buildConfig(cmd *cobra.Command, v *viper.Viper, args []string) (*config.Config, error) {
	cfg := config.Default()

	if path := v.GetString("config"); path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	cfg.API.URL = args[0]
	cfg.Run.File = args[1]
	count, err := strconv.Atoi(args[2])
	if err != nil {
		return nil, fmt.Errorf("count %q is not an integer", args[2])
	}
	cfg.Run.Count = count

	if v.IsSet("token") {
		cfg.API.Token = v.GetString("token")
	}
	if v.IsSet("url_mode") {
		cfg.Run.URLMode = v.GetBool("url_mode")
	}
	if v.IsSet("workers") {
		cfg.Run.Workers = v.GetInt("workers")
	}
	if v.IsSet("timeout") {
		cfg.API.Timeout = v.GetDuration("timeout")
	}
	if v.IsSet("content-type") {
		cfg.API.ContentType = v.GetString("content-type")
	}
	if v.IsSet("metrics-addr") {
		cfg.Metrics.Addr = v.GetString("metrics-addr")
	}
	if v.IsSet("log-level") {
		cfg.Log.Level = v.GetString("log-level")
	}
	if v.IsSet("log-format") {
		cfg.Log.Format = v.GetString("log-format")
	}
	if cmd.Flags().Changed("field") {
		fields, err := cmd.Flags().GetStringArray("field")
		if err != nil {
			return nil, err
		}
		cfg.Run.AdditionalFields = fields
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  cfg.Level,
		Format: cfg.Format,
	})
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/FairForge/storm/internal/config"
	"github.com/FairForge/storm/internal/stubapi"
)

func newStubAPICmd(root *viper.Viper) *cobra.Command {
	v := viper.New()

	stubCmd := &cobra.Command{
		Use:   "stub-api",
		Short: "Serve a local stand-in of the content submission API",
		Long: `Serve POST /submit/ and presigned PUT uploads in memory so storm can be
exercised without the real service. No hashing or matching is performed.

  storm stub-api --addr :8080 --token secret &
  storm http://localhost:8080 ./photo.jpg 500 --token secret --url_mode
`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logCfg := config.Default().Log
			logCfg.Level = root.GetString("log-level")
			logCfg.Format = root.GetString("log-format")
			logger, err := newLogger(logCfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg := stubapi.Config{
				Addr:      v.GetString("addr"),
				Token:     v.GetString("token"),
				JWTSecret: v.GetString("jwt-secret"),
				Bucket:    v.GetString("bucket"),
				PublicURL: v.GetString("public-url"),
				Delay:     v.GetDuration("delay"),
				RateLimit: v.GetInt("rate-limit"),
				Burst:     v.GetInt("burst"),
			}

			if cfg.JWTSecret != "" && v.GetBool("print-token") {
				token, err := stubapi.IssueToken(cfg.JWTSecret, "storm", 24*time.Hour)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = stubapi.New(cfg, logger.Named("stubapi")).ListenAndServe(ctx)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("stub api stopped", zap.Error(err))
				return err
			}
			return nil
		},
	}

	def := stubapi.DefaultConfig()
	flags := stubCmd.Flags()
	flags.String("addr", def.Addr, "Listen address")
	flags.String("token", "", "Static bearer token to accept (any non-empty token when unset)")
	flags.String("jwt-secret", "", "Verify bearer tokens as HS256 JWTs signed with this secret")
	flags.Bool("print-token", false, "With --jwt-secret, print a 24h token on startup")
	flags.String("bucket", def.Bucket, "Bucket name used in presigned upload URLs")
	flags.String("public-url", "", "Endpoint presigned URLs point at (default: request host)")
	flags.Duration("delay", 0, "Artificial latency added to every submission")
	flags.Int("rate-limit", 0, "Requests per second before answering 429 (0 disables)")
	flags.Int("burst", 0, "Burst size for --rate-limit (default: same as rate)")
	bindFlags(v, flags)

	return stubCmd
}

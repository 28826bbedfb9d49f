package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Sternrassler/fireblocks-client/pkg/client"
	"github.com/Sternrassler/fireblocks-client/pkg/config"
	"github.com/Sternrassler/fireblocks-client/pkg/logging"
	"github.com/Sternrassler/fireblocks-client/pkg/metrics"
	"github.com/Sternrassler/fireblocks-client/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app holds what the subcommands share once the root command has run.
type app struct {
	configFile  string
	envFile     string
	logLevel    string
	metricsAddr string
	maxPages    int
	batch       uint16
	purgeCache  bool

	cfg     *config.Config
	logger  zerolog.Logger
	api     *client.Client
	redis   *redis.Client
	paged   *pagination.PagedClient
	metrics *http.Server
	// metricsListen is the bound metrics address, useful with port 0
	metricsListen net.Addr
}

func newRootCmd() *cobra.Command {
	return (&app{}).command()
}

// command builds the command tree. Resources acquired by setup are released
// when a subcommand returns, whether or not it failed.
func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:          "fireblocks-pager",
		Short:        "Stream Fireblocks vault accounts and transactions as JSON lines",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd.Context()); err != nil {
				if terr := a.teardown(); terr != nil {
					return errors.Join(err, terr)
				}
				return err
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (yaml, json or toml)")
	flags.StringVar(&a.envFile, "env-file", "", "env file to load instead of ./.env")
	flags.StringVar(&a.logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	flags.IntVar(&a.maxPages, "max-pages", 0, "stop after this many pages (0 means no limit)")
	flags.Uint16Var(&a.batch, "batch", 0, "page size requested from the API (default batch_size from the config)")
	flags.BoolVar(&a.purgeCache, "purge-cache", false, "drop cached responses for this API key before running")

	root.AddCommand(newVaultsCmd(a), newVaultCmd(a), newTransactionsCmd(a))
	for _, sub := range root.Commands() {
		if sub.RunE != nil {
			sub.RunE = a.withTeardown(sub.RunE)
		}
	}
	return root
}

// withTeardown runs fn and then releases the resources acquired by setup.
func (a *app) withTeardown(fn func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if terr := a.teardown(); terr != nil {
			return errors.Join(err, terr)
		}
		return err
	}
}

func (a *app) setup(ctx context.Context) error {
	var opts []config.Option
	if a.configFile != "" {
		opts = append(opts, config.WithConfigFile(a.configFile))
	}
	if a.envFile != "" {
		opts = append(opts, config.WithEnvFile(a.envFile))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	if a.batch == 0 {
		a.batch = cfg.BatchSize
	}
	a.logger = logging.Setup(cfg.LoggingConfig()).With().Str("component", "fireblocks-pager").Logger()

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return err
	}
	if rdb := cfg.NewRedis(); rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		a.redis = rdb
		clientCfg.Redis = rdb
	}

	a.api, err = client.New(clientCfg)
	if err != nil {
		return err
	}
	if a.purgeCache {
		if _, err := a.api.PurgeCache(ctx); err != nil {
			return err
		}
	}
	a.paged = pagination.NewPagedClient(a.api,
		pagination.WithLogger(a.logger),
		pagination.WithBaseContext(ctx),
	)

	if a.metricsAddr != "" {
		if err := a.serveMetrics(); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) serveMetrics() error {
	ln, err := net.Listen("tcp", a.metricsAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.metricsAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	a.metricsListen = ln.Addr()

	go func() {
		if err := a.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	a.logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return nil
}

// teardown releases whatever setup acquired. It may be called more than once.
func (a *app) teardown() error {
	var errs []error
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.metrics.Shutdown(ctx))
		a.metrics = nil
	}
	if a.api != nil {
		errs = append(errs, a.api.Close())
		a.api = nil
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
		a.redis = nil
	}
	return errors.Join(errs...)
}

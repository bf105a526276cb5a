package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/aretw0/topograph"
	"github.com/aretw0/topograph/internal/config"
	"github.com/aretw0/topograph/internal/presentation/tui"
	httpadapter "github.com/aretw0/topograph/pkg/adapters/http"
	"github.com/aretw0/topograph/pkg/adapters/badger"
	"github.com/aretw0/topograph/pkg/adapters/memory"
	"github.com/aretw0/topograph/pkg/adapters/redis"
	"github.com/aretw0/topograph/pkg/observability"
	"github.com/aretw0/topograph/pkg/ports"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP mutation server",
	Long:  `Starts the engine behind a REST API over the configured store (memory, redis or badger).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		logger := commandLogger(cmd, cfg.Log.Level, cfg.Log.Format)
		if tui.IsTerminal(cmd.ErrOrStderr()) {
			tui.PrintBanner(cmd.ErrOrStderr(), topograph.Version)
		}

		store, locker, err := openStore(cfg, logger)
		if err != nil {
			return err
		}

		opts := []topograph.Option{
			topograph.WithStore(store),
			topograph.WithLogger(logger),
			topograph.WithTxTimeout(cfg.Mutation.TxTimeout),
			topograph.WithLockTTL(cfg.Mutation.LockTTL),
		}
		if locker != nil {
			opts = append(opts, topograph.WithLocker(locker))
		}

		handlerOpts := []httpadapter.Option{
			httpadapter.WithLogger(logger),
			httpadapter.WithCORSOrigins(cfg.Server.CORSOrigins...),
			httpadapter.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateWindow),
		}
		if cfg.Metrics.Enabled {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			opts = append(opts, topograph.WithMetrics(observability.NewMetrics(reg)))
			handlerOpts = append(handlerOpts, httpadapter.WithMetrics(reg), httpadapter.WithMetricsPath(cfg.Metrics.Path))
		}

		engine := topograph.New(opts...)
		defer engine.Close()

		srv := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      httpadapter.NewHandler(engine, handlerOpts...),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting Topograph Server", "addr", srv.Addr, "store", cfg.Store.Driver)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("Start shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("kill server: %w", err)
				}
			}
			logger.Info("Topograph Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (overrides server.addr)")
}

// openStore builds the configured store, plus a Redis locker when distributed
// locking is enabled.
func openStore(cfg *config.Config, logger *slog.Logger) (ports.Store, ports.DistributedLocker, error) {
	var locker ports.DistributedLocker
	var client *backend.Client
	redisClient := func() *backend.Client {
		if client == nil {
			client = backend.NewClient(&backend.Options{
				Addr:     cfg.Store.Redis.Addr,
				Password: cfg.Store.Redis.Password,
				DB:       cfg.Store.Redis.DB,
			})
		}
		return client
	}
	if cfg.Mutation.DistributedLock {
		locker = redis.NewLocker(redisClient(), cfg.Store.Redis.Prefix)
	}

	switch cfg.Store.Driver {
	case config.DriverRedis:
		return redis.NewFromClient(redisClient(), redis.WithPrefix(cfg.Store.Redis.Prefix)), locker, nil
	case config.DriverBadger:
		dir := cfg.Store.Badger.Path
		if cfg.Store.Badger.InMemory {
			dir = ""
		}
		store, err := badger.Open(dir, badger.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return store, locker, nil
	default:
		return memory.NewStore(), locker, nil
	}
}

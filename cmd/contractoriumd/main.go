package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"

	"contractorium/cmd/internal/passphrase"
	"contractorium/config"
	"contractorium/core"
	"contractorium/integrations/webhooks"
	"contractorium/observability/logging"
	telemetry "contractorium/observability/otel"
	"contractorium/rpc"
	"contractorium/services/indexer"
	"contractorium/storage"
)

const (
	operatorPassEnv = "CONTRACTORIUM_OPERATOR_PASS"
	shutdownTimeout = 15 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "contractoriumd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	passSource := passphrase.NewSource(operatorPassEnv, "operator keystore")
	cfg, err := config.Load(configPath, config.WithKeystorePassphraseSource(passSource.Get))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service:    "contractoriumd",
		Env:        cfg.Logging.Env,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "contractoriumd",
		Environment: cfg.Logging.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	genesis, err := buildGenesis(cfg, operatorLoader(cfg, passSource.Get))
	if err != nil {
		return fmt.Errorf("resolve genesis: %w", err)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	node, err := core.NewNode(db, core.Options{
		ChainID:     cfg.ChainID,
		Genesis:     genesis,
		Logger:      logger,
		FeedHistory: cfg.RPC.EventHistory,
	})
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	logger.Info("node ready",
		slog.Uint64("chain_id", node.ChainID()),
		slog.Uint64("height", node.Height()),
		slog.String("state_root", node.StateRoot()))

	var (
		wg   sync.WaitGroup
		errc = make(chan error, 3)
	)

	if cfg.Indexer.Enabled {
		idx, closeIndexer, err := startIndexer(cfg, logger)
		if err != nil {
			return err
		}
		defer closeIndexer()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := idx.Run(ctx, node.Feed()); err != nil {
				errc <- fmt.Errorf("indexer: %w", err)
			}
		}()
	}

	rpcServer := rpc.NewServer(node, rpcServerConfig(cfg, os.Getenv), logger)
	servers := []*http.Server{{
		Addr:              cfg.RPCAddress,
		Handler:           rpcServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	limits := []int{cfg.RPC.MaxConnections}
	if addr := strings.TrimSpace(cfg.MetricsAddress); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		servers = append(servers, &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second})
		limits = append(limits, 0)
	}
	listeners := make([]net.Listener, 0, len(servers))
	for idx, srv := range servers {
		ln, err := listen(srv.Addr, limits[idx])
		if err != nil {
			for _, open := range listeners {
				_ = open.Close()
			}
			return err
		}
		listeners = append(listeners, ln)
	}
	for idx, srv := range servers {
		srv, ln := srv, listeners[idx]
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("listening", slog.String("addr", ln.Addr().String()))
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case runErr = <-errc:
		logger.Error("service failed", slog.Any("error", runErr))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown failed", slog.String("addr", srv.Addr), slog.Any("error", err))
		}
	}
	wg.Wait()
	return runErr
}

// rpcServerConfig maps the [RPC] section onto the server, reading the JWT
// secret from the configured environment variable.
func rpcServerConfig(cfg *config.Config, getenv func(string) string) rpc.ServerConfig {
	out := rpc.ServerConfig{
		MaxBodyBytes:       cfg.RPC.MaxBodyBytes,
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
		JWTIssuer:          cfg.RPC.JWTIssuer,
		JWTAudience:        cfg.RPC.JWTAudience,
	}
	if env := strings.TrimSpace(cfg.RPC.JWTSecretEnv); env != "" {
		out.JWTSecret = strings.TrimSpace(getenv(env))
	}
	return out
}

func startIndexer(cfg *config.Config, logger *slog.Logger) (*indexer.Indexer, func(), error) {
	db, err := indexer.Open(cfg.Indexer.DSN)
	if err != nil {
		return nil, nil, err
	}
	opts := []indexer.Option{indexer.WithLogger(logger.With(slog.String("component", "indexer")))}
	closers := []func(){}
	if url := strings.TrimSpace(cfg.Indexer.WebhookURL); url != "" {
		secret := strings.TrimSpace(os.Getenv(cfg.Indexer.WebhookSecretEnv))
		dispatcher, err := webhooks.NewDispatcher(url, []byte(secret), webhooks.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("webhooks: %w", err)
		}
		opts = append(opts, indexer.WithNotifier(dispatcher))
		closers = append(closers, dispatcher.Close)
	}
	idx, err := indexer.New(db, opts...)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return idx, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

// listen binds addr and, when maxConns is positive, caps the number of
// connections served at once.
func listen(addr string, maxConns int) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	return ln, nil
}

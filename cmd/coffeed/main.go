package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"cryptocoffee/config"
	"cryptocoffee/core"
	"cryptocoffee/core/genesis"
	"cryptocoffee/native/coffee"
	"cryptocoffee/observability/logging"
	telemetry "cryptocoffee/observability/otel"
	"cryptocoffee/rpc"
)

const (
	serviceName = "coffeed"
	envVar      = "COFFEE_ENV"
	genesisEnv  = "COFFEE_GENESIS"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "coffeed: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) > 0 && args[0] == "snapshot" {
		return runSnapshot(args[1:], os.Stdout)
	}
	flags := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	configFile := flags.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flags.String("genesis", "", "Path to a genesis YAML file (overrides COFFEE_GENESIS and config GenesisFile)")
	listenFlag := flags.String("listen", "", "Override the JSON-RPC listen address")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(*listenFlag) != "" {
		cfg.ListenAddress = strings.TrimSpace(*listenFlag)
	}
	env := cfg.Environment
	if fromEnv := strings.TrimSpace(os.Getenv(envVar)); fromEnv != "" {
		env = fromEnv
	}

	var logFile *logging.FileOptions
	if cfg.Log.File != "" {
		logFile = &logging.FileOptions{
			Path:       config.ResolvePath(*configFile, cfg.Log.File),
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		}
	}
	logger := logging.SetupWithOutput(serviceName, env, os.Stdout, logFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
		ChainID:     cfg.ChainID,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	spec, err := loadGenesis(*configFile, *genesisFlag, cfg)
	if err != nil {
		return err
	}
	if spec != nil && spec.ChainID != cfg.ChainID {
		return fmt.Errorf("genesis chain id %d does not match configured ChainID %d", spec.ChainID, cfg.ChainID)
	}

	db, backend, err := openDatabase(*configFile, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	node, err := core.NewNode(db, spec, core.Options{
		FeePolicy: coffee.FeePolicy{AllowZeroPlatformFee: cfg.Fees.AllowZeroPlatformFee},
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if node.ChainID() != cfg.ChainID {
		return fmt.Errorf("%w: stored %d, configured %d", core.ErrChainIDMismatch, node.ChainID(), cfg.ChainID)
	}

	server := rpc.NewServer(node, rpc.ServerConfig{
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: float64(cfg.RateLimit.RequestsPerMinute),
			Burst:             cfg.RateLimit.Burst,
		},
		TrustedProxies: append([]string{}, cfg.RateLimit.TrustedProxies...),
		ServiceName:    serviceName,
	}, logger)

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}
	logger.Info("coffee ledger ready",
		slog.String("network", cfg.NetworkName),
		slog.Uint64("chainId", node.ChainID()),
		slog.String("storage", backend),
		slog.String("listen", listener.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc shutdown failed", slog.Any("error", err))
	}
	return <-errCh
}

// loadGenesis resolves the genesis file from the flag, the environment and the
// config in that order. An empty result means the node must reopen existing
// state.
func loadGenesis(configPath, flagValue string, cfg *config.Config) (*genesis.GenesisSpec, error) {
	path := strings.TrimSpace(flagValue)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(genesisEnv))
	}
	if path == "" {
		path = config.ResolvePath(configPath, strings.TrimSpace(cfg.GenesisFile))
	}
	if path == "" {
		return nil, nil
	}
	spec, err := genesis.LoadGenesisSpec(path)
	if err != nil {
		return nil, fmt.Errorf("load genesis %s: %w", path, err)
	}
	return spec, nil
}

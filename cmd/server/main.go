// Command server runs the custodial swap HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"swap-custodian/internal/config"
	"swap-custodian/internal/ethereum"
	"swap-custodian/internal/logging"
	"swap-custodian/internal/server"
	"swap-custodian/internal/session"
	"swap-custodian/internal/storage"
	"swap-custodian/internal/storage/memory"
	"swap-custodian/internal/storage/migrations"
	"swap-custodian/internal/storage/postgres"
	"swap-custodian/internal/trading"
	"swap-custodian/internal/uniswap"
	"swap-custodian/internal/wallet"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file (default config.yaml)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *useMemory {
		cfg.UseMemoryStore = true
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.ServiceName)

	botAddress, err := ethereum.HexToAddress(cfg.Chain.BotAddress)
	if err != nil {
		return fmt.Errorf("parse bot address: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores
	var (
		keyStore   storage.KeyStore
		tradeStore storage.TradeStore
	)
	if cfg.UseMemoryStore {
		logger.Warn("using in-memory storage, state is lost on restart")
		keyStore = memory.NewKeyStore()
		tradeStore = memory.NewTradeStore()
	} else {
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		keyStore = postgres.NewKeyStore(pool)
		tradeStore = postgres.NewTradeStore(pool)
	}

	// Chain clients
	backend := ethereum.NewHTTPClient(cfg.Chain.RPCURL)

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("query chain id: %w", err)
	}
	if cfg.Chain.ChainID != 0 && chainID.Cmp(big.NewInt(cfg.Chain.ChainID)) != 0 {
		return fmt.Errorf("endpoint chain id %s does not match configured %d", chainID, cfg.Chain.ChainID)
	}

	executorOpts := []trading.Option{
		trading.WithPollInterval(cfg.Chain.ConfirmPollInterval),
	}
	if cfg.Chain.WSURL != "" {
		ws, err := ethereum.NewWSClient(ctx, cfg.Chain.WSURL, nil)
		if err != nil {
			// Head notifications only speed up confirmation; polling
			// still works without them.
			logger.Warn("websocket connect failed, falling back to polling", "err", err)
		} else {
			defer ws.Close()
			executorOpts = append(executorOpts, trading.WithHeads(ws.Heads()))
		}
	}

	// Services
	vault := wallet.NewVault(keyStore)
	sessions := session.NewService(vault)
	reader := uniswap.NewReader(backend)
	executor := trading.NewExecutor(
		backend, reader, vault, tradeStore,
		botAddress, chainID, logger, executorOpts...,
	)

	handler := server.NewHandler(executor, sessions, vault, tradeStore, cfg.OperatorKey, logger)
	router := server.NewRouter(handler, cfg.MetricsPath)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "chain_id", chainID.String(), "bot", botAddress.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

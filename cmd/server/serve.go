package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pantheon/duel-server-go/internal/auth"
	"github.com/pantheon/duel-server-go/internal/config"
	"github.com/pantheon/duel-server-go/internal/deck"
	"github.com/pantheon/duel-server-go/internal/game"
	"github.com/pantheon/duel-server-go/internal/repository"
	"github.com/pantheon/duel-server-go/internal/room"
	"github.com/pantheon/duel-server-go/internal/server"
)

const shutdownTimeout = 10 * time.Second

func serve(parent context.Context, configPath string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting duel server",
		zap.String("version", version),
		zap.String("config", configPath),
		zap.String("deck_source", cfg.Decks.Source),
	)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	source, closeSource, err := openDeckSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	verifier, err := auth.NewVerifier(cfg.Auth.TokenHash)
	if err != nil {
		return fmt.Errorf("invalid auth.token_hash: %w", err)
	}
	if !verifier.Enabled() {
		logger.Warn("connection token not configured; any client may connect")
	}

	hub := server.NewHub(logger)
	registry := room.NewRegistry(logger)
	matchmaker := room.NewMatchmaker(registry, source, hub, hub, logger)
	matchmaker.SetRecorder(game.NewReplayRecorder(logger, cfg.Match.ReplayDir))
	logger.Info("matchmaker initialized",
		zap.Duration("waiting_ttl", cfg.Match.WaitingTTL),
		zap.Duration("sweep_interval", cfg.Match.SweepInterval),
		zap.String("replay_dir", cfg.Match.ReplayDir),
	)

	go matchmaker.CleanupStaleSessions(ctx, cfg.Match.WaitingTTL, cfg.Match.SweepInterval)

	grpcServer, healthServer := server.NewGRPCServer(cfg.Server.GRPC, logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.GRPC.Address, err)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.WebSocket.Path, server.NewWebSocketHandler(ctx, cfg.Server.WebSocket, hub, matchmaker, verifier, logger))
	httpServer := &http.Server{
		Addr:              cfg.Server.WebSocket.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 2)

	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			errChan <- fmt.Errorf("gRPC server: %w", serveErr)
		}
	}()

	go func() {
		logger.Info("starting WebSocket server",
			zap.String("address", cfg.Server.WebSocket.Address),
			zap.String("path", cfg.Server.WebSocket.Path),
		)
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- fmt.Errorf("WebSocket server: %w", serveErr)
		}
	}()

	server.SetServing(healthServer, true)
	logger.Info("duel server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
	)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-parent.Done():
		logger.Info("context cancelled")
	case runErr = <-errChan:
		logger.Error("server failed", zap.Error(runErr))
	}

	logger.Info("shutting down gracefully...")
	server.SetServing(healthServer, false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("WebSocket server shutdown", zap.Error(err))
	}

	hub.CloseAll()
	cancel()
	grpcServer.GracefulStop()

	logger.Info("duel server stopped",
		zap.Int("sessions_left", registry.Len()),
	)
	return runErr
}

// openDeckSource picks the configured deck source. The returned func
// releases whatever the source holds open.
func openDeckSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (game.DeckSource, func(), error) {
	switch cfg.Decks.Source {
	case config.DeckSourceFile:
		src, err := deck.LoadFile(cfg.Decks.File, logger)
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	default:
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
		return repository.NewCardRepository(db, logger), db.Close, nil
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"
	"github.com/rpggio/blossom/internal/authz"
	"github.com/rpggio/blossom/internal/config"
	"github.com/rpggio/blossom/internal/contract"
	"github.com/rpggio/blossom/internal/domain/activity"
	"github.com/rpggio/blossom/internal/domain/allocation"
	"github.com/rpggio/blossom/internal/domain/asset"
	"github.com/rpggio/blossom/internal/domain/order"
	"github.com/rpggio/blossom/internal/domain/projection"
	"github.com/rpggio/blossom/internal/events"
	"github.com/rpggio/blossom/internal/gateway"
	"github.com/rpggio/blossom/internal/ledger"
	"github.com/rpggio/blossom/internal/mcp"
	"github.com/rpggio/blossom/internal/redisstate"
	"github.com/rpggio/blossom/internal/repository"
	"github.com/rpggio/blossom/internal/sqlite"
	"github.com/rpggio/blossom/internal/transport"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Stdout carries the protocol stream in stdio mode.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		return err
	}
	if err := db.EnsureRecordFormat(ctx); err != nil {
		return err
	}

	state, closeState, err := openWorldState(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeState()

	publisher, closePublisher, err := openPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	policy, err := authz.NewPolicy(cfg.Ledger.AdminMSP, cfg.Policy)
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	directory, err := authz.NewStaticDirectory(cfg.Ledger.AdminMSP, cfg.Accounts)
	if err != nil {
		return fmt.Errorf("accounts: %w", err)
	}

	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), logger)
	executor := ledger.NewExecutor(state, cfg.Ledger.AdminMSP,
		ledger.WithEventPublisher(publisher),
		ledger.WithTxLogger(activitySvc),
		ledger.WithLogger(logger),
	)
	gw := gateway.New(executor, gateway.Options{
		MaxRetries:      cfg.Gateway.MaxRetries,
		InitialInterval: cfg.Gateway.InitialInterval,
	}, logger)

	handler := contract.NewHandler(gw, contract.Services{
		Assets:      asset.NewService(policy, logger),
		Orders:      order.NewService(policy, directory, logger),
		Allocations: allocation.NewService(policy, directory, logger),
		Projections: projection.NewService(policy, logger),
		Activity:    activitySvc,
		Authorizer:  policy,
	})

	var resolver transport.IdentityResolver
	if cfg.Auth.Enabled {
		jwtResolver, err := transport.NewJWTResolver(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			return err
		}
		resolver = jwtResolver
	}

	mcpServer := mcp.NewServer(mcp.Config{
		Handler:       handler,
		Resolver:      resolver,
		AuthEnabled:   cfg.Auth.Enabled,
		DefaultMSP:    cfg.Auth.DefaultMSP,
		TransportMode: cfg.Transport.Mode,
		Version:       version,
		Logger:        logger,
	})

	if cfg.Transport.Mode == "stdio" {
		return runStdioMode(logger, mcpServer)
	}

	identity := transport.HeaderMiddleware(cfg.Auth.DefaultMSP)
	if cfg.Auth.Enabled {
		identity = transport.AuthMiddleware(resolver)
	}
	router := transport.NewServer(handler, transport.Options{
		Identity: identity,
		MCP:      mcp.NewHTTPHandler(mcpServer),
		Logger:   logger,
	})
	return runHTTPMode(logger, router, cfg.Server.Host, cfg.Server.Port, cfg.Auth.Enabled)
}

func openWorldState(ctx context.Context, cfg config.Config, db *sqlite.DB) (repository.WorldState, func(), error) {
	switch cfg.Ledger.Store {
	case "memory":
		return ledger.NewMemoryState(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		return redisstate.New(client, cfg.Redis.Prefix), func() { _ = client.Close() }, nil
	default:
		return sqlite.NewStateRepository(db), func() {}, nil
	}
}

func openPublisher(cfg config.Config, logger *slog.Logger) (ledger.EventPublisher, func(), error) {
	pubs := events.Multi{events.NewLogPublisher(logger)}
	if len(cfg.Events.KafkaBrokers) == 0 {
		return pubs, func() {}, nil
	}
	kafka, err := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.Topic)
	if err != nil {
		return nil, nil, err
	}
	return append(pubs, kafka), func() { _ = kafka.Close() }, nil
}

func runStdioMode(logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run blocks until stdin closes or context is canceled
	if err := mcp.RunStdio(ctx, mcpServer); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

func runHTTPMode(logger *slog.Logger, handler http.Handler, host string, port int, auth bool) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr, "auth", auth)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return waitForShutdown(logger, httpServer, errCh)
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func waitForShutdown(logger *slog.Logger, server *http.Server, errCh <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	mcpadapter "github.com/flamedesk/flamedesk/internal/adapter/driven/mcp"
	sessionadapter "github.com/flamedesk/flamedesk/internal/adapter/driven/session"
	sqliteadapter "github.com/flamedesk/flamedesk/internal/adapter/driven/sqlite"
	httphandler "github.com/flamedesk/flamedesk/internal/adapter/driving/http"
	"github.com/flamedesk/flamedesk/internal/application"
	"github.com/flamedesk/flamedesk/internal/config"
	"github.com/flamedesk/flamedesk/internal/domain/model"
	"github.com/flamedesk/flamedesk/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"session_auth", cfg.HasSessionSecret(),
		"mcp_base_url", cfg.MCPBaseURL,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	keyStore := sqliteadapter.NewAPIKeyRepo(db)
	userStore := sqliteadapter.NewUserRepo(db)
	vaultStore := sqliteadapter.NewVaultRepo(db)

	var sessions driven.SessionVerifier
	if cfg.HasSessionSecret() {
		sessions = sessionadapter.NewVerifier(cfg.SessionSecret)
		slog.Info("session auth enabled")
	} else {
		slog.Info("no session secret configured, api key auth only")
	}

	var tools driven.ToolCaller
	if cfg.HasMCPBaseURL() {
		client, err := mcpadapter.NewClient(cfg.MCPBaseURL)
		if err != nil {
			return err
		}
		tools = client
		slog.Info("tool server configured", "base_url", cfg.MCPBaseURL)
	} else {
		tools = unavailableToolCaller{}
		slog.Info("no tool server configured, assistant tool route disabled")
	}

	if cfg.VaultSecret == "" {
		slog.Warn("no vault secret configured, assistant credentials unavailable")
	}

	// 6. Wire application services.
	authSvc := application.NewAuthService(keyStore, userStore, sessions, slog.Default())
	keySvc := application.NewKeyService(keyStore, vaultStore, slog.Default())
	vaultSvc := application.NewVaultService(keyStore, vaultStore, cfg.VaultSecret, slog.Default())
	assistantSvc := application.NewAssistantService(vaultSvc, tools, slog.Default())

	// 7. Create HTTP handler and register routes with middleware applied.
	apiHandler := httphandler.NewHandler(authSvc, keySvc, assistantSvc, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 8. Log startup complete.
	slog.Info("flamedesk started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout to drain in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// unavailableToolCaller stands in when no tool server endpoint is configured.
type unavailableToolCaller struct{}

func (unavailableToolCaller) CallTool(context.Context, string, string, map[string]any) (*model.ToolResult, error) {
	return nil, errors.New("no tool server configured: set FLAMEDESK_MCP_BASE_URL")
}

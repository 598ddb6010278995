package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filemanager/internal/api"
	"filemanager/internal/config"
	"filemanager/internal/gate"
	"filemanager/internal/logger"
	"filemanager/internal/session"
	"filemanager/internal/web"

	"github.com/jonboulle/clockwork"
	_ "github.com/joho/godotenv/autoload"
)

const sweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	logger.SetDefault(log)

	slog.Info("Starting web client",
		"port", cfg.Web.Port,
		"api_url", cfg.APIURL,
		"session_store", cfg.Session.Store,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the session store shared with fmctl
	store, err := cfg.OpenSessionStore(ctx)
	if err != nil {
		slog.Error("Failed to open session store", "store", cfg.Session.Store, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	order, err := cfg.TokenOrder()
	if err != nil {
		slog.Error("Invalid token source order", "error", err)
		os.Exit(1)
	}

	tokens := session.NewTokenStore(store)
	client := api.NewClient(cfg.APIURL, log,
		api.WithTokenSource(tokens),
		api.WithTimeout(cfg.HTTPTimeout),
	)
	sessions := session.NewManager(tokens, client,
		session.WithLogger(log),
		session.WithTokenOrder(order),
	)
	sessions.Bootstrap(ctx)
	if id, ok := sessions.CurrentIdentity(); ok {
		slog.Info("Restored session", "email", id.Email)
	}

	visits := web.NewVisitRegistry(client, cfg.Verification.VisitTTL, cfg.Verification.RedirectDelay, clockwork.NewRealClock(), log)
	go visits.Run(ctx, sweepInterval)

	files, err := web.NewFileProxy(cfg.APIURL, sessions, log)
	if err != nil {
		slog.Error("Failed to create file proxy", "error", err)
		os.Exit(1)
	}

	// Setup router
	router := web.SetupRouter(web.Deps{
		Handler:        web.NewHandler(sessions, client, visits, log),
		Gate:           gate.New(sessions, nil, log),
		Files:          files,
		AllowedOrigins: cfg.Web.AllowedOrigins,
		Logger:         log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Web.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Web client listening", "port", cfg.Web.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	<-ctx.Done()
	slog.Info("Shutting down web client")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Web client stopped")
}

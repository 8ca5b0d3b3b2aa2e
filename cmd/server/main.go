package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/kliewerdaniel/steinbot/internal/app"
	"github.com/kliewerdaniel/steinbot/internal/config"
	"github.com/kliewerdaniel/steinbot/internal/logging"
	"github.com/kliewerdaniel/steinbot/internal/server"
	"github.com/kliewerdaniel/steinbot/internal/telemetry"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatal("Failed to load configuration", "path", cfgPath, "err", err)
	}
	cfg.ApplyEnv()
	logging.Setup(cfg.Log)
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", "err", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize components", "err", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.NewServer(a).SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting server", "port", cfg.Server.Port, "domain", cfg.Retrieval.Domain)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
	_ = a.Close(shutdownCtx)
	_ = providers.Shutdown(shutdownCtx)
}

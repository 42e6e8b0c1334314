package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathanpberger/typingpool/internal/api"
	"github.com/jonathanpberger/typingpool/internal/api/middleware"
	"github.com/jonathanpberger/typingpool/internal/config"
	"github.com/jonathanpberger/typingpool/internal/logger"
	"github.com/jonathanpberger/typingpool/internal/project"
	"github.com/jonathanpberger/typingpool/internal/repository"
	"github.com/jonathanpberger/typingpool/internal/service"
	"github.com/jonathanpberger/typingpool/internal/taskpage"
)

func main() {
	appLogger := logger.NewFromEnv(nil)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// CONFIG_PATH is honored for deployments that cannot pass flags
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// The result cache is optional; without it /results is empty.
	var results service.ResultLister
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Warn("Result cache unavailable")
	} else {
		results = repository.NewResultRepository(db, cfg.Fields.Identifiers())
		defer repository.Close(db)
	}

	renderer, err := taskpage.New(taskpage.Options{Fields: cfg.Fields.Identifiers()})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load templates")
	}

	router := api.SetupRouter(api.RouterOptions{
		Mode:     cfg.Server.Mode,
		Root:     cfg.Transcripts,
		Status:   service.NewStatusService(project.NewFinder(cfg.Transcripts), results),
		Renderer: renderer,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":        cfg.Server.Port,
			"mode":        cfg.Server.Mode,
			"transcripts": cfg.Transcripts,
		}).Info("Starting status API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}

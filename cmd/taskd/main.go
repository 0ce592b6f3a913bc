package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tasklab/taskd/internal/config"
	handlers "github.com/tasklab/taskd/internal/http"
	"github.com/tasklab/taskd/internal/logger"
	"github.com/tasklab/taskd/internal/middleware"
	"github.com/tasklab/taskd/internal/repository"
	"github.com/tasklab/taskd/internal/service"
)

func main() {
	logrusLogger := logger.Init("taskd")

	cfg, err := config.Load()
	if err != nil {
		logrusLogger.WithError(err).Fatal("failed to load config")
	}

	var repo repository.TaskRepository
	switch cfg.StoreDriver {
	case "postgres":
		postgresRepo, err := repository.NewPostgresTaskRepository(cfg.DB.DSN())
		if err != nil {
			logrusLogger.WithError(err).Fatal("failed to connect to database")
		}
		repo = postgresRepo
	case "sqlite":
		sqliteRepo, err := repository.NewSQLiteTaskRepository(cfg.DB.SQLitePath())
		if err != nil {
			logrusLogger.WithError(err).Fatal("failed to open database")
		}
		repo = sqliteRepo
	default:
		repo = repository.NewMemoryTaskRepository()
	}
	if closer, ok := repo.(io.Closer); ok {
		defer closer.Close()
	}

	taskService := service.NewTaskService(repo)

	if cfg.SeedDemo {
		seedDemoTasks(taskService, logrusLogger)
	}

	middleware.RegisterTaskGauges(func() middleware.TaskStats {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		stats, err := taskService.Stats(ctx)
		if err != nil {
			logrusLogger.WithError(err).Warn("failed to collect task stats")
			return middleware.TaskStats{}
		}
		return middleware.TaskStats{
			Total:     stats.Total,
			Completed: stats.Completed,
			Pending:   stats.Pending,
		}
	})

	taskHandler := handlers.NewTaskHandler(taskService, logrusLogger, cfg.Environment, cfg.StoreDriver)

	mux := handlers.NewMux(taskHandler)

	// Middleware chain (order matters).
	handler := middleware.RequestIDMiddleware(mux)
	handler = middleware.SecurityHeadersMiddleware(handler)
	handler = middleware.MetricsMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logrusLogger.WithFields(logrus.Fields{
			"port":  cfg.HTTPPort,
			"store": cfg.StoreDriver,
		}).Info("taskd service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrusLogger.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrusLogger.Info("shutting down taskd...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrusLogger.WithError(err).Error("shutdown error")
	}
}

// seedDemoTasks preloads a few sample tasks so a fresh container has
// something to show.
func seedDemoTasks(ts *service.TaskService, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	seeds := []struct{ title, description string }{
		{"Learn the API", "Walk through the endpoints under /api/tasks"},
		{"Wire up monitoring", "Scrape /metrics with Prometheus"},
		{"Add persistence", "Switch STORE_DRIVER to postgres or sqlite"},
	}
	for _, s := range seeds {
		if _, err := ts.Create(ctx, s.title, s.description); err != nil {
			log.Warnf("failed to seed task %q: %v", s.title, err)
		}
	}
}

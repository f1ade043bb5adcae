package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mhalvorsen/fetchd/internal/config"
	"github.com/mhalvorsen/fetchd/internal/constants"
	"github.com/mhalvorsen/fetchd/internal/domain"
	"github.com/mhalvorsen/fetchd/internal/downloader"
	"github.com/mhalvorsen/fetchd/internal/format"
	"github.com/mhalvorsen/fetchd/internal/httpapp"
	"github.com/mhalvorsen/fetchd/internal/jobs"
	"github.com/mhalvorsen/fetchd/internal/logger"
	"github.com/mhalvorsen/fetchd/internal/network"
	"github.com/mhalvorsen/fetchd/internal/notify"
	"github.com/mhalvorsen/fetchd/internal/resolver"
	"github.com/mhalvorsen/fetchd/internal/scheduler"
	"github.com/mhalvorsen/fetchd/internal/store"
	"github.com/mhalvorsen/fetchd/internal/ytdlp"
)

func main() {
	cfg := config.Load()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		appLogger.Error("Failed to init DB", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Jobs left active by a previous run were interrupted mid-download; put
	// them back in the queue so they get picked up again.
	if err := db.ResetStuckJobs(); err != nil {
		appLogger.Error("Failed to reset stuck jobs", "error", err)
	}

	netInfo := network.Static{Metered: cfg.NetworkMetered}
	infoClient := resolver.NewClient(cfg.ToolBinary)
	formatResolver := format.NewResolver(cfg.VideoFormatIDs, cfg.DefaultContainer, db)
	factory := jobs.NewFactory(cfg, formatResolver)
	notifier := notify.NewLogNotifier(appLogger)

	worker := downloader.NewWorker(
		db,
		ytdlp.NewSynthesizer(cfg),
		ytdlp.NewExecutor(cfg.ToolBinary),
		infoClient,
		notifier,
		cfg,
		appLogger,
	)

	sched := scheduler.New(worker, netInfo, appLogger, constants.NetworkPollInterval)
	defer sched.Close()

	queue := jobs.NewQueue(db, sched, netInfo, cfg, appLogger)

	// Re-schedule whatever was queued when the previous run stopped.
	if queued, err := db.ListJobsByStatus(domain.StatusQueued); err != nil {
		appLogger.Error("Failed to list queued jobs", "error", err)
	} else {
		for _, job := range queued {
			sched.Schedule(scheduler.Request{
				JobID:            job.ID,
				RequireUnmetered: !cfg.AllowMeteredNetwork,
			})
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := httpapp.NewHandler(db, queue, factory, infoClient, appLogger)
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		appLogger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	appLogger.Info("Server exiting")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/reway/app/api"
	"github.com/lysyi3m/reway/app/cfg"
	"github.com/lysyi3m/reway/app/database"
	"github.com/lysyi3m/reway/app/enrich"
	"github.com/lysyi3m/reway/app/icons"
	"github.com/lysyi3m/reway/app/progress"
	"github.com/lysyi3m/reway/app/tasks"
	"github.com/lysyi3m/reway/app/workspace"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogger(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting Reway", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	slog.Info("Connected to database", "path", appCfg.DBPath)

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database migrations applied", "version", version, "dirty", dirty)

	iconRegistry, err := icons.Get()
	if err != nil {
		return fmt.Errorf("failed to load icons: %w", err)
	}

	bookmarkRepo := database.NewBookmarkRepository(db)
	groupRepo := database.NewGroupRepository(db)

	ws := workspace.New(bookmarkRepo, groupRepo, appCfg.UndoWindowDuration())
	if err := loadWorkspace(context.Background(), ws, bookmarkRepo, groupRepo); err != nil {
		return err
	}

	progressStore, err := newProgressStore(appCfg.RedisAddr)
	if err != nil {
		return err
	}
	defer progressStore.Close()

	httpClient := &http.Client{Timeout: appCfg.FetchTimeoutDuration()}
	fetcher := enrich.NewFetcher(httpClient, appCfg.UserAgent, appCfg.FetchTimeoutDuration())
	enricher := enrich.NewService(fetcher, bookmarkRepo)

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerIntervalDuration())
	scheduler := tasks.NewScheduler(ws, enricher, bookmarkRepo, appCfg.SchedulerIntervalDuration(), appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()

	tracker := tasks.NewImportTracker(progressStore)
	handler := api.NewHandler(ws, bookmarkRepo, groupRepo, enricher, scheduler, tracker,
		iconRegistry, appCfg.ImportConcurrency, appCfg.Version)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		return err
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return nil
}

func loadWorkspace(ctx context.Context, ws *workspace.Workspace, bookmarkRepo *database.BookmarkRepository, groupRepo *database.GroupRepository) error {
	bookmarks, err := bookmarkRepo.ListBookmarks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load bookmarks: %w", err)
	}
	groups, err := groupRepo.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("failed to load groups: %w", err)
	}

	ws.Load(bookmarks, groups)
	slog.Info("Workspace loaded", "bookmarks", len(bookmarks), "groups", len(groups))
	return nil
}

func newProgressStore(redisAddr string) (progress.Store, error) {
	if redisAddr == "" {
		return progress.NewMemoryStore(progress.DefaultTTL), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := progress.NewRedisStore(ctx, redisAddr, progress.DefaultTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress store: %w", err)
	}
	return store, nil
}

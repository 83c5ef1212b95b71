package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/smoky1337/PfotenRegister/internal/config"
	"github.com/smoky1337/PfotenRegister/internal/core"
	"github.com/smoky1337/PfotenRegister/internal/logging"
	"github.com/smoky1337/PfotenRegister/internal/storage/memory"
	"github.com/smoky1337/PfotenRegister/internal/storage/postgres"
	"github.com/smoky1337/PfotenRegister/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"driver", cfg.Storage.Driver,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	service, err := core.NewService(store, serviceOptions(cfg))
	if err != nil {
		return err
	}
	server := web.NewServer(service, cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Server.Addr())
		if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		service.StartUploadJanitor(gctx, core.JanitorConfig{
			MaxAge:   cfg.Import.UploadMaxAge,
			Interval: cfg.Import.CleanupInterval,
		})
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.ImportStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStore connects the configured storage driver.
func openStore(ctx context.Context, cfg *config.Config) (core.Store, func(), error) {
	if strings.EqualFold(cfg.Storage.Driver, config.DriverMemory) {
		slog.Warn("using in-memory storage; data is lost on restart")
		return memory.New(), func() {}, nil
	}

	store, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return store, store.Close, nil
}

func serviceOptions(cfg *config.Config) core.ServiceOptions {
	return core.ServiceOptions{
		UploadDir:     cfg.Import.TempDir,
		MaxFileSize:   cfg.Import.MaxFileSize,
		PreviewRows:   cfg.Import.PreviewRows,
		ImportTimeout: cfg.Import.Timeout,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxImportWait: cfg.Import.MaxWaitTime,
		NumberPattern: cfg.Numbering.DefaultPattern,
		Sheet:         core.SheetOptions{BlankRowLimit: cfg.Import.BlankRowLimit},
		LookupChunk:   cfg.Import.LookupChunkSize,
		BatchSize:     cfg.Import.BatchSize,
		SampleLimit:   cfg.Import.SampleLimit,
		CodeLength:    cfg.Import.CodeLength,
	}
}

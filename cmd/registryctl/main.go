// registryctl is the operator CLI for bulk spreadsheet import and export.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/smoky1337/PfotenRegister/internal/admin"
	"github.com/smoky1337/PfotenRegister/internal/config"
	"github.com/smoky1337/PfotenRegister/internal/core"
	"github.com/smoky1337/PfotenRegister/internal/logging"
	"github.com/smoky1337/PfotenRegister/internal/storage/memory"
	"github.com/smoky1337/PfotenRegister/internal/storage/postgres"
)

// Global flags
var (
	envFile     string
	driverFlag  string
	databaseURL string
	logLevel    string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", core.FormatUserError(err))
		slog.Debug("command failed", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "registryctl",
	Short: "Bulk import and export of the guest and animal registry",
	Long: `registryctl imports guests and animals from .xlsx workbooks with the sheets
"gaeste" and "tiere", exports them again and manages the number settings.

Configuration is read from the environment (and a .env file), the same way
the server reads it. Flags override the environment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load variables from this file instead of ./.env")
	rootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "Storage driver: postgres or memory (overrides STORAGE_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
}

// loadConfig reads the environment with the global flags layered on top.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	overrides := map[string]string{
		"STORAGE_DRIVER": driverFlag,
		"DATABASE_URL":   databaseURL,
		"LOG_LEVEL":      logLevel,
	}
	cfg, err := config.LoadFrom(func(key string) string {
		if v := overrides[key]; v != "" {
			return v
		}
		return os.Getenv(key)
	})
	if err != nil {
		return nil, err
	}

	// Logs go to stderr so that stdout stays machine readable.
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))
	return cfg, nil
}

// app bundles what a command needs.
type app struct {
	cfg     *config.Config
	store   registryStore
	service *core.Service
	close   func()
}

// registryStore is what both storage drivers provide.
type registryStore interface {
	core.Store
	admin.Truncater
}

func openStore(ctx context.Context, cfg *config.Config) (registryStore, func(), error) {
	if strings.EqualFold(cfg.Storage.Driver, config.DriverMemory) {
		slog.Warn("using in-memory storage; nothing is persisted")
		return memory.New(), func() {}, nil
	}
	store, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	service, err := core.NewService(store, core.ServiceOptions{
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
	})
	if err != nil {
		closeStore()
		return nil, err
	}
	return &app{cfg: cfg, store: store, service: service, close: closeStore}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

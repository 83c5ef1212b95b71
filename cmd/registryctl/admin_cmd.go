package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smoky1337/PfotenRegister/internal/admin"
	"github.com/smoky1337/PfotenRegister/internal/config"
	"github.com/smoky1337/PfotenRegister/internal/storage/postgres"
)

var (
	resetConfirm  bool
	resetSettings bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the PostgreSQL schema",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all guests, representatives and animals",
	Long: `Empties the registry tables and resets the number counters.
Settings are kept unless --settings is given. This cannot be undone and
requires --yes.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetConfirm, "yes", false, "Confirm the reset")
	resetCmd.Flags().BoolVar(&resetSettings, "settings", false, "Also delete all settings")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(resetCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if strings.EqualFold(cfg.Storage.Driver, config.DriverMemory) {
		return errors.New("migrate needs the postgres driver")
	}

	store, err := postgres.Connect(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetConfirm {
		return errors.New("reset deletes the whole registry; pass --yes to confirm")
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	r := &admin.Reset{Store: a.store, IncludeSettings: resetSettings}
	if err := r.Run(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "emptied %s\n", strings.Join(r.Targets(), ", "))
	return nil
}

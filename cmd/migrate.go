package cmd

import (
	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/chrisdamba/menuflow/internal/store"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the PostgreSQL schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		_, log, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := models.LoadDatabaseConfig()
		if err != nil {
			return err
		}
		down := len(args) == 1 && args[0] == "down"
		return errors.Wrap(store.Migrate(db.DSN(), down, log), "migrate")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

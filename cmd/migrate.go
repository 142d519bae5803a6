package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-paylink/app/repository"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the database schema",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(repository.MigrateUp), string(repository.MigrateDown)},
	Run: func(_ *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		db := mustOpenDB(cfg)
		defer func() {
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close database")
			}
		}()

		direction := repository.MigrateDirection(args[0])
		if err := repository.Migrate(db, direction); err != nil {
			logrus.WithError(err).WithField("direction", direction).Fatal("Migration failed")
		}
		logrus.WithField("direction", direction).Info("Migration completed")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

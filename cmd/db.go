package cmd

import (
	"github.com/emrgen/linkstore/internal/config"
	"github.com/emrgen/linkstore/internal/store"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "db commands",
}

func init() {
	dbCmd.AddCommand(Migrate())
}

func Migrate() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.LoadConfig()
			// NewStore migrates on open
			s, err := store.NewStore(cfg)
			if err != nil {
				logrus.Error(err)
				return
			}
			defer s.Close()

			color.Green("migrated %s store", cfg.DB.Driver)
		},
	}

	return command
}

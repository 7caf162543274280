package cmd

import (
	"github.com/emrgen/linkstore/internal/config"
	"github.com/emrgen/linkstore/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd())
}

func serveCmd() *cobra.Command {
	var httpPort string

	command := &cobra.Command{
		Use:   "serve",
		Short: "start the grpc server and the rest gateway",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.LoadConfig()
			if cmd.Flag("port").Changed {
				cfg.GrpcPort = grpcPort
			}
			if httpPort != "" {
				cfg.HttpPort = httpPort
			}

			if err := server.Start(cfg); err != nil {
				logrus.Fatalf("error starting server: %v", err)
			}
		},
	}

	command.Flags().StringVarP(&httpPort, "http-port", "", "", "http port of the rest gateway")

	return command
}

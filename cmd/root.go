package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var grpcPort string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "linkstore",
	Short: "record and link store tool",
	Example: `linkstore serve
linkstore db migrate
linkstore record create -c <cluster> -k <class> -f name=alice -l friends=3:1,3:2
linkstore record get -i <rid>
linkstore record delete -i <rid>
linkstore link add -i <rid> -f <field> -l <rid>,<rid>
linkstore link remove -i <rid> -f <field> -l <rid>
linkstore link list -i <rid> -f <field>
linkstore index define -n <name> -k <class> -f <field>
linkstore index query -n <name> -v <value>
linkstore tree audit`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	defaultPort := os.Getenv("GRPC_PORT")
	if defaultPort == "" {
		defaultPort = "4020"
	}
	rootCmd.PersistentFlags().StringVar(&grpcPort, "port", defaultPort, "grpc port of the linkstore server")

	rootCmd.AddCommand(dbCmd)
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}

package cmd

import (
	"context"
	"strconv"
	"strings"

	v1 "github.com/emrgen/linkstore/apis/v1"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "index commands",
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	indexCmd.AddCommand(defineIndexCmd())
	indexCmd.AddCommand(queryIndexCmd())
}

func defineIndexCmd() *cobra.Command {
	var name string
	var class string
	var fields []string

	var required = []string{"name", "class", "fields"}

	command := &cobra.Command{
		Use:     "define",
		Short:   "define an index over record fields",
		Example: "linkstore index define -n person_friends -k Person -f friends",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			client, err := newClient()
			if err != nil {
				logrus.Error(err)
				return
			}
			defer client.Close()

			res, err := client.DefineIndex(context.Background(), &v1.DefineIndexRequest{Name: name, Class: class, Fields: fields})
			if err != nil {
				logrus.Error(err)
				return
			}

			printField("Index", res.Name)
			printField("Keys", strconv.Itoa(res.Keys))
		},
	}

	command.Flags().StringVarP(&name, "name", "n", "", "index name")
	command.Flags().StringVarP(&class, "class", "k", "", "record class")
	command.Flags().StringSliceVarP(&fields, "fields", "f", nil, "indexed fields in key order")

	return command
}

func queryIndexCmd() *cobra.Command {
	var name string
	var values []string

	var required = []string{"name"}

	command := &cobra.Command{
		Use:     "query",
		Short:   "list the records indexed under the given values",
		Example: "linkstore index query -n person_friends -v '#1:4'",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			client, err := newClient()
			if err != nil {
				logrus.Error(err)
				return
			}
			defer client.Close()

			res, err := client.QueryIndex(context.Background(), &v1.QueryIndexRequest{Name: name, Values: values})
			if err != nil {
				logrus.Error(err)
				return
			}

			if len(res.Records) == 0 {
				color.Yellow("no records")
				return
			}
			printField("Records", strings.Join(res.Records, ", "))
		},
	}

	command.Flags().StringVarP(&name, "name", "n", "", "index name")
	command.Flags().StringSliceVarP(&values, "values", "v", nil, "one value per indexed field")

	return command
}

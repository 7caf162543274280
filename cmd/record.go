package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	v1 "github.com/emrgen/linkstore/apis/v1"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "record commands",
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	recordCmd.AddCommand(createRecordCmd())
	recordCmd.AddCommand(getRecordCmd())
	recordCmd.AddCommand(deleteRecordCmd())
}

func createRecordCmd() *cobra.Command {
	var cluster int32
	var class string
	var fields []string
	var links []string

	var required = []string{"cluster", "class"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create a record",
		Long:    `create a record with scalar fields and link fields`,
		Example: "linkstore record create -c 1 -k Person -f name=alice -f age=31 -l friends=1:4,1:7",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			assigned, err := parseAssignments(fields)
			if err != nil {
				color.Red(err.Error())
				return
			}
			linked, err := parseAssignments(links)
			if err != nil {
				color.Red(err.Error())
				return
			}

			req := &v1.CreateRecordRequest{
				Cluster: cluster,
				Class:   class,
				Fields:  make(map[string]any, len(assigned)),
				Links:   linked,
			}
			for field, values := range assigned {
				req.Fields[field] = parseScalar(values[len(values)-1])
			}

			client, err := newClient()
			if err != nil {
				logrus.Error(err)
				return
			}
			defer client.Close()

			res, err := client.CreateRecord(context.Background(), req)
			if err != nil {
				logrus.Error(err)
				return
			}

			printRecord(res.Record)
		},
	}

	command.Flags().Int32VarP(&cluster, "cluster", "c", 0, "cluster of the record")
	command.Flags().StringVarP(&class, "class", "k", "", "class of the record")
	command.Flags().StringArrayVarP(&fields, "field", "f", nil, "scalar field as name=value")
	command.Flags().StringArrayVarP(&links, "links", "l", nil, "link field as name=<rid>,<rid>")

	return command
}

func getRecordCmd() *cobra.Command {
	var id string

	var required = []string{"id"}

	command := &cobra.Command{
		Use:     "get",
		Short:   "get a record",
		Example: "linkstore record get -i 1:0",
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

			res, err := client.GetRecord(context.Background(), &v1.GetRecordRequest{Id: id})
			if err != nil {
				logrus.Error(err)
				return
			}

			printRecord(res.Record)
		},
	}

	command.Flags().StringVarP(&id, "id", "i", "", "rid of the record")

	return command
}

func deleteRecordCmd() *cobra.Command {
	var id string

	var required = []string{"id"}

	command := &cobra.Command{
		Use:     "delete",
		Short:   "delete a record and release its link trees",
		Example: "linkstore record delete -i 1:0",
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

			res, err := client.DeleteRecord(context.Background(), &v1.DeleteRecordRequest{Id: id})
			if err != nil {
				logrus.Error(err)
				return
			}

			color.Green("deleted %s", res.Id)
		},
	}

	command.Flags().StringVarP(&id, "id", "i", "", "rid of the record")

	return command
}

func printRecord(record *v1.Record) {
	printField("ID", record.Id)
	printField("Class", record.Class)
	printField("Version", strconv.FormatInt(record.Version, 10))

	if len(record.Fields) > 0 {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Field", "Value"})
		for field, value := range record.Fields {
			table.Append([]string{field, fmt.Sprint(value)})
		}
		table.Render()
	}

	if len(record.Bags) > 0 {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Links", "Size", "Mode", "Tree"})
		for field, bag := range record.Bags {
			table.Append([]string{field, strconv.Itoa(bag.Size), bagMode(bag), bag.Tree})
		}
		table.Render()
	}
}

func bagMode(bag v1.Bag) string {
	if bag.Embedded {
		return "embedded"
	}

	return "external"
}

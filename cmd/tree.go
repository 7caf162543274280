package cmd

import (
	"context"
	"os"
	"strconv"

	v1 "github.com/emrgen/linkstore/apis/v1"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "link tree commands",
}

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	treeCmd.AddCommand(auditTreesCmd())
}

func auditTreesCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "audit",
		Short: "compare every link tree with its entries and its owner",
		Run: func(cmd *cobra.Command, args []string) {
			client, err := newClient()
			if err != nil {
				logrus.Error(err)
				return
			}
			defer client.Close()

			res, err := client.AuditTrees(context.Background(), &v1.AuditTreesRequest{})
			if err != nil {
				logrus.Error(err)
				return
			}

			printField("Trees", strconv.Itoa(res.Trees))
			if len(res.Drifts) == 0 {
				color.Green("no drift")
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Tree", "Owner", "Field", "Counted", "Stored", "Orphaned"})
			for _, d := range res.Drifts {
				table.Append([]string{
					d.Tree,
					d.Owner,
					d.Field,
					strconv.FormatInt(d.Counted, 10),
					strconv.FormatInt(d.Stored, 10),
					strconv.FormatBool(d.Orphaned),
				})
			}
			table.Render()
		},
	}

	return command
}

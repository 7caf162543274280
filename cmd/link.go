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

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "link commands",
}

func init() {
	rootCmd.AddCommand(linkCmd)
	linkCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	linkCmd.AddCommand(addLinkCmd())
	linkCmd.AddCommand(removeLinkCmd())
	linkCmd.AddCommand(listLinksCmd())
}

func addLinkCmd() *cobra.Command {
	var id string
	var field string
	var links []string

	var required = []string{"id", "field", "links"}

	command := &cobra.Command{
		Use:     "add",
		Short:   "add links to a record field",
		Example: "linkstore link add -i 1:0 -f friends -l 1:4,1:4",
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

			res, err := client.AddLinks(context.Background(), &v1.AddLinksRequest{Id: id, Field: field, Links: links})
			if err != nil {
				logrus.Error(err)
				return
			}

			printBag(field, res.Bag)
		},
	}

	command.Flags().StringVarP(&id, "id", "i", "", "rid of the record")
	command.Flags().StringVarP(&field, "field", "f", "", "link field")
	command.Flags().StringSliceVarP(&links, "links", "l", nil, "rids to link")

	return command
}

func removeLinkCmd() *cobra.Command {
	var id string
	var field string
	var links []string

	var required = []string{"id", "field", "links"}

	command := &cobra.Command{
		Use:     "remove",
		Short:   "remove one occurrence per given link",
		Example: "linkstore link remove -i 1:0 -f friends -l 1:4",
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

			res, err := client.RemoveLinks(context.Background(), &v1.RemoveLinksRequest{Id: id, Field: field, Links: links})
			if err != nil {
				logrus.Error(err)
				return
			}

			if res.Removed < len(links) {
				color.Yellow("%d of %d links were not present", len(links)-res.Removed, len(links))
			}
			printBag(field, res.Bag)
		},
	}

	command.Flags().StringVarP(&id, "id", "i", "", "rid of the record")
	command.Flags().StringVarP(&field, "field", "f", "", "link field")
	command.Flags().StringSliceVarP(&links, "links", "l", nil, "rids to unlink")

	return command
}

func listLinksCmd() *cobra.Command {
	var id string
	var field string
	var offset int
	var limit int

	var required = []string{"id", "field"}

	command := &cobra.Command{
		Use:     "list",
		Short:   "list the links of a record field",
		Example: "linkstore link list -i 1:0 -f friends --limit 20",
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

			res, err := client.ListLinks(context.Background(), &v1.ListLinksRequest{Id: id, Field: field, Offset: offset, Limit: limit})
			if err != nil {
				logrus.Error(err)
				return
			}

			printBag(field, res.Bag)

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"#", "Primary", "Secondary"})
			for i, link := range res.Links {
				table.Append([]string{strconv.Itoa(offset + i), link.Primary, link.Secondary})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&id, "id", "i", "", "rid of the record")
	command.Flags().StringVarP(&field, "field", "f", "", "link field")
	command.Flags().IntVarP(&offset, "offset", "o", 0, "links to skip")
	command.Flags().IntVarP(&limit, "limit", "n", 100, "links to show")

	return command
}

func printBag(field string, bag v1.Bag) {
	printField("Field", field)
	printField("Size", strconv.Itoa(bag.Size))
	printField("Mode", bagMode(bag))
	if bag.Tree != "" {
		printField("Tree", bag.Tree)
	}
}

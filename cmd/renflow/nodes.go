package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dukex/renflow/pkg/cmd"
	"github.com/dukex/renflow/pkg/log"
	"github.com/dukex/renflow/pkg/models"
	cli "github.com/urfave/cli/v3"
)

func NewNodesCommand() *cli.Command {
	return &cli.Command{
		Name:    "nodes",
		Aliases: []string{"ls"},
		Usage:   "List the node catalog",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the catalog as JSON",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			reg := cmd.NewRegistry(log.WithModule("renflow-nodes"))
			list := reg.GetNodeList()

			if command.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")

				return enc.Encode(list)
			}

			return printNodes(os.Stdout, list)
		},
	}
}

func printNodes(w io.Writer, list []models.NodeMetadata) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tCATEGORY\tNAME\tDESCRIPTION")

	for _, n := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, n.Category, n.Name, n.Description)
	}

	return tw.Flush()
}

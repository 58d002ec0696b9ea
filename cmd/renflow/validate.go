package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dukex/renflow/pkg/bundle"
	"github.com/dukex/renflow/pkg/log"
	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate the workflows in a file",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, command *cli.Command) error {
			file := command.Args().First()
			if file == "" {
				return cli.Exit("missing workflow file", 1)
			}

			b, err := bundle.Load(file, log.WithModule("renflow-validate"))
			if err != nil {
				return err
			}

			if invalid := report(os.Stdout, b.Workflows); invalid > 0 {
				return cli.Exit(fmt.Sprintf("%d invalid workflow(s)", invalid), 1)
			}

			return nil
		},
	}
}

// report prints one block per workflow and returns how many are invalid.
func report(w io.Writer, wfs []*models.CompiledWorkflow) int {
	invalid := 0

	for _, wf := range wfs {
		result := workflow.Validate(wf)
		if result.Valid {
			fmt.Fprintf(w, "✓ %s (%d nodes, entry %s)\n", wf.ID, len(wf.Nodes), wf.EntryNode)
			continue
		}

		invalid++

		fmt.Fprintf(w, "✗ %s\n", wf.ID)

		for _, e := range result.Errors {
			fmt.Fprintf(w, "    - %s\n", e)
		}
	}

	return invalid
}

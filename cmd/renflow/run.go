package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dukex/renflow/pkg/bundle"
	"github.com/dukex/renflow/pkg/connectors"
	"github.com/dukex/renflow/pkg/log"
	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/protocol"
	"github.com/dukex/renflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

// exitRunFailed is the exit code of a run that completed unsuccessfully.
const exitRunFailed = 2

var errNoWorkflows = errors.New("no workflows in file")

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Run one workflow once and print its result",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "payload",
				Usage: "Trigger payload, as JSON or a plain string",
			},
			&cli.StringFlag{
				Name:  "workflow",
				Usage: "Workflow id to run when the file holds several",
			},
			&cli.DurationFlag{
				Name:    "min-delay",
				Usage:   "Minimum time per node, 0 disables padding",
				Value:   workflow.DefaultMinDelay,
				Sources: cli.EnvVars("RENFLOW_MIN_DELAY"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Overall run timeout",
				Value:   workflow.DefaultTimeout,
				Sources: cli.EnvVars("RENFLOW_TIMEOUT"),
			},
			&cli.BoolFlag{
				Name:  "connect",
				Usage: "Connect the bundle's bots and run with the first one as bot",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("renflow-run")

			file := command.Args().First()
			if file == "" {
				return cli.Exit("missing workflow file", 1)
			}

			b, err := bundle.Load(file, logger)
			if err != nil {
				return err
			}

			wf, err := pickWorkflow(b.Workflows, command.String("workflow"))
			if err != nil {
				return err
			}

			rt, err := newRuntime(ctx, command, logger)
			if err != nil {
				return err
			}
			defer rt.close(context.WithoutCancel(ctx))

			if err := b.RegisterNodes(rt.registry); err != nil {
				return err
			}

			cfg := workflow.RunConfig{
				MinDelay: minDelay(command.Duration("min-delay")),
				Timeout:  command.Duration("timeout"),
				Filter:   workflow.AlwaysRun,
			}

			if command.Bool("connect") && len(b.Bots) > 0 {
				manager := connectors.NewManager(logger)

				bot, err := connectBot(ctx, manager, b.Bots[0])
				if err != nil {
					return err
				}
				defer func() { _ = bot.Disconnect(context.WithoutCancel(ctx)) }()

				cfg.Bot = bot
				cfg.Globals = map[string]any{nodes.GlobalKeyConnectors: manager}
			}

			result, err := rt.runner.RunWorkflow(ctx, wf, parsePayload(command.String("payload")), cfg, workflow.Callbacks{
				OnNodeStart: func(nodeID, nodeType string) {
					logger.Info("Node started", "node_id", nodeID, "node_type", nodeType)
				},
				OnNodeError: func(nodeID string, err error) {
					logger.Error("Node failed", "node_id", nodeID, "error", err)
				},
			})
			if err != nil {
				return cli.Exit(err.Error(), exitRunFailed)
			}

			out, err := json.MarshalIndent(map[string]any{
				"success":    result.Success,
				"error":      result.Error,
				"logs":       result.Logs,
				"finalState": printableState(result),
				"durationMs": result.Duration.Milliseconds(),
			}, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}

			fmt.Fprintln(os.Stdout, string(out))

			if !result.Success {
				return cli.Exit("workflow failed: "+result.Error, exitRunFailed)
			}

			return nil
		},
	}
}

func pickWorkflow(wfs []*models.CompiledWorkflow, id string) (*models.CompiledWorkflow, error) {
	if len(wfs) == 0 {
		return nil, errNoWorkflows
	}

	if id == "" {
		return wfs[0], nil
	}

	for _, wf := range wfs {
		if wf.ID == id {
			return wf, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
}

func connectBot(ctx context.Context, manager *connectors.Manager, cfg models.BotConfig) (protocol.BotAdapter, error) {
	bot, err := manager.CreateBotAdapter(cfg.Type, protocol.AdapterOptions{URL: cfg.Address, Token: cfg.Token, RateLimit: cfg.RateLimit}, cfg.ID)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := bot.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("failed to connect bot %s: %w", cfg.ID, err)
	}

	return bot, nil
}

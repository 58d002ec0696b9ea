package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/renflow/pkg/bundle"
	"github.com/dukex/renflow/pkg/cmd"
	"github.com/dukex/renflow/pkg/connectors"
	"github.com/dukex/renflow/pkg/dispatcher"
	"github.com/dukex/renflow/pkg/log"
	"github.com/dukex/renflow/pkg/sources"
	"github.com/dukex/renflow/pkg/sources/queue"
	"github.com/dukex/renflow/pkg/sources/schedule"
	"github.com/dukex/renflow/pkg/sources/webhook"
	"github.com/dukex/renflow/pkg/web"
	"github.com/dukex/renflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Aliases:   []string{"s"},
		Usage:     "Connect a bundle's bots and run its workflows until interrupted",
		ArgsUsage: "<bundle>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "http-addr",
				Usage:   "Admin API listen address, empty to disable",
				Value:   ":9091",
				Sources: cli.EnvVars("HTTP_ADDR"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for queue-triggered workflows",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringSliceFlag{
				Name:    "bot-token",
				Usage:   "Override a bot's access token, as id=token",
				Sources: cli.EnvVars("RENFLOW_BOT_TOKENS"),
			},
			&cli.DurationFlag{
				Name:    "min-delay",
				Usage:   "Minimum time per node, 0 disables padding",
				Value:   workflow.DefaultMinDelay,
				Sources: cli.EnvVars("RENFLOW_MIN_DELAY"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Per-run timeout",
				Value:   workflow.DefaultTimeout,
				Sources: cli.EnvVars("RENFLOW_TIMEOUT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("renflow-serve")

			file := command.Args().First()
			if file == "" {
				return cli.Exit("missing bundle file", 1)
			}

			tokens, err := parseBotTokens(command.StringSlice("bot-token"))
			if err != nil {
				return err
			}

			b, err := bundle.Load(file, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, command, logger)
			if err != nil {
				return err
			}
			defer rt.close(context.WithoutCancel(ctx))

			if err := b.RegisterNodes(rt.registry); err != nil {
				return err
			}

			if err := rt.logEvents(ctx); err != nil {
				return fmt.Errorf("failed to subscribe to events: %w", err)
			}

			opts := []dispatcher.Option{
				dispatcher.WithMinDelay(minDelay(command.Duration("min-delay"))),
				dispatcher.WithTimeout(command.Duration("timeout")),
				dispatcher.WithPublisher(rt.metrics),
			}

			d := dispatcher.New(workflow.NewRepository(b.Workflows...), connectors.NewManager(logger), rt.runner, logger, opts...)

			if err := d.AddBots(b.Bots, tokens); err != nil {
				return err
			}

			hooks, err := webhook.New(b.Workflows, logger)
			if err != nil {
				return err
			}

			srcs, err := buildSources(command, b, rt, logger)
			if err != nil {
				return err
			}

			addr := command.String("http-addr")
			if hooks.Len() > 0 {
				if addr == "" {
					logger.Warn("Webhook workflows present but --http-addr is empty", "paths", hooks.Len())
				}

				srcs = append(srcs, hooks)
			}

			server := web.NewServer(logger, d, rt.registry,
				web.WithWebhooks(hooks.Handle),
				web.WithMetrics(rt.metrics.Handler()),
			)

			return serve(ctx, d, srcs, server, addr, logger)
		},
	}
}

func buildSources(command *cli.Command, b *bundle.Bundle, rt *runtime, logger *slog.Logger) ([]sources.Source, error) {
	sched, err := schedule.New(b.Workflows, logger)
	if err != nil {
		return nil, err
	}

	srcs := []sources.Source{sched}

	queued := workflow.NewTriggerMatcher(logger).MatchType(sources.TypeQueue, b.Workflows)
	if len(queued) == 0 {
		return srcs, nil
	}

	url := command.String("redis-url")
	if url == "" {
		logger.Warn("Queue workflows present but --redis-url is not set", "workflows", len(queued))
		return srcs, nil
	}

	client, err := cmd.NewRedisClient(url)
	if err != nil {
		return nil, err
	}

	rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })

	return append(srcs, queue.New(client, queued, logger)), nil
}

// serve runs the dispatcher, the sources and the admin API until ctx is
// done, then stops them in reverse order.
func serve(ctx context.Context, d *dispatcher.Dispatcher, srcs []sources.Source, server *web.Server, addr string, logger *slog.Logger) error {
	if err := d.Start(ctx); err != nil {
		return err
	}

	for _, src := range srcs {
		if err := src.Start(ctx, d.FireWorkflows); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if addr != "" {
		g.Go(func() error {
			return server.Start(addr)
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		var errs []error

		for _, src := range srcs {
			errs = append(errs, src.Stop(shutdownCtx))
		}

		errs = append(errs, d.Stop(shutdownCtx), server.Shutdown(shutdownCtx))

		return errors.Join(errs...)
	})

	return g.Wait()
}

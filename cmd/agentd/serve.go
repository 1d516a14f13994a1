// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-a2a/agentd/approval"
	"github.com/go-a2a/agentd/approval/console"
	"github.com/go-a2a/agentd/approval/webhook"
	"github.com/go-a2a/agentd/config"
	"github.com/go-a2a/agentd/engine"
	"github.com/go-a2a/agentd/internal/metrics"
	"github.com/go-a2a/agentd/server"
	"github.com/go-a2a/agentd/server/task"
	"github.com/go-a2a/agentd/session"
)

const shutdownTimeout = 30 * time.Second

type serveFlags struct {
	host string
	port string
	db   string
}

func newServeCommand() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the A2A server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := config.LoadEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				env.HTTPHost = flags.host
			}
			if cmd.Flags().Changed("port") {
				env.HTTPPort = flags.port
			}
			if cmd.Flags().Changed("db") {
				env.DBPath = flags.db
			}
			return serve(cmd.Context(), env)
		},
	}

	cmd.Flags().StringVar(&flags.host, "host", "", "listen host (AGENTD_HTTP_HOST)")
	cmd.Flags().StringVarP(&flags.port, "port", "p", "", "listen port (AGENTD_HTTP_PORT)")
	cmd.Flags().StringVar(&flags.db, "db", "", "SQLite file for task persistence (AGENTD_DB_PATH)")

	return cmd
}

// approvals holds the gates configured for this process.
type approvals struct {
	gates   []*approval.Gate
	webhook *approval.Gate
	console *approval.Gate
}

func newApprovals(env *config.Env, logger *slog.Logger, mt *metrics.Metrics) *approvals {
	gateOpts := []approval.Option{
		approval.WithTimeout(env.ApprovalTimeout),
		approval.WithDefaultDestination(env.ApprovalDefaultDestination),
		approval.WithLogger(logger),
		approval.WithObserver(func(channel string, o approval.Outcome) {
			mt.Approval(channel, string(o))
		}),
	}

	a := &approvals{}
	if env.ApprovalWebhookURL != "" {
		callback := env.ApprovalCallbackURL
		if callback == "" {
			callback = env.PublicURL() + "/approvals"
		}
		ch := webhook.New(env.ApprovalWebhookURL,
			webhook.WithCallbackURL(callback),
			webhook.WithLogger(logger),
		)
		a.webhook = approval.NewGate(ch, gateOpts...)
		a.gates = append(a.gates, a.webhook)
	}
	if env.ApprovalConsole {
		a.console = approval.NewGate(console.New(os.Stdout), gateOpts...)
		a.gates = append(a.gates, a.console)
	}
	return a
}

func serve(ctx context.Context, env *config.Env) error {
	logger := env.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mt := metrics.New()

	var gw task.Gateway = task.NopGateway{}
	if env.DBPath != "" {
		db, err := task.OpenSQLite(ctx, env.DBPath)
		if err != nil {
			return fmt.Errorf("open task database: %w", err)
		}
		defer db.Close(context.Background())
		gw = db
	}
	store := task.NewStore(gw).WithLogger(logger)

	apr := newApprovals(env, logger, mt)
	mux, err := approval.NewMux(apr.gates...)
	if err != nil {
		return err
	}
	if len(apr.gates) == 0 {
		logger.Warn("no approval channel configured, sensitive tools will be refused")
	}

	loop := engine.NewLoop(engine.EchoProvider{}, newToolRegistry(),
		engine.WithModel(env.Model),
		engine.WithMaxIterations(env.MaxIterations),
		engine.WithLogger(logger),
		engine.WithCallbacks(engine.Callbacks{
			Approval: mux,
			Progress: engine.ProgressFunc(func(ctx context.Context, ev engine.ProgressEvent) {
				logger.DebugContext(ctx, "engine round",
					"session_id", ev.SessionID,
					"round", ev.Round,
					"tool_calls", ev.ToolCalls,
					"tokens", ev.Usage.Total(),
				)
			}),
		}),
	)

	m := server.NewManager(store, loop, session.NewMemory(),
		server.WithLogger(logger),
		server.WithMetrics(mt),
		server.WithReadOnlySkill(env.ReadOnlySkill),
		server.WithSessionHooks(mux),
	)
	if _, err := m.Restore(ctx); err != nil {
		logger.Warn("failed to restore tasks", "error", err)
	}

	card := server.NewAgentCard(env.AgentName, env.PublicURL(), version, env.ReadOnlySkill)
	opts := []server.ServerOption{
		server.WithServerLogger(logger),
		server.WithMetricsEndpoint(mt),
	}
	if env.AuthSecret != "" {
		opts = append(opts, server.WithAuth(newVerifier(env)))
	} else {
		logger.Warn("AGENTD_AUTH_SECRET is not set, the protocol endpoint is unauthenticated")
	}
	if apr.webhook != nil {
		opts = append(opts, server.WithApprovals(apr.webhook))
	}

	srv := &http.Server{
		Addr:              env.Addr(),
		Handler:           server.NewServer(server.NewDispatcher(m, server.WithDispatcherLogger(logger)), card, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr, "url", card.URL, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if apr.console != nil {
		g.Go(func() error {
			err := console.Run(gctx, os.Stdin, os.Stderr, apr.console, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("console approvals: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if werr := m.Wait(shutdownCtx); werr != nil {
			logger.Warn("background jobs still running at exit", "running", m.Running())
		}
		return err
	})

	return g.Wait()
}

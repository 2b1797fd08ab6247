package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/jellytodo/internal/repositories"
	"github.com/desertthunder/jellytodo/internal/server"
	"github.com/desertthunder/jellytodo/internal/shared"
	"github.com/desertthunder/jellytodo/internal/tasks"
	"github.com/desertthunder/jellytodo/internal/webhook"
	"github.com/urfave/cli/v3"
)

var _ tasks.MappingStore = (*repositories.ItemMappingRepository)(nil)

// Serve runs the webhook receiver until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	handler, closeFn, err := r.webhookHandler(config)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.NewServer(config.Server.Addr(), handler, server.WriteTimeoutFor(config.Todoist.Timeout()), r.logger).Run(ctx)
}

// reconciler wires the task service and, when a database path is configured, the item mapping store.
//
// The returned func closes the database.
func (r *Runner) reconciler(config *shared.Config) (*tasks.Reconciler, func(), error) {
	svc, err := r.taskService(config)
	if err != nil {
		return nil, nil, err
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open mapping store: %w", err)
	}

	closeFn := func() {}
	opts := tasks.ReconcilerOpts{Service: svc, ProjectID: config.Todoist.ProjectID, Logger: r.logger}
	if db != nil {
		opts.Mappings = repositories.NewItemMappingRepository(db)
		closeFn = func() { db.Close() }
	} else {
		r.logger.Warn("database.path is empty, running without the item mapping store")
	}

	rec, err := tasks.NewReconciler(opts)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	r.logger.Info("reconciling into project", "service", svc.Name(), "project", config.Todoist.ProjectID, "mappings", db != nil)
	return rec, closeFn, nil
}

func (r *Runner) webhookHandler(config *shared.Config) (http.Handler, func(), error) {
	rec, closeFn, err := r.reconciler(config)
	if err != nil {
		return nil, nil, err
	}

	handler := server.NewHandler(server.Opts{
		Parser:         webhook.NewParser(config.Webhook.CompletionThreshold()),
		Reconciler:     rec,
		Logger:         r.logger,
		AllowedOrigins: config.Server.AllowedOrigins,
	})
	return handler, closeFn, nil
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Receive Jellyfin webhook deliveries and update Todoist",
		Flags: append(todoistFlags(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
				Sources: cli.EnvVars("JELLYTODO_PORT"),
			},
		),
		Action: r.Serve,
	}
}

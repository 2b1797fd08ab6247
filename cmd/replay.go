package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/jellytodo/internal/formatter"
	"github.com/desertthunder/jellytodo/internal/server"
	"github.com/desertthunder/jellytodo/internal/shared"
	"github.com/desertthunder/jellytodo/internal/webhook"
	"github.com/urfave/cli/v3"
)

// Replay runs one reconciliation pass for a saved webhook body, as if Jellyfin had delivered it.
func (r *Runner) Replay(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: payload file", shared.ErrMissingArgument)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	event, err := webhook.NewParser(config.Webhook.CompletionThreshold()).Parse(body)
	if errors.Is(err, shared.ErrIgnoredEvent) {
		return r.writePlain("%s %v\n", formatter.DefaultPalette.Help("ignored:"), err)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("dry-run") {
		r.writePlain("event:   %s\n", event.Kind)
		r.writePlain("series:  %s\n", event.SeriesName)
		r.writePlain("title:   %s\n", event.Title())
		r.writePlain("item:    %s\n", event.ItemID)
		if len(event.Genres) > 0 {
			r.writePlain("genres:  %s\n", strings.Join(event.Genres, ", "))
		}
		return nil
	}

	if err := config.Validate(); err != nil {
		return err
	}

	rec, closeFn, err := r.reconciler(config)
	if err != nil {
		return err
	}
	defer closeFn()

	outcome, err := rec.Reconcile(ctx, event)
	if err != nil {
		r.writePlain("%s %v\n", formatter.DefaultPalette.Err("failed:"), err)
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(server.Response{
			Status:  "success",
			Action:  outcome.Action.String(),
			Message: outcome.String(),
			PassID:  outcome.PassID,
			TaskID:  outcome.TaskID,
		}, true)
	}
	return r.writePlain("%s %s\n", formatter.DefaultPalette.OK(outcome.Action.String()+":"), outcome)
}

func replayCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "Reconcile a saved Jellyfin webhook payload",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "file",
			},
		},
		Flags: append(todoistFlags(),
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Parse and print the event without touching Todoist",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the outcome as JSON",
			},
		),
		Action: r.Replay,
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/jellytodo/internal/formatter"
	"github.com/desertthunder/jellytodo/internal/shared"
	"github.com/urfave/cli/v3"
)

// Sections lists the project's sections in order with their task progress.
func (r *Runner) Sections(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	svc, err := r.taskService(config)
	if err != nil {
		return err
	}

	projectID := config.Todoist.ProjectID
	groupings, err := svc.ListGroupings(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to list sections: %w", err)
	}

	for i := range groupings {
		tasks, err := svc.ListTasks(ctx, groupings[i].ID)
		if err != nil {
			return fmt.Errorf("failed to list tasks for %s: %w", groupings[i].Name, err)
		}
		groupings[i].TaskCount = len(tasks)
		for _, t := range tasks {
			if t.Completed {
				groupings[i].CompletedTaskCount++
			}
		}
	}

	r.logger.Debug("listed sections", "project", projectID, "count", len(groupings))

	data, err := formatter.Render(format, projectID, groupings)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func sectionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sections",
		Usage: "List the project's series sections in order",
		Flags: append(todoistFlags(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, markdown, or csv",
				Value:   "text",
			},
		),
		Action: r.Sections,
	}
}

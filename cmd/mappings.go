package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/jellytodo/internal/models"
	"github.com/desertthunder/jellytodo/internal/repositories"
	"github.com/desertthunder/jellytodo/internal/shared"
	"github.com/urfave/cli/v3"
)

// mappingView is the JSON shape of an item mapping.
type mappingView struct {
	ItemID      string     `json:"item_id"`
	TaskID      string     `json:"task_id"`
	SeriesName  string     `json:"series_name"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r *Runner) openMappings(cmd *cli.Command) (*repositories.ItemMappingRepository, *sql.DB, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return nil, nil, err
	}
	if db == nil {
		return nil, nil, fmt.Errorf("%w: database.path is empty", shared.ErrMissingConfig)
	}
	return repositories.NewItemMappingRepository(db), db, nil
}

// MappingsList prints the recorded item → task mappings, optionally for one series.
func (r *Runner) MappingsList(ctx context.Context, cmd *cli.Command) error {
	repo, db, err := r.openMappings(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	var mappings []*models.ItemMapping
	if series := cmd.String("series"); series != "" {
		mappings, err = repo.ListBySeries(ctx, series)
	} else {
		mappings, err = repo.List(ctx)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]mappingView, 0, len(mappings))
		for _, m := range mappings {
			views = append(views, mappingView{m.ItemID, m.TaskID, m.SeriesName, m.CreatedAt, m.CompletedAt})
		}
		return r.writeJSON(views, true)
	}

	if len(mappings) == 0 {
		return r.writePlain("No mappings recorded\n")
	}
	for _, m := range mappings {
		state := "pending"
		if m.Completed() {
			state = "watched " + m.CompletedAt.Local().Format(time.DateTime)
		}
		r.writePlain("%-36s  %-12s  %-24s  %s\n", m.ItemID, m.TaskID, m.SeriesName, state)
	}
	return nil
}

// MappingsForget deletes the mapping for one item so a later ItemAdded creates a fresh task.
func (r *Runner) MappingsForget(ctx context.Context, cmd *cli.Command) error {
	itemID := cmd.StringArg("item")
	if itemID == "" {
		return fmt.Errorf("%w: item id", shared.ErrMissingArgument)
	}

	repo, db, err := r.openMappings(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repo.Delete(ctx, itemID); err != nil {
		return err
	}

	r.logger.Info("forgot item mapping", "item", itemID)
	return r.writePlain("✓ Forgot %s\n", itemID)
}

func mappingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "mappings",
		Usage: "Inspect the local item → task mapping store",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded mappings",
				Flags: []cli.Flag{
					configFlag(),
					logLevelFlag(),
					&cli.StringFlag{
						Name:  "series",
						Usage: "Only show mappings for this series",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.MappingsList,
			},
			{
				Name:  "forget",
				Usage: "Delete the mapping for one media item",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "item",
					},
				},
				Flags:  []cli.Flag{configFlag(), logLevelFlag()},
				Action: r.MappingsForget,
			},
		},
	}
}

package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/jellytodo/internal/models"
	"github.com/desertthunder/jellytodo/internal/services"
	"github.com/desertthunder/jellytodo/internal/shared"
)

// Resolver finds or creates the grouping for a series within one project.
//
// A Resolver belongs to a single reconciliation pass. Groupings are fetched lazily and cached
// only for the lifetime of the pass.
type Resolver struct {
	svc       services.TaskService
	locks     *KeyedMutex
	projectID string
	groupings []models.Grouping
	loaded    bool
}

// NewResolver creates a pass-scoped [Resolver]. locks must be shared by every pass in the process.
func NewResolver(svc services.TaskService, locks *KeyedMutex, projectID string) *Resolver {
	return &Resolver{svc: svc, locks: locks, projectID: projectID}
}

func (r *Resolver) load(ctx context.Context) error {
	groupings, err := r.svc.ListGroupings(ctx, r.projectID)
	if err != nil {
		return fmt.Errorf("failed to list groupings: %w", err)
	}
	r.groupings = groupings
	r.loaded = true
	return nil
}

func (r *Resolver) find(name string) (models.Grouping, bool) {
	for _, g := range r.groupings {
		if strings.TrimSpace(g.Name) == name {
			return g, true
		}
	}
	return models.Grouping{}, false
}

// Lookup returns the grouping named seriesName without creating one.
func (r *Resolver) Lookup(ctx context.Context, seriesName string) (models.Grouping, bool, error) {
	name := strings.TrimSpace(seriesName)
	if name == "" {
		return models.Grouping{}, false, fmt.Errorf("%w: series name is empty", shared.ErrInvalidArgument)
	}

	if !r.loaded {
		if err := r.load(ctx); err != nil {
			return models.Grouping{}, false, err
		}
	}

	g, ok := r.find(name)
	return g, ok, nil
}

// Resolve returns the grouping named seriesName, creating it when absent.
//
// The find-or-create runs inside the project's mutual-exclusion region. A cache loaded outside
// the current hold is re-fetched before creating so a grouping created by another pass is seen.
func (r *Resolver) Resolve(ctx context.Context, seriesName string) (g models.Grouping, created bool, err error) {
	name := strings.TrimSpace(seriesName)
	if name == "" {
		return models.Grouping{}, false, fmt.Errorf("%w: series name is empty", shared.ErrInvalidArgument)
	}

	unlock := r.locks.Lock(projectKey(r.projectID))
	defer unlock()

	fresh := false
	if !r.loaded {
		if err := r.load(ctx); err != nil {
			return models.Grouping{}, false, err
		}
		fresh = true
	}

	if g, ok := r.find(name); ok {
		return g, false, nil
	}

	if !fresh {
		if err := r.load(ctx); err != nil {
			return models.Grouping{}, false, err
		}
		if g, ok := r.find(name); ok {
			return g, false, nil
		}
	}

	newGrouping, err := r.svc.CreateGrouping(ctx, r.projectID, name)
	if err != nil {
		return models.Grouping{}, false, fmt.Errorf("failed to create grouping %q: %w", name, err)
	}
	if newGrouping.ProjectID == "" {
		newGrouping.ProjectID = r.projectID
	}

	r.groupings = append(r.groupings, *newGrouping)
	return *newGrouping, true, nil
}

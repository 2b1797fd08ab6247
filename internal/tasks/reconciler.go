package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jellytodo/internal/models"
	"github.com/desertthunder/jellytodo/internal/services"
	"github.com/desertthunder/jellytodo/internal/shared"
)

// MappingStore persists media item → task correlations.
//
// It is an optional hint: failures are logged and never fail a pass.
type MappingStore interface {
	Save(ctx context.Context, m *models.ItemMapping) error
	// Get returns [shared.ErrNotFound] when the item has no mapping.
	Get(ctx context.Context, itemID string) (*models.ItemMapping, error)
	MarkCompleted(ctx context.Context, itemID string) error
}

// ReconcilerOpts configures a [Reconciler].
type ReconcilerOpts struct {
	Service   services.TaskService // required
	ProjectID string               // required
	Mappings  MappingStore         // optional
	Locks     *KeyedMutex          // defaults to a new KeyedMutex
	Logger    *log.Logger          // defaults to shared.NewLogger(nil)
}

// Reconciler maps media events onto task service mutations.
//
// A Reconciler is safe for concurrent use; each call to [Reconciler.Reconcile] is one pass.
type Reconciler struct {
	svc       services.TaskService
	projectID string
	mappings  MappingStore
	locks     *KeyedMutex
	logger    *log.Logger
}

// NewReconciler creates a [Reconciler] from opts.
func NewReconciler(opts ReconcilerOpts) (*Reconciler, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("%w: task service", shared.ErrMissingArgument)
	}
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("%w: project id", shared.ErrMissingConfig)
	}
	if opts.Locks == nil {
		opts.Locks = NewKeyedMutex()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Reconciler{
		svc:       opts.Service,
		projectID: opts.ProjectID,
		mappings:  opts.Mappings,
		locks:     opts.Locks,
		logger:    opts.Logger,
	}, nil
}

// pass carries the state of one reconciliation.
type pass struct {
	*Reconciler
	id       string
	event    models.MediaEvent
	resolver *Resolver
	logger   *log.Logger
}

// Reconcile processes one event to completion.
//
// A remote failure aborts the remaining steps and is returned; mutations already made stay in place.
func (r *Reconciler) Reconcile(ctx context.Context, event models.MediaEvent) (*Outcome, error) {
	if err := event.Normalize(); err != nil {
		return nil, err
	}

	id := shared.GenerateID()
	p := &pass{
		Reconciler: r,
		id:         id,
		event:      event,
		resolver:   NewResolver(r.svc, r.locks, r.projectID),
		logger: shared.WithLogger(r.logger,
			"pass", id,
			"event", event.Kind.String(),
			"series", event.SeriesName,
			"episode", event.EpisodeLabel,
			"item", event.ItemID,
		),
	}

	p.logger.Debug("reconciling event")

	var (
		outcome *Outcome
		err     error
	)
	switch event.Kind {
	case models.EventItemAdded:
		outcome, err = p.itemAdded(ctx)
	case models.EventPlaybackFinished:
		outcome, err = p.playbackFinished(ctx)
	}
	if err != nil {
		p.logger.Error("reconciliation failed", "err", err)
		return nil, err
	}

	outcome.PassID = id
	outcome.Event = event.Kind
	p.logger.Info(outcome.String(), "action", outcome.Action.String())
	return outcome, nil
}

func (p *pass) itemAdded(ctx context.Context) (*Outcome, error) {
	g, created, err := p.resolver.Resolve(ctx, p.event.SeriesName)
	if err != nil {
		return nil, err
	}
	if created {
		p.logger.Info("created grouping", "grouping", g.ID)
	}

	outcome := &Outcome{GroupingID: g.ID, GroupingCreated: created}

	unlock := p.locks.Lock(itemKey(p.event.ItemID))
	defer unlock()

	tasks, err := p.svc.ListTasks(ctx, g.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	for _, t := range tasks {
		if t.ExternalRef == p.event.ItemID {
			outcome.Action = ActionDuplicate
			outcome.TaskID = t.ID
			return outcome, nil
		}
	}

	if m := p.mapping(ctx); m != nil && m.Completed() {
		outcome.Action = ActionDuplicate
		outcome.TaskID = m.TaskID
		outcome.Reason = "already watched"
		return outcome, nil
	}

	task, err := p.svc.CreateTask(ctx, p.projectID, g.ID, p.event.Title(), p.event.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	p.saveMapping(ctx, task.ID)

	outcome.Action = ActionCreated
	outcome.TaskID = task.ID
	return outcome, nil
}

func (p *pass) playbackFinished(ctx context.Context) (*Outcome, error) {
	g, found, err := p.resolver.Lookup(ctx, p.event.SeriesName)
	if err != nil {
		return nil, err
	}
	if !found {
		p.logger.Warn("no grouping for series", "err", shared.ErrInconsistentState)
		return &Outcome{Action: ActionSkipped, Reason: "no grouping for series"}, nil
	}

	outcome := &Outcome{GroupingID: g.ID}

	unlock := p.locks.Lock(itemKey(p.event.ItemID))
	defer unlock()

	tasks, err := p.svc.ListTasks(ctx, g.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	var pending, done *models.Task
	for i := range tasks {
		if tasks[i].ExternalRef != p.event.ItemID {
			continue
		}
		if !tasks[i].Completed {
			pending = &tasks[i]
			break
		}
		done = &tasks[i]
	}

	var target, finished string
	switch {
	case pending != nil:
		target = pending.ID
	case done != nil:
		finished = done.ID
	default:
		m := p.mapping(ctx)
		switch {
		case m == nil:
			p.logger.Warn("no task for item", "grouping", g.ID, "err", shared.ErrInconsistentState)
			outcome.Reason = "no task for item"
			return outcome, nil
		case m.Completed():
			finished = m.TaskID
		default:
			target = m.TaskID
		}
	}

	if target == "" {
		outcome.Action = ActionSkipped
		outcome.Reason = "already completed"
		outcome.TaskID = finished
		moved, err := p.moveIfFinished(ctx, g, finished, true)
		if err != nil {
			return nil, err
		}
		outcome.Moved = moved
		return outcome, nil
	}

	if err := p.svc.CompleteTask(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to complete task %s: %w", target, err)
	}
	p.markCompleted(ctx)

	outcome.Action = ActionCompleted
	outcome.TaskID = target

	moved, err := p.moveIfFinished(ctx, g, target, false)
	if err != nil {
		return nil, err
	}
	outcome.Moved = moved
	return outcome, nil
}

// moveIfFinished moves g after every other grouping once all of its tasks are completed.
//
// knownCompleted is a task already confirmed done, which the listing may still show as open
// or may omit entirely. With repair set, g only moves while a grouping after it still has
// open tasks.
func (p *pass) moveIfFinished(ctx context.Context, g models.Grouping, knownCompleted string, repair bool) (bool, error) {
	tasks, err := p.svc.ListTasks(ctx, g.ID)
	if err != nil {
		return false, fmt.Errorf("failed to list tasks: %w", err)
	}
	if !groupingFinished(tasks, knownCompleted) {
		return false, nil
	}

	unlock := p.locks.Lock(projectKey(p.projectID))
	defer unlock()

	groupings, err := p.svc.ListGroupings(ctx, p.projectID)
	if err != nil {
		return false, fmt.Errorf("failed to list groupings: %w", err)
	}

	maxOrder, last := endPosition(groupings, g.ID)
	if last {
		p.logger.Debug("grouping already last", "grouping", g.ID)
		return false, nil
	}

	if repair {
		openAfter, err := p.aheadOfOpen(ctx, groupings, g.ID)
		if err != nil {
			return false, err
		}
		if !openAfter {
			p.logger.Debug("grouping already behind open groupings", "grouping", g.ID)
			return false, nil
		}
	}

	if err := p.svc.MoveGrouping(ctx, g.ID, p.projectID, maxOrder+1); err != nil {
		return false, fmt.Errorf("failed to move grouping %s: %w", g.ID, err)
	}
	p.logger.Info("moved finished grouping to end", "grouping", g.ID, "order", maxOrder+1)
	return true, nil
}

// groupingFinished reports whether no task in the grouping is still open.
//
// An empty listing only counts as finished when a task is known to have been completed.
func groupingFinished(tasks []models.Task, knownCompleted string) bool {
	for _, t := range tasks {
		if !t.Completed && t.ID != knownCompleted {
			return false
		}
	}
	return len(tasks) > 0 || knownCompleted != ""
}

// aheadOfOpen reports whether any grouping ordered after id still has an open task.
func (p *pass) aheadOfOpen(ctx context.Context, groupings []models.Grouping, id string) (bool, error) {
	sorted := slices.Clone(groupings)
	slices.SortStableFunc(sorted, func(a, b models.Grouping) int { return cmp.Compare(a.Order, b.Order) })

	idx := slices.IndexFunc(sorted, func(g models.Grouping) bool { return g.ID == id })
	if idx < 0 {
		return false, nil
	}

	for _, later := range sorted[idx+1:] {
		tasks, err := p.svc.ListTasks(ctx, later.ID)
		if err != nil {
			return false, fmt.Errorf("failed to list tasks: %w", err)
		}
		for _, t := range tasks {
			if !t.Completed {
				return true, nil
			}
		}
	}
	return false, nil
}

// endPosition returns the highest order among groupings and whether id alone holds it.
func endPosition(groupings []models.Grouping, id string) (maxOrder int, last bool) {
	holders := 0
	holderIsID := false
	for i, g := range groupings {
		switch {
		case i == 0 || g.Order > maxOrder:
			maxOrder = g.Order
			holders = 1
			holderIsID = g.ID == id
		case g.Order == maxOrder:
			holders++
			holderIsID = holderIsID || g.ID == id
		}
	}
	return maxOrder, holders == 1 && holderIsID
}

// mapping returns the stored mapping for the event's item, or nil.
func (p *pass) mapping(ctx context.Context) *models.ItemMapping {
	if p.mappings == nil {
		return nil
	}
	m, err := p.mappings.Get(ctx, p.event.ItemID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			p.logger.Warn("failed to read item mapping", "err", err)
		}
		return nil
	}
	return m
}

func (p *pass) saveMapping(ctx context.Context, taskID string) {
	if p.mappings == nil {
		return
	}
	m := &models.ItemMapping{
		ItemID:     p.event.ItemID,
		TaskID:     taskID,
		SeriesName: p.event.SeriesName,
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.mappings.Save(ctx, m); err != nil {
		p.logger.Warn("failed to save item mapping", "task", taskID, "err", err)
	}
}

func (p *pass) markCompleted(ctx context.Context) {
	if p.mappings == nil {
		return
	}
	if err := p.mappings.MarkCompleted(ctx, p.event.ItemID); err != nil && !errors.Is(err, shared.ErrNotFound) {
		p.logger.Warn("failed to mark item mapping completed", "err", err)
	}
}

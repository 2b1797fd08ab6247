package testing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/jellytodo/internal/models"
	"github.com/desertthunder/jellytodo/internal/shared"
)

// FakeTaskService is an in-memory task service for testing.
//
// It satisfies services.TaskService without importing it so that package's own tests can use it.
type FakeTaskService struct {
	mu        sync.Mutex
	groupings map[string][]models.Grouping // projectID -> groupings
	tasks     map[string][]models.Task     // groupingID -> tasks
	calls     map[string]int
	completes map[string]int // taskID -> CompleteTask calls
	nextID    int

	// HideCompleted makes ListTasks omit completed tasks the way Todoist's REST API does.
	HideCompleted bool

	// CreateGroupingDelay widens the window between reading and creating a grouping.
	CreateGroupingDelay time.Duration

	// Error injection for testing
	ListGroupingsErr  error
	CreateGroupingErr error
	CreateTaskErr     error
	ListTasksErr      error
	CompleteTaskErr   error
	MoveGroupingErr   error
}

// NewFakeTaskService creates an empty FakeTaskService.
func NewFakeTaskService() *FakeTaskService {
	return &FakeTaskService{
		groupings: make(map[string][]models.Grouping),
		tasks:     make(map[string][]models.Task),
		calls:     make(map[string]int),
		completes: make(map[string]int),
	}
}

func (f *FakeTaskService) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *FakeTaskService) record(method string) {
	f.calls[method]++
}

// AddGrouping seeds a grouping at the end of the project.
func (f *FakeTaskService) AddGrouping(projectID, name string) models.Grouping {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appendGrouping(projectID, name)
}

func (f *FakeTaskService) appendGrouping(projectID, name string) models.Grouping {
	order := 1
	for _, g := range f.groupings[projectID] {
		if g.Order >= order {
			order = g.Order + 1
		}
	}
	g := models.Grouping{ID: f.id("g"), ProjectID: projectID, Name: name, Order: order}
	f.groupings[projectID] = append(f.groupings[projectID], g)
	return g
}

// AddTask seeds a task in a grouping.
func (f *FakeTaskService) AddTask(groupingID, title, externalRef string, completed bool) models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := models.Task{ID: f.id("t"), GroupingID: groupingID, Title: title, ExternalRef: externalRef, Completed: completed}
	f.tasks[groupingID] = append(f.tasks[groupingID], t)
	return t
}

// Groupings returns the project's groupings sorted by order.
func (f *FakeTaskService) Groupings(projectID string) []models.Grouping {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedGroupings(projectID)
}

func (f *FakeTaskService) sortedGroupings(projectID string) []models.Grouping {
	result := make([]models.Grouping, len(f.groupings[projectID]))
	copy(result, f.groupings[projectID])
	sort.SliceStable(result, func(i, j int) bool { return result[i].Order < result[j].Order })
	return result
}

// Tasks returns every task in a grouping, completed ones included.
func (f *FakeTaskService) Tasks(groupingID string) []models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]models.Task, len(f.tasks[groupingID]))
	copy(result, f.tasks[groupingID])
	return result
}

// CallCount returns how many times a method was called.
func (f *FakeTaskService) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// CompleteCount returns how many times CompleteTask was called for a task.
func (f *FakeTaskService) CompleteCount(taskID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completes[taskID]
}

// ListGroupings implements services.TaskService.
func (f *FakeTaskService) ListGroupings(ctx context.Context, projectID string) ([]models.Grouping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListGroupings")
	if f.ListGroupingsErr != nil {
		return nil, f.ListGroupingsErr
	}
	return f.sortedGroupings(projectID), nil
}

// CreateGrouping implements services.TaskService.
func (f *FakeTaskService) CreateGrouping(ctx context.Context, projectID, name string) (*models.Grouping, error) {
	f.mu.Lock()
	f.record("CreateGrouping")
	err := f.CreateGroupingErr
	delay := f.CreateGroupingDelay
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	g := f.appendGrouping(projectID, name)
	return &g, nil
}

// CreateTask implements services.TaskService.
func (f *FakeTaskService) CreateTask(ctx context.Context, projectID, groupingID, title, externalRef string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateTask")
	if f.CreateTaskErr != nil {
		return nil, f.CreateTaskErr
	}
	t := models.Task{ID: f.id("t"), GroupingID: groupingID, Title: title, ExternalRef: externalRef}
	f.tasks[groupingID] = append(f.tasks[groupingID], t)
	return &t, nil
}

// ListTasks implements services.TaskService.
func (f *FakeTaskService) ListTasks(ctx context.Context, groupingID string) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListTasks")
	if f.ListTasksErr != nil {
		return nil, f.ListTasksErr
	}
	result := make([]models.Task, 0, len(f.tasks[groupingID]))
	for _, t := range f.tasks[groupingID] {
		if f.HideCompleted && t.Completed {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

// CompleteTask implements services.TaskService. Unknown or completed tasks are a no-op.
func (f *FakeTaskService) CompleteTask(ctx context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CompleteTask")
	if f.CompleteTaskErr != nil {
		return f.CompleteTaskErr
	}
	f.completes[taskID]++
	for gid, tasks := range f.tasks {
		for i := range tasks {
			if tasks[i].ID == taskID {
				f.tasks[gid][i].Completed = true
				return nil
			}
		}
	}
	return nil
}

// MoveGrouping implements services.TaskService.
func (f *FakeTaskService) MoveGrouping(ctx context.Context, groupingID, projectID string, order int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MoveGrouping")
	if f.MoveGroupingErr != nil {
		return f.MoveGroupingErr
	}
	for i, g := range f.groupings[projectID] {
		if g.ID == groupingID {
			f.groupings[projectID][i].Order = order
			return nil
		}
	}
	return fmt.Errorf("%w: grouping %s not found in project %s", shared.ErrAPIRequest, groupingID, projectID)
}

// Name implements services.TaskService.
func (f *FakeTaskService) Name() string { return "fake" }

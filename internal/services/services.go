// package services defines interface TaskService for interacting with task-management HTTP APIs
//
// Todoist (REST v2 + Sync v9)
package services

import (
	"context"

	"github.com/desertthunder/jellytodo/internal/models"
)

// TaskService defines the operations reconciliation needs from a task-management provider.
//
// Implementations make a single attempt per call and report failures with the sentinel errors in [shared].
type TaskService interface {
	// ListGroupings returns every grouping in the project, ordered by position.
	ListGroupings(ctx context.Context, projectID string) ([]models.Grouping, error)

	// CreateGrouping creates a grouping named name at the end of the project.
	CreateGrouping(ctx context.Context, projectID, name string) (*models.Grouping, error)

	// CreateTask creates a task in the grouping carrying externalRef so it can be found again.
	CreateTask(ctx context.Context, projectID, groupingID, title, externalRef string) (*models.Task, error)

	// ListTasks returns the tasks in a grouping.
	ListTasks(ctx context.Context, groupingID string) ([]models.Task, error)

	// CompleteTask marks a task done. Completing an already-completed task is not an error.
	CompleteTask(ctx context.Context, taskID string) error

	// MoveGrouping sets the grouping's position within its project.
	MoveGrouping(ctx context.Context, groupingID, projectID string, order int) error

	// Name returns the name of the service (e.g., "Todoist")
	Name() string
}

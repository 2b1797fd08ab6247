package tasks

import (
	"fmt"

	"github.com/desertthunder/jellytodo/internal/models"
)

// Action is what a reconciliation pass did.
type Action int

const (
	ActionSkipped Action = iota
	ActionCreated
	ActionDuplicate
	ActionCompleted
)

func (a Action) String() string {
	switch a {
	case ActionSkipped:
		return "skipped"
	case ActionCreated:
		return "created"
	case ActionDuplicate:
		return "duplicate"
	case ActionCompleted:
		return "completed"
	default:
		return ""
	}
}

// Outcome summarizes a reconciliation pass.
//
// Returned to the webhook layer for the response body and logging.
type Outcome struct {
	PassID          string           // uuid attached to every log line of the pass
	Event           models.EventKind // event that was reconciled
	Action          Action           // what the pass did
	GroupingID      string           // grouping the event resolved to, if any
	GroupingCreated bool             // true when this pass created the grouping
	TaskID          string           // task created, completed, or matched
	Moved           bool             // grouping moved to the end of the project
	Reason          string           // why the pass skipped, for logs and responses
}

func (o Outcome) String() string {
	switch o.Action {
	case ActionCreated:
		return fmt.Sprintf("created task %s in grouping %s", o.TaskID, o.GroupingID)
	case ActionDuplicate:
		return fmt.Sprintf("task %s already exists in grouping %s", o.TaskID, o.GroupingID)
	case ActionCompleted:
		if o.Moved {
			return fmt.Sprintf("completed task %s and moved grouping %s to the end", o.TaskID, o.GroupingID)
		}
		return fmt.Sprintf("completed task %s", o.TaskID)
	default:
		if o.Moved {
			return fmt.Sprintf("skipped (%s), moved grouping %s to the end", o.Reason, o.GroupingID)
		}
		return fmt.Sprintf("skipped (%s)", o.Reason)
	}
}

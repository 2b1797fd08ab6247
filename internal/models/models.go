// package models defines the data model for the jellyfin → todoist reconciler
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/jellytodo/internal/shared"
)

// EventKind identifies which reconciliation path a [MediaEvent] takes.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventItemAdded
	EventPlaybackFinished
)

func (k EventKind) String() string {
	switch k {
	case EventItemAdded:
		return "item_added"
	case EventPlaybackFinished:
		return "playback_finished"
	default:
		return "unknown"
	}
}

// MediaEvent is a normalized notification from the media server.
//
// EpisodeName, Genres, Year, and Duration are informational and not consumed by reconciliation.
type MediaEvent struct {
	Kind         EventKind
	SeriesName   string
	EpisodeLabel string // e.g. "S01E05"
	ItemID       string // stable media-library item id, the external reference
	EpisodeName  string
	Genres       []string
	Year         int
	Duration     time.Duration
}

// Normalize trims identifying fields in place and rejects events reconciliation cannot act on.
func (e *MediaEvent) Normalize() error {
	e.SeriesName = strings.TrimSpace(e.SeriesName)
	e.EpisodeLabel = strings.TrimSpace(e.EpisodeLabel)
	e.ItemID = strings.TrimSpace(e.ItemID)
	e.EpisodeName = strings.TrimSpace(e.EpisodeName)

	switch {
	case e.Kind != EventItemAdded && e.Kind != EventPlaybackFinished:
		return fmt.Errorf("%w: unknown event kind %d", shared.ErrMalformedEvent, e.Kind)
	case e.SeriesName == "":
		return fmt.Errorf("%w: series name is empty", shared.ErrMalformedEvent)
	case e.EpisodeLabel == "":
		return fmt.Errorf("%w: episode label is empty", shared.ErrMalformedEvent)
	case e.ItemID == "":
		return fmt.Errorf("%w: item id is empty", shared.ErrMalformedEvent)
	}
	return nil
}

// Title is the task title for this episode: the label, optionally followed by the episode name.
func (e MediaEvent) Title() string {
	if e.EpisodeName == "" || e.EpisodeName == e.EpisodeLabel {
		return e.EpisodeLabel
	}
	return e.EpisodeLabel + " - " + e.EpisodeName
}

// Grouping is a named subdivision of a project (a Todoist section) holding one series.
type Grouping struct {
	ID                 string
	ProjectID          string
	Name               string
	Order              int
	TaskCount          int
	CompletedTaskCount int
}

// Task is a single episode to watch.
type Task struct {
	ID          string
	GroupingID  string
	Title       string
	Completed   bool
	ExternalRef string // media-library item id
}

// ItemMapping correlates a media item with the task created for it.
type ItemMapping struct {
	ID          string
	ItemID      string
	TaskID      string
	SeriesName  string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Completed reports whether the mapped task has been marked done locally.
func (m ItemMapping) Completed() bool {
	return m.CompletedAt != nil
}

// Validate checks the fields required to persist a mapping.
func (m ItemMapping) Validate() error {
	if strings.TrimSpace(m.ItemID) == "" {
		return fmt.Errorf("%w: item id is required", shared.ErrInvalidArgument)
	}
	if strings.TrimSpace(m.TaskID) == "" {
		return fmt.Errorf("%w: task id is required", shared.ErrInvalidArgument)
	}
	return nil
}

// package webhook turns Jellyfin webhook plugin payloads into [models.MediaEvent] values.
//
// Payloads are read with gjson because the plugin's templates are user-editable: numbers may arrive
// as strings, genres as a comma list or an array, and item ids under several keys.
package webhook

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/jellytodo/internal/models"
	"github.com/desertthunder/jellytodo/internal/shared"
	"github.com/tidwall/gjson"
)

// Notification types sent by the Jellyfin webhook plugin.
const (
	TypeItemAdded        = "ItemAdded"
	TypePlaybackStop     = "PlaybackStop"
	TypePlaybackFinished = "PlaybackFinished"
)

// DefaultCompletionThreshold is the largest gap between runtime and stop position that still counts as watched.
const DefaultCompletionThreshold = time.Minute

const ticksPerSecond = 10_000_000

// itemIDKeys are tried in order; ItemId is the library item, Id can be an event id in some templates.
var itemIDKeys = []string{"ItemId", "Id", "item_id", "id"}

// Parser converts webhook bodies to media events.
type Parser struct {
	threshold time.Duration
}

// NewParser creates a [Parser]. A non-positive threshold uses [DefaultCompletionThreshold].
func NewParser(threshold time.Duration) *Parser {
	if threshold <= 0 {
		threshold = DefaultCompletionThreshold
	}
	return &Parser{threshold: threshold}
}

// Parse validates and normalizes a webhook body.
//
// Returns [shared.ErrMalformedEvent] for bodies that cannot be understood and [shared.ErrIgnoredEvent]
// for well-formed notifications that need no reconciliation.
func (p *Parser) Parse(body []byte) (models.MediaEvent, error) {
	var event models.MediaEvent

	if !gjson.ValidBytes(body) {
		return event, fmt.Errorf("%w: invalid JSON", shared.ErrMalformedEvent)
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return event, fmt.Errorf("%w: payload is not an object", shared.ErrMalformedEvent)
	}

	notification := strings.TrimSpace(root.Get("NotificationType").String())
	switch notification {
	case "":
		return event, fmt.Errorf("%w: missing NotificationType", shared.ErrMalformedEvent)
	case TypeItemAdded:
		event.Kind = models.EventItemAdded
	case TypePlaybackFinished:
		event.Kind = models.EventPlaybackFinished
	case TypePlaybackStop:
		if !p.playedToEnd(root) {
			return event, fmt.Errorf("%w: playback stopped before the end", shared.ErrIgnoredEvent)
		}
		event.Kind = models.EventPlaybackFinished
	default:
		return event, fmt.Errorf("%w: notification type %s", shared.ErrIgnoredEvent, notification)
	}

	if itemType := strings.TrimSpace(root.Get("ItemType").String()); itemType != "" && itemType != "Episode" {
		return event, fmt.Errorf("%w: item type %s", shared.ErrIgnoredEvent, itemType)
	}

	event.ItemID = firstString(root, itemIDKeys...)
	event.SeriesName = root.Get("SeriesName").String()
	label, numbered := episodeLabel(root)
	event.EpisodeLabel = label
	if numbered {
		event.EpisodeName = root.Get("ItemName").String()
	}
	event.Genres = genres(root.Get("Genres"))
	event.Year = int(firstInt(root, "Year", "ProductionYear"))
	if d, ok := duration(root, "RunTimeTicks", "RunTime"); ok {
		event.Duration = d
	}

	if err := event.Normalize(); err != nil {
		return event, err
	}
	return event, nil
}

// playedToEnd reports whether a PlaybackStop notification means the episode was watched.
func (p *Parser) playedToEnd(root gjson.Result) bool {
	if root.Get("PlayedToCompletion").Bool() {
		return true
	}

	runtime, ok := duration(root, "RunTimeTicks", "RunTime")
	if !ok {
		return false
	}
	position, ok := duration(root, "PlaybackPositionTicks", "PlaybackPosition")
	if !ok {
		return false
	}

	diff := runtime - position
	if diff < 0 {
		diff = -diff
	}
	return diff <= p.threshold
}

// episodeLabel renders "SxxEyy", falling back to the item name for specials without numbers.
// numbered is false when the fallback was used.
func episodeLabel(root gjson.Result) (label string, numbered bool) {
	season, okSeason := intValue(root.Get("SeasonNumber"))
	if !okSeason {
		season, okSeason = intValue(root.Get("SeasonNumber00"))
	}
	episode, okEpisode := intValue(root.Get("EpisodeNumber"))
	if !okEpisode {
		episode, okEpisode = intValue(root.Get("EpisodeNumber00"))
	}

	if okSeason && okEpisode {
		return fmt.Sprintf("S%02dE%02d", season, episode), true
	}
	return root.Get("ItemName").String(), false
}

// duration reads a tick count, or failing that an "HH:MM:SS" / "MM:SS" clock string.
func duration(root gjson.Result, ticksKey, clockKey string) (time.Duration, bool) {
	if ticks, ok := intValue(root.Get(ticksKey)); ok && ticks > 0 {
		return time.Duration(ticks) * (time.Second / ticksPerSecond), true
	}

	clock := root.Get(clockKey)
	switch clock.Type {
	case gjson.Number:
		return time.Duration(clock.Float() * float64(time.Second)), true
	case gjson.String:
		return parseClock(clock.String())
	}
	return 0, false
}

// parseClock parses "HH:MM:SS" or "MM:SS"; the seconds field may carry a fraction.
func parseClock(s string) (time.Duration, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, false
	}

	seconds, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || seconds < 0 || math.IsNaN(seconds) {
		return 0, false
	}

	var whole []int
	for _, part := range parts[:len(parts)-1] {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, false
		}
		whole = append(whole, n)
	}

	total := time.Duration(seconds * float64(time.Second))
	if len(whole) == 2 {
		total += time.Duration(whole[0])*time.Hour + time.Duration(whole[1])*time.Minute
	} else {
		total += time.Duration(whole[0]) * time.Minute
	}
	return total, true
}

// intValue accepts JSON numbers and numeric strings.
func intValue(r gjson.Result) (int64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Int(), true
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(r.String()), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func firstInt(root gjson.Result, keys ...string) int64 {
	for _, key := range keys {
		if n, ok := intValue(root.Get(key)); ok {
			return n
		}
	}
	return 0
}

func firstString(root gjson.Result, keys ...string) string {
	for _, key := range keys {
		if s := strings.TrimSpace(root.Get(key).String()); s != "" {
			return s
		}
	}
	return ""
}

// genres accepts an array of names or a comma-separated string.
func genres(r gjson.Result) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	switch {
	case r.IsArray():
		r.ForEach(func(_, item gjson.Result) bool {
			add(item.String())
			return true
		})
	case r.Type == gjson.String:
		for _, s := range strings.Split(r.String(), ",") {
			add(s)
		}
	}
	return out
}

package webhook

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/jellytodo/internal/models"
	"github.com/desertthunder/jellytodo/internal/shared"
)

const itemAddedPayload = `{
	"NotificationType": "ItemAdded",
	"Name": "Item Added",
	"ServerId": "test-server-123",
	"ServerName": "Test Jellyfin Server",
	"Timestamp": "2024-01-15T10:30:00Z",
	"Id": "event-id",
	"ItemId": "test-jellyfin-item-123",
	"ItemName": "Test Episode Name",
	"ItemType": "Episode",
	"SeriesName": "Test Series",
	"SeasonNumber": "1",
	"EpisodeNumber": "1",
	"Genres": "Drama, Mystery",
	"Year": 2024,
	"RunTimeTicks": 26000000000
}`

func TestParse(t *testing.T) {
	p := NewParser(0)

	t.Run("ItemAdded", func(t *testing.T) {
		event, err := p.Parse([]byte(itemAddedPayload))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if event.Kind != models.EventItemAdded {
			t.Errorf("expected item added, got %s", event.Kind)
		}
		if event.ItemID != "test-jellyfin-item-123" {
			t.Errorf("expected ItemId to win over Id, got %s", event.ItemID)
		}
		if event.SeriesName != "Test Series" {
			t.Errorf("unexpected series %q", event.SeriesName)
		}
		if event.EpisodeLabel != "S01E01" {
			t.Errorf("expected S01E01, got %q", event.EpisodeLabel)
		}
		if event.EpisodeName != "Test Episode Name" {
			t.Errorf("unexpected episode name %q", event.EpisodeName)
		}
		if len(event.Genres) != 2 || event.Genres[1] != "Mystery" {
			t.Errorf("unexpected genres %v", event.Genres)
		}
		if event.Year != 2024 {
			t.Errorf("expected year 2024, got %d", event.Year)
		}
		if event.Duration != 2600*time.Second {
			t.Errorf("expected 2600s duration, got %v", event.Duration)
		}
	})

	t.Run("Numeric Season And Episode", func(t *testing.T) {
		body := `{"NotificationType": "ItemAdded", "ItemType": "Episode", "ItemId": "x", "SeriesName": "Show", "SeasonNumber": 2, "EpisodeNumber": 13}`
		event, err := p.Parse([]byte(body))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if event.EpisodeLabel != "S02E13" {
			t.Errorf("expected S02E13, got %q", event.EpisodeLabel)
		}
	})

	t.Run("Padded Template Fields", func(t *testing.T) {
		body := `{"NotificationType": "ItemAdded", "ItemId": "x", "SeriesName": "Show", "SeasonNumber00": "03", "EpisodeNumber00": "07"}`
		event, err := p.Parse([]byte(body))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if event.EpisodeLabel != "S03E07" {
			t.Errorf("expected S03E07, got %q", event.EpisodeLabel)
		}
	})

	t.Run("Genres Array", func(t *testing.T) {
		body := `{"NotificationType": "ItemAdded", "ItemId": "x", "SeriesName": "Show", "SeasonNumber": 1, "EpisodeNumber": 1, "Genres": ["Drama", " ", "Comedy"]}`
		event, err := p.Parse([]byte(body))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(event.Genres) != 2 || event.Genres[0] != "Drama" || event.Genres[1] != "Comedy" {
			t.Errorf("unexpected genres %v", event.Genres)
		}
	})

	t.Run("Item ID Fallbacks", func(t *testing.T) {
		tests := []struct {
			name string
			body string
			want string
		}{
			{"Id", `{"NotificationType": "ItemAdded", "Id": "a", "SeriesName": "S", "SeasonNumber": 1, "EpisodeNumber": 1}`, "a"},
			{"item_id", `{"NotificationType": "ItemAdded", "item_id": "b", "SeriesName": "S", "SeasonNumber": 1, "EpisodeNumber": 1}`, "b"},
			{"id", `{"NotificationType": "ItemAdded", "id": "c", "SeriesName": "S", "SeasonNumber": 1, "EpisodeNumber": 1}`, "c"},
			{"empty ItemId", `{"NotificationType": "ItemAdded", "ItemId": "", "Id": "d", "SeriesName": "S", "SeasonNumber": 1, "EpisodeNumber": 1}`, "d"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				event, err := p.Parse([]byte(tt.body))
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if event.ItemID != tt.want {
					t.Errorf("expected %s, got %s", tt.want, event.ItemID)
				}
			})
		}
	})

	t.Run("Special Without Numbers Uses Item Name", func(t *testing.T) {
		body := `{"NotificationType": "ItemAdded", "ItemId": "x", "SeriesName": "Show", "ItemName": "Holiday Special"}`
		event, err := p.Parse([]byte(body))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if event.EpisodeLabel != "Holiday Special" {
			t.Errorf("unexpected label %q", event.EpisodeLabel)
		}
		if event.EpisodeName != "" {
			t.Errorf("expected no episode name, got %q", event.EpisodeName)
		}
		if got := event.Title(); got != "Holiday Special" {
			t.Errorf("expected title 'Holiday Special', got %q", got)
		}
	})

	t.Run("PlaybackFinished", func(t *testing.T) {
		body := `{"NotificationType": "PlaybackFinished", "ItemType": "Episode", "ItemId": "x", "SeriesName": "Show", "SeasonNumber": 1, "EpisodeNumber": 2}`
		event, err := p.Parse([]byte(body))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if event.Kind != models.EventPlaybackFinished {
			t.Errorf("expected playback finished, got %s", event.Kind)
		}
	})

	t.Run("PlaybackStop", func(t *testing.T) {
		tests := []struct {
			name     string
			fields   string
			finished bool
		}{
			{"clock within threshold", `"RunTime": "00:43:20", "PlaybackPosition": "00:42:30"`, true},
			{"clock at threshold", `"RunTime": "43:20", "PlaybackPosition": "42:20"`, true},
			{"clock beyond threshold", `"RunTime": "00:43:20", "PlaybackPosition": "00:12:00"`, false},
			{"ticks within threshold", `"RunTimeTicks": 26000000000, "PlaybackPositionTicks": 25800000000`, true},
			{"ticks beyond threshold", `"RunTimeTicks": 26000000000, "PlaybackPositionTicks": 1000000000`, false},
			{"played to completion flag", `"PlayedToCompletion": true`, true},
			{"missing positions", ``, false},
			{"unparseable clock", `"RunTime": "soon", "PlaybackPosition": "00:10:00"`, false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				body := `{"NotificationType": "PlaybackStop", "ItemType": "Episode", "ItemId": "x", "SeriesName": "Show", "SeasonNumber": 1, "EpisodeNumber": 2`
				if tt.fields != "" {
					body += ", " + tt.fields
				}
				body += "}"

				event, err := p.Parse([]byte(body))
				if tt.finished {
					if err != nil {
						t.Fatalf("expected no error, got %v", err)
					}
					if event.Kind != models.EventPlaybackFinished {
						t.Errorf("expected playback finished, got %s", event.Kind)
					}
					return
				}
				if !errors.Is(err, shared.ErrIgnoredEvent) {
					t.Errorf("expected ErrIgnoredEvent, got %v", err)
				}
			})
		}
	})

	t.Run("Custom Threshold", func(t *testing.T) {
		strict := NewParser(10 * time.Second)
		body := `{"NotificationType": "PlaybackStop", "ItemId": "x", "SeriesName": "Show", "SeasonNumber": 1, "EpisodeNumber": 2, "RunTime": "00:43:20", "PlaybackPosition": "00:42:50"}`
		if _, err := strict.Parse([]byte(body)); !errors.Is(err, shared.ErrIgnoredEvent) {
			t.Errorf("expected 30s gap to be ignored with a 10s threshold, got %v", err)
		}
	})

	t.Run("Ignored", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"movie", `{"NotificationType": "ItemAdded", "ItemType": "Movie", "ItemId": "x", "ItemName": "Film"}`},
			{"playback start", `{"NotificationType": "PlaybackStart", "ItemType": "Episode", "ItemId": "x"}`},
			{"user created", `{"NotificationType": "UserCreated"}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := p.Parse([]byte(tt.body)); !errors.Is(err, shared.ErrIgnoredEvent) {
					t.Errorf("expected ErrIgnoredEvent, got %v", err)
				}
			})
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"invalid json", `{"NotificationType": `},
			{"array", `[1, 2, 3]`},
			{"missing type", `{"ItemId": "x"}`},
			{"missing item id", `{"NotificationType": "ItemAdded", "SeriesName": "Show", "SeasonNumber": 1, "EpisodeNumber": 1}`},
			{"missing series", `{"NotificationType": "ItemAdded", "ItemId": "x", "SeasonNumber": 1, "EpisodeNumber": 1}`},
			{"missing label", `{"NotificationType": "ItemAdded", "ItemId": "x", "SeriesName": "Show"}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := p.Parse([]byte(tt.body)); !errors.Is(err, shared.ErrMalformedEvent) {
					t.Errorf("expected ErrMalformedEvent, got %v", err)
				}
			})
		}
	})
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"01:02:03", time.Hour + 2*time.Minute + 3*time.Second, true},
		{"02:03", 2*time.Minute + 3*time.Second, true},
		{"00:00:01.5", 1500 * time.Millisecond, true},
		{"3", 0, false},
		{"1:2:3:4", 0, false},
		{"aa:00", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseClock(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseClock(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

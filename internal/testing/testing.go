// package testing contains shared testing utilities
package testing

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper returns a canned response and records every request it sees.
type MockRoundTripper struct {
	response *http.Response
	err      error
	Requests []*http.Request
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.Requests = append(m.Requests, req)
	return m.response, m.err
}

// FCloser fails every read, standing in for a broken response body.
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

// EpisodePayload builds a Jellyfin webhook body for season 1 of a series.
func EpisodePayload(notification, itemID, series string, episode int) string {
	return fmt.Sprintf(`{"NotificationType": %q, "ItemType": "Episode", "ItemId": %q, "SeriesName": %q, "SeasonNumber": 1, "EpisodeNumber": %d, "ItemName": "Pilot"}`,
		notification, itemID, series, episode)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// MustWriteFile writes content to path, typically a saved webhook payload or config.
func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

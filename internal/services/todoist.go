// Todoist API implementation of [TaskService]
//
// Response types based on https://developer.todoist.com/rest/v2/ and https://developer.todoist.com/sync/v9/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/desertthunder/jellytodo/internal/models"
	"github.com/desertthunder/jellytodo/internal/shared"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	todoistBaseURL  = "https://api.todoist.com/rest/v2"
	todoistSyncURL  = "https://api.todoist.com/sync/v9/sync"
	todoistAuthURL  = "https://todoist.com/oauth/authorize"
	todoistTokenURL = "https://todoist.com/oauth/access_token"

	// ExternalRefPrefix marks the description line holding the media item id.
	ExternalRefPrefix = "jellyfin-item:"

	defaultDueString = "today"
	maxResponseBytes = 4 << 20
)

// TodoistSection represents a Todoist section.
type TodoistSection struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Order     int    `json:"order"`
	Name      string `json:"name"`
}

// TodoistTask represents an active Todoist task.
type TodoistTask struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	SectionID   string `json:"section_id"`
	Content     string `json:"content"`
	Description string `json:"description"`
	IsCompleted bool   `json:"is_completed"`
	Order       int    `json:"order"`
}

type createSectionRequest struct {
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
}

type createTaskRequest struct {
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
	ProjectID   string `json:"project_id"`
	SectionID   string `json:"section_id,omitempty"`
	DueString   string `json:"due_string,omitempty"`
}

type sectionOrder struct {
	ID           string `json:"id"`
	SectionOrder int    `json:"section_order"`
}

type syncCommand struct {
	Type string `json:"type"`
	UUID string `json:"uuid"`
	Args any    `json:"args"`
}

// APIError is a non-2xx response from the Todoist API.
type APIError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v: todoist API status %d", e.kind, e.StatusCode)
	}
	return fmt.Sprintf("%v: todoist API status %d: %s", e.kind, e.StatusCode, e.Message)
}

// Unwrap exposes the sentinel classification for [errors.Is].
func (e *APIError) Unwrap() error {
	return e.kind
}

// classifyStatus maps an HTTP status to nil or an [*APIError].
func classifyStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: status, Message: strings.TrimSpace(excerpt(body))}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		apiErr.kind = shared.ErrAuthFailed
	case status == http.StatusTooManyRequests || status >= 500:
		apiErr.kind = shared.ErrRemoteUnavailable
	default:
		apiErr.kind = shared.ErrAPIRequest
	}
	return apiErr
}

func excerpt(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// TodoistOptions configures a [TodoistService].
type TodoistOptions struct {
	Token      string
	BaseURL    string        // REST v2 root (default https://api.todoist.com/rest/v2)
	SyncURL    string        // Sync v9 endpoint (default https://api.todoist.com/sync/v9/sync)
	DueString  string        // due string for new tasks (default "today")
	Timeout    time.Duration // per-request bound (default 30s)
	RateLimit  float64       // requests per second, 0 disables pacing
	HTTPClient *http.Client  // base client whose transport carries the bearer transport
}

// TodoistService implements [TaskService] for Todoist.
type TodoistService struct {
	baseURL    string
	syncURL    string
	dueString  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ TaskService = (*TodoistService)(nil)

// NewTodoistService creates a Todoist client authenticated with opts.Token.
func NewTodoistService(opts TodoistOptions) (*TodoistService, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, fmt.Errorf("%w: todoist API token", shared.ErrMissingCredentials)
	}

	if opts.BaseURL == "" {
		opts.BaseURL = todoistBaseURL
	}
	if opts.SyncURL == "" {
		opts.SyncURL = todoistSyncURL
	}
	if opts.DueString == "" {
		opts.DueString = defaultDueString
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, opts.HTTPClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	client.Timeout = opts.Timeout

	return &TodoistService{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		syncURL:    opts.SyncURL,
		dueString:  opts.DueString,
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 1),
	}, nil
}

// TodoistOAuthConfig returns the authorization-code flow configuration for Todoist.
func TodoistOAuthConfig(clientID, clientSecret, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"data:read_write"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   todoistAuthURL,
			TokenURL:  todoistTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (s *TodoistService) Name() string {
	return "Todoist"
}

// send paces, executes, and classifies a request, returning the response body.
func (s *TodoistService) send(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRemoteUnavailable, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrRemoteUnavailable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrRemoteUnavailable, err)
	}

	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// doRequest performs an authenticated JSON request against the REST API.
func (s *TodoistService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-Id", shared.GenerateID())
	}

	data, err := s.send(ctx, req)
	if err != nil {
		return err
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}
	return nil
}

// ListGroupings retrieves the project's sections sorted by order.
func (s *TodoistService) ListGroupings(ctx context.Context, projectID string) ([]models.Grouping, error) {
	var sections []TodoistSection
	endpoint := "/sections?project_id=" + url.QueryEscape(projectID)
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &sections); err != nil {
		return nil, err
	}

	groupings := make([]models.Grouping, 0, len(sections))
	for _, sec := range sections {
		groupings = append(groupings, sectionToGrouping(sec))
	}
	sort.SliceStable(groupings, func(i, j int) bool {
		return groupings[i].Order < groupings[j].Order
	})
	return groupings, nil
}

// CreateGrouping creates a section, which Todoist appends after existing ones.
func (s *TodoistService) CreateGrouping(ctx context.Context, projectID, name string) (*models.Grouping, error) {
	var sec TodoistSection
	if err := s.doRequest(ctx, http.MethodPost, "/sections", createSectionRequest{Name: name, ProjectID: projectID}, &sec); err != nil {
		return nil, err
	}
	g := sectionToGrouping(sec)
	return &g, nil
}

// CreateTask creates a task due per the configured due string with the external reference in its description.
func (s *TodoistService) CreateTask(ctx context.Context, projectID, groupingID, title, externalRef string) (*models.Task, error) {
	payload := createTaskRequest{
		Content:     title,
		Description: FormatExternalRef(externalRef),
		ProjectID:   projectID,
		SectionID:   groupingID,
		DueString:   s.dueString,
	}

	var task TodoistTask
	if err := s.doRequest(ctx, http.MethodPost, "/tasks", payload, &task); err != nil {
		return nil, err
	}
	t := taskToModel(task)
	if t.ExternalRef == "" {
		t.ExternalRef = externalRef
	}
	return &t, nil
}

// ListTasks retrieves the active tasks in a section.
//
// The REST API omits completed tasks.
func (s *TodoistService) ListTasks(ctx context.Context, groupingID string) ([]models.Task, error) {
	var tasks []TodoistTask
	endpoint := "/tasks?section_id=" + url.QueryEscape(groupingID)
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &tasks); err != nil {
		return nil, err
	}

	result := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		result = append(result, taskToModel(t))
	}
	return result, nil
}

// CompleteTask closes a task. A 404 means it is already closed or gone.
func (s *TodoistService) CompleteTask(ctx context.Context, taskID string) error {
	endpoint := fmt.Sprintf("/tasks/%s/close", url.PathEscape(taskID))
	err := s.doRequest(ctx, http.MethodPost, endpoint, nil, nil)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// MoveGrouping issues a section_reorder sync command.
//
// Todoist reorders within the section's own project, so projectID is not sent.
func (s *TodoistService) MoveGrouping(ctx context.Context, groupingID, projectID string, order int) error {
	cmd := syncCommand{
		Type: "section_reorder",
		UUID: shared.GenerateID(),
		Args: map[string]any{
			"sections": []sectionOrder{{ID: groupingID, SectionOrder: order}},
		},
	}
	return s.doSync(ctx, cmd)
}

// doSync posts a single command to the Sync API and checks its sync_status entry.
func (s *TodoistService) doSync(ctx context.Context, cmd syncCommand) error {
	commands, err := json.Marshal([]syncCommand{cmd})
	if err != nil {
		return fmt.Errorf("failed to encode sync command: %w", err)
	}

	form := url.Values{"commands": {string(commands)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.syncURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := s.send(ctx, req)
	if err != nil {
		return err
	}

	status := gjson.GetBytes(body, "sync_status."+gjson.Escape(cmd.UUID))
	switch {
	case !status.Exists():
		return fmt.Errorf("%w: %s: no sync status for command", shared.ErrAPIRequest, cmd.Type)
	case status.Type == gjson.String && status.String() == "ok":
		return nil
	default:
		msg := status.Get("error").String()
		if msg == "" {
			msg = status.Raw
		}
		return fmt.Errorf("%w: %s: %s", shared.ErrAPIRequest, cmd.Type, msg)
	}
}

// FormatExternalRef renders the description line carrying a media item id.
func FormatExternalRef(itemID string) string {
	if itemID == "" {
		return ""
	}
	return ExternalRefPrefix + itemID
}

// ParseExternalRef extracts the media item id from a task description, or "" when absent.
func ParseExternalRef(description string) string {
	for _, line := range strings.Split(description, "\n") {
		line = strings.TrimSpace(line)
		if ref, ok := strings.CutPrefix(line, ExternalRefPrefix); ok {
			return strings.TrimSpace(ref)
		}
	}
	return ""
}

func sectionToGrouping(sec TodoistSection) models.Grouping {
	return models.Grouping{
		ID:        sec.ID,
		ProjectID: sec.ProjectID,
		Name:      sec.Name,
		Order:     sec.Order,
	}
}

func taskToModel(t TodoistTask) models.Task {
	return models.Task{
		ID:          t.ID,
		GroupingID:  t.SectionID,
		Title:       t.Content,
		Completed:   t.IsCompleted,
		ExternalRef: ParseExternalRef(t.Description),
	}
}

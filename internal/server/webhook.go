package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jellytodo/internal/models"
	"github.com/desertthunder/jellytodo/internal/shared"
	"github.com/desertthunder/jellytodo/internal/tasks"
	"github.com/desertthunder/jellytodo/internal/webhook"
)

// MaxBodyBytes caps the size of an accepted webhook body.
const MaxBodyBytes = 1 << 20

// Reconciler applies one media event to the task service.
type Reconciler interface {
	Reconcile(ctx context.Context, event models.MediaEvent) (*tasks.Outcome, error)
}

// Response is the JSON body of every webhook and health reply.
type Response struct {
	Status  string `json:"status"`
	Action  string `json:"action,omitempty"`
	Message string `json:"message,omitempty"`
	PassID  string `json:"pass_id,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
}

// WebhookHandler receives Jellyfin notifications and reconciles them.
type WebhookHandler struct {
	parser     *webhook.Parser
	reconciler Reconciler
	logger     *log.Logger
}

// NewWebhookHandler creates a [WebhookHandler].
func NewWebhookHandler(parser *webhook.Parser, reconciler Reconciler, logger *log.Logger) *WebhookHandler {
	if parser == nil {
		parser = webhook.NewParser(0)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &WebhookHandler{parser: parser, reconciler: reconciler, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *WebhookHandler) Routes() []string {
	return []string{"/webhook"}
}

// ServeHTTP parses the body and runs one reconciliation pass before replying.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, Response{Status: "error", Message: "payload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, Response{Status: "error", Message: "failed to read body"})
		return
	}

	event, err := h.parser.Parse(body)
	if errors.Is(err, shared.ErrIgnoredEvent) {
		h.logger.Debug("ignoring notification", "reason", err)
		writeJSON(w, http.StatusOK, Response{Status: "ignored", Message: err.Error()})
		return
	}
	if err != nil {
		h.logger.Warn("rejecting notification", "err", err)
		writeJSON(w, http.StatusBadRequest, Response{Status: "error", Message: err.Error()})
		return
	}

	// A pass runs to completion even if the sender disconnects.
	outcome, err := h.reconciler.Reconcile(context.WithoutCancel(r.Context()), event)
	if err != nil {
		writeJSON(w, StatusFor(err), Response{Status: "error", Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Status:  "success",
		Action:  outcome.Action.String(),
		Message: outcome.String(),
		PassID:  outcome.PassID,
		TaskID:  outcome.TaskID,
	})
}

// StatusFor maps a reconciliation error to the HTTP status returned to the sender.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, shared.ErrMalformedEvent), errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrRemoteUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Health answers liveness probes.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Response{Status: "ok"})
}

// Opts configures [NewHandler].
type Opts struct {
	Parser         *webhook.Parser
	Reconciler     Reconciler // required
	Logger         *log.Logger
	AllowedOrigins []string
}

// NewHandler builds the webhook receiver: POST /webhook and GET /health behind request logging,
// wrapped in CORS so preflight requests are answered before routing.
func NewHandler(opts Opts) http.Handler {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	router := NewBasicRouter()
	router.Use(Logging(opts.Logger))
	router.Handle(http.MethodPost, "/webhook", NewWebhookHandler(opts.Parser, opts.Reconciler, opts.Logger))
	router.Handle(http.MethodGet, "/health", http.HandlerFunc(Health))

	return CORS(opts.AllowedOrigins)(router)
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

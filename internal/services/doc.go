// Package services defines the [TaskService] interface for task-management providers and implements it for Todoist.
//
// # Service Interface
//
// Reconciliation only needs groupings (Todoist sections), tasks, completion, and reordering.
// Everything else a provider offers is out of scope for the interface.
//
// # Todoist Implementation
//
// [TodoistService] talks to the REST v2 API for sections and tasks and to the Sync v9 API for
// section reordering, which REST does not expose.
//
// Authentication is a bearer token injected by an [oauth2.Transport] built from a static token
// source. The token is either a personal API token or one obtained through [TodoistOAuthConfig].
//
// Outbound calls are paced by a [rate.Limiter] and bounded by the client timeout. Each call is
// attempted once.
//
// The media item id travels in the task description as a "jellyfin-item:<id>" line and is parsed
// back into [models.Task.ExternalRef] when tasks are listed.
//
// # Error Handling
//
// Failures are classified with sentinel errors from the shared package:
//   - [shared.ErrAuthFailed] : 401 or 403, the credential was rejected
//   - [shared.ErrRemoteUnavailable] : transport failure, timeout, 429, or 5xx
//   - [shared.ErrAPIRequest] : any other non-2xx response or a rejected sync command
//
// HTTP failures carry an [*APIError] with the status code and body excerpt.
package services

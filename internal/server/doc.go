// Package server receives Jellyfin webhook deliveries over HTTP.
//
// # Routes
//
//   - POST /webhook parses the body with [webhook.Parser] and runs one reconciliation pass.
//   - GET /health answers {"status":"ok"}.
//
// Replies are JSON. Ignored notifications still answer 200 so the Jellyfin plugin does not retry them;
// [StatusFor] maps reconciliation errors to 400, 502 or 500.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] is backed by
// gorilla/mux, which answers 405 for a known path with the wrong method.
//
// [Middleware] wraps handlers in reverse order (last added executes first). [Logging] writes one line per
// request; [CORS] wraps the whole router so preflight requests never reach method matching.
//
// # OAuth Callback Handler
//
// [OAuthHandler] serves the redirect of the Todoist authorization code flow for `jellytodo auth todoist`.
// It validates the state parameter, exchanges the code, and sends exactly one result through a channel.
package server

package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed = fmt.Errorf("authentication failed")
	ErrTimeout    = fmt.Errorf("operation timed out")

	// Task service errors
	ErrAPIRequest        = fmt.Errorf("API request failed")
	ErrRemoteUnavailable = fmt.Errorf("remote service unavailable")

	// Event errors
	ErrMalformedEvent    = fmt.Errorf("malformed event")
	ErrIgnoredEvent      = fmt.Errorf("event ignored")
	ErrInconsistentState = fmt.Errorf("inconsistent state")

	// Persistence errors
	ErrNotFound = fmt.Errorf("not found")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

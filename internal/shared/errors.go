package shared

import "fmt"

var (
	// Configuration
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Catalog access. Errors from a catalog are prefixed with its name.
	ErrAuthFailed         = fmt.Errorf("authentication failed")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrTimeout            = fmt.Errorf("operation timed out")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Migration
	ErrTrackNotFound     = fmt.Errorf("no acceptable match")
	ErrPlaylistNotFound  = fmt.Errorf("playlist not found")
	ErrPlaylistOperation = fmt.Errorf("playlist operation failed")
	ErrCancelled         = fmt.Errorf("transfer cancelled")
	ErrNotFound          = fmt.Errorf("not found")
	ErrConflict          = fmt.Errorf("session already has an active transfer")

	// Caller input
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

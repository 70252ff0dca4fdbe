package sync

import "net/http"

// SyncContext holds shared run configuration. It is immutable after
// construction — fields must not be modified once a run has started.
type SyncContext struct {
	Config Config

	// RecordRequests captures API traffic under testdata/.requests for
	// later inspection.
	RecordRequests bool

	// Transport overrides the HTTP transport when set. Used by tests to
	// replay canned responses.
	Transport http.RoundTripper
}

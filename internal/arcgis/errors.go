package arcgis

import "errors"

// Error kinds surfaced by the source client. Both abort an ingest run
// before any persistence happens.
var (
	// ErrSourceUnavailable marks transient failure that survived the full
	// retry budget (timeouts, 5xx, repeatedly malformed bodies).
	ErrSourceUnavailable = errors.New("source service unavailable")

	// ErrAuthFailed marks an invalid or expired credential that one forced
	// token refresh could not fix. Never retried beyond that single refresh.
	ErrAuthFailed = errors.New("source authentication failed")
)

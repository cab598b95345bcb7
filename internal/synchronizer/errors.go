package synchronizer

import "errors"

var (
	// ErrBulkLoadFailed is reported through Handle.LastError when the bulk
	// read, or a resubscription that exhausted its retry budget, failed.
	// Activate or Refresh retries.
	ErrBulkLoadFailed = errors.New("bulk load failed")

	// ErrStreamDisconnected means the live change stream dropped. It is
	// handled internally and only surfaces wrapped in ErrBulkLoadFailed.
	ErrStreamDisconnected = errors.New("change stream disconnected")

	// ErrOwnerMismatch is logged for events that fail the owner filter. It is
	// never returned to callers.
	ErrOwnerMismatch = errors.New("event owner does not match active principal")

	ErrUnauthenticated = errors.New("no active principal")
	ErrNoTable         = errors.New("table is required")
)

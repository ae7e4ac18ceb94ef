package exception

import "github.com/yanun0323/errors"

// Retry errors
var (
	// ErrRetryCancelled rejects a queued retry that the user cancelled.
	ErrRetryCancelled = errors.New("cancelled by user")
	ErrRetryNilFunc   = errors.New("retry: nil execute func")
)

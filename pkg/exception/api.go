package exception

import "github.com/yanun0323/errors"

// API errors
var (
	ErrAPIRateLimited   = errors.New("api: rate limited")
	ErrAPIUnexpected    = errors.New("api: unexpected status")
	ErrAPIDecodeBody    = errors.New("api: decode response body")
	ErrAPIEmptyBaseURL  = errors.New("api: empty base url")
	ErrPollNilFetchFunc = errors.New("poll: nil fetch func")
)

package exception

import "github.com/yanun0323/errors"

// Config errors
var (
	ErrConfigRead      = errors.New("config: read")
	ErrConfigDecode    = errors.New("config: decode")
	ErrConfigInvalid   = errors.New("config: invalid value")
	ErrChaosRateRange  = errors.New("chaos: rate must be between 0 and 1")
	ErrChaosDialFailed = errors.New("chaos: injected dial failure")
)

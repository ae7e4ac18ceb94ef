package notify

import "strings"

// Severity selects how a toast is presented.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Toast is a user-facing notification.
type Toast struct {
	Severity    Severity
	Title       string
	Description string
}

// Notifier presents toasts.
type Notifier interface {
	Notify(t Toast)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(t Toast)

func (f NotifierFunc) Notify(t Toast) { f(t) }

// QueryKey names a cached resource, e.g. ["cameras", "front_door"].
type QueryKey []string

func (k QueryKey) String() string {
	return strings.Join(k, "/")
}

// Invalidator marks cached server state as stale.
type Invalidator interface {
	Invalidate(keys ...QueryKey)
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func(keys ...QueryKey)

func (f InvalidatorFunc) Invalidate(keys ...QueryKey) { f(keys...) }

// Nop discards toasts and invalidations.
type Nop struct{}

func (Nop) Notify(Toast) {}
func (Nop) Invalidate(...QueryKey) {}

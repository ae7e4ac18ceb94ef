package workers

const (
	EventStarted           = "WORKER_STARTED"
	EventStopped           = "WORKER_STOPPED"
	EventError             = "WORKER_ERROR"
	EventHealthCheckFailed = "WORKER_HEALTH_CHECK_FAILED"
	EventRestarting        = "WORKER_RESTARTING"
	EventRecovered         = "WORKER_RECOVERED"
)

const (
	StateRunning    = "running"
	StateStopped    = "stopped"
	StateError      = "error"
	StateUnhealthy  = "unhealthy"
	StateRestarting = "restarting"
)

// Event is the payload shared by every WORKER_* message. Fields beyond the
// worker name are set only by the types that carry them.
type Event struct {
	WorkerName   string  `json:"worker_name"`
	WorkerType   string  `json:"worker_type"`
	Error        *string `json:"error"`
	FailureCount int     `json:"failure_count"`
	Attempt      int     `json:"attempt"`
	MaxAttempts  int     `json:"max_attempts"`
	Timestamp    string  `json:"timestamp"`
}

func (Event) RequiredFields() []string { return []string{"worker_name"} }

// Worker is the last known state of one worker.
type Worker struct {
	Name         string
	Type         string
	State        string
	LastError    string
	FailureCount int
	Attempt      int
	LastEvent    string
	UpdatedAt    string
}

func stateFor(eventType string) string {
	switch eventType {
	case EventStarted, EventRecovered:
		return StateRunning
	case EventStopped:
		return StateStopped
	case EventError:
		return StateError
	case EventHealthCheckFailed:
		return StateUnhealthy
	case EventRestarting:
		return StateRestarting
	}
	return ""
}

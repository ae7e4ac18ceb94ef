package cameras

const (
	EventOnline        = "camera.online"
	EventOffline       = "camera.offline"
	EventError         = "camera.error"
	EventEnabled       = "camera.enabled"
	EventDisabled      = "camera.disabled"
	EventConfigUpdated = "camera.config_updated"
)

const (
	StatusUnknown  = "unknown"
	StatusOnline   = "online"
	StatusOffline  = "offline"
	StatusError    = "error"
	StatusDisabled = "disabled"
)

// Event is the payload of every camera.* message.
type Event struct {
	CameraID       string   `json:"camera_id"`
	CameraName     string   `json:"camera_name"`
	Status         string   `json:"status"`
	PreviousStatus *string  `json:"previous_status"`
	Reason         *string  `json:"reason"`
	UpdatedFields  []string `json:"updated_fields"`
}

func (Event) RequiredFields() []string { return []string{"camera_id"} }

// Camera is the last known state of one camera.
type Camera struct {
	ID        string
	Name      string
	Status    string
	Enabled   bool
	Reason    string
	LastEvent string
}

func (e Event) displayName() string {
	if e.CameraName != "" {
		return e.CameraName
	}
	return e.CameraID
}

// statusFor maps an event type to the status it implies. config_updated keeps
// the current status unless the payload carries one.
func statusFor(eventType string, e Event, current string) string {
	switch eventType {
	case EventOnline, EventEnabled:
		return StatusOnline
	case EventOffline:
		return StatusOffline
	case EventError:
		return StatusError
	case EventDisabled:
		return StatusDisabled
	}
	if e.Status != "" {
		return e.Status
	}
	return current
}

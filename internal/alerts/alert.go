package alerts

import "errors"

const (
	EventCreated      = "alert_created"
	EventUpdated      = "alert_updated"
	EventAcknowledged = "alert_acknowledged"
	EventResolved     = "alert_resolved"
	EventDeleted      = "alert_deleted"
)

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

const (
	StatusPending      = "pending"
	StatusDelivered    = "delivered"
	StatusAcknowledged = "acknowledged"
	StatusResolved     = "resolved"
	StatusDismissed    = "dismissed"
)

var errUnknownSeverity = errors.New("alerts: unknown severity")

// Alert is the payload shared by created, updated, acknowledged and resolved.
type Alert struct {
	ID        string  `json:"id"`
	EventID   int64   `json:"event_id"`
	RuleID    *string `json:"rule_id"`
	Severity  string  `json:"severity"`
	Status    string  `json:"status"`
	DedupKey  string  `json:"dedup_key"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func (Alert) RequiredFields() []string {
	return []string{"id", "event_id", "severity", "status", "dedup_key", "created_at", "updated_at"}
}

func (a Alert) Validate() error {
	switch a.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return nil
	}
	return errUnknownSeverity
}

// Closed reports whether the alert no longer needs attention.
func (a Alert) Closed() bool {
	return a.Status == StatusResolved || a.Status == StatusDismissed
}

// Deleted is the alert_deleted payload.
type Deleted struct {
	ID     string  `json:"id"`
	Reason *string `json:"reason"`
}

func (Deleted) RequiredFields() []string { return []string{"id"} }

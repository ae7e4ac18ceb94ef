package monitor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/cameras"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/dispatch"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/pipeline"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/workers"
)

// Connection is one feature's view of its connection.
type Connection struct {
	Feature string
	dispatch.ConnectionStatus
}

// Summary is a point-in-time view across every feature store.
type Summary struct {
	Connections         []Connection
	ActiveAlerts        int
	AlertsBySeverity    map[string]int
	Cameras             cameras.Counts
	Detections          int
	DetectionsByObject  map[string]int
	Queue               pipeline.QueueSummary
	DetectionsPerMinute float64
	Health              string
	UnhealthyComponents []string
	Workers             workers.Counts
}

// Summary snapshots every store.
func (m *Monitor) Summary() Summary {
	sum := Summary{
		ActiveAlerts:        len(m.Alerts.Active()),
		AlertsBySeverity:    m.Alerts.CountsBySeverity(),
		Cameras:             m.Cameras.Counts(),
		Detections:          m.Detections.Total(),
		DetectionsByObject:  m.Detections.CountsByObjectType(),
		Queue:               m.Pipeline.Queue(),
		DetectionsPerMinute: m.Pipeline.AverageDetectionsPerMinute(),
		Health:              m.Health.Current(),
		UnhealthyComponents: m.Health.UnhealthyComponents(),
		Workers:             m.Workers.Counts(),
	}
	for _, f := range m.features {
		sum.Connections = append(sum.Connections, Connection{Feature: f.Name(), ConnectionStatus: f.Status()})
	}
	return sum
}

// String renders the summary as a few log-friendly lines.
func (s Summary) String() string {
	var b strings.Builder
	conns := make([]string, 0, len(s.Connections))
	for _, c := range s.Connections {
		st := c.Status.String()
		if c.HasExhaustedRetries {
			st += "!"
		}
		if c.ReconnectCount > 0 {
			st += fmt.Sprintf("(%d)", c.ReconnectCount)
		}
		conns = append(conns, c.Feature+"="+st)
	}
	fmt.Fprintf(&b, "connections: %s\n", strings.Join(conns, " "))

	health := s.Health
	if health == "" {
		health = "unknown"
	}
	fmt.Fprintf(&b, "health: %s", health)
	if len(s.UnhealthyComponents) > 0 {
		fmt.Fprintf(&b, " (unhealthy: %s)", strings.Join(s.UnhealthyComponents, ", "))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "alerts: %d active %s\n", s.ActiveAlerts, formatCounts(s.AlertsBySeverity))
	fmt.Fprintf(&b, "cameras: %d online, %d offline, %d error, %d disabled\n",
		s.Cameras.Online, s.Cameras.Offline, s.Cameras.Error, s.Cameras.Disabled)
	fmt.Fprintf(&b, "detections: %d %s, %.1f/min\n", s.Detections, formatCounts(s.DetectionsByObject), s.DetectionsPerMinute)
	queue := "no data"
	if s.Queue.HasReceived {
		queue = fmt.Sprintf("%d queued", s.Queue.TotalDepth)
		switch {
		case s.Queue.IsCritical:
			queue += " (critical)"
		case s.Queue.HasBacklog:
			queue += " (backlog)"
		}
	}
	fmt.Fprintf(&b, "pipeline: %s\n", queue)
	fmt.Fprintf(&b, "workers: %d running, %d failing, %d restarting, %d stopped",
		s.Workers.Running, s.Workers.Failing, s.Workers.Restarting, s.Workers.Stopped)
	return b.String()
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

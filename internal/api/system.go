package api

import (
	"context"
	"sort"
)

// EndpointSystemHealth reports overall and per-service health.
const EndpointSystemHealth = "/api/system/health"

// ServiceStatus is one service inside a health report.
type ServiceStatus struct {
	Status  string  `json:"status"`
	Message *string `json:"message"`
}

// SystemHealth is the aggregate health report.
type SystemHealth struct {
	Status    string                   `json:"status"`
	Services  map[string]ServiceStatus `json:"services"`
	Timestamp string                   `json:"timestamp"`
}

// Unhealthy lists services not reporting healthy.
func (h SystemHealth) Unhealthy() []string {
	var out []string
	for name, s := range h.Services {
		if s.Status != "healthy" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// SystemHealth fetches the current health report.
func (c *Client) SystemHealth(ctx context.Context) (SystemHealth, error) {
	var h SystemHealth
	if err := c.GetJSON(ctx, EndpointSystemHealth, &h); err != nil {
		return SystemHealth{}, err
	}
	return h, nil
}

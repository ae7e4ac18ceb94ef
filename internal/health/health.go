package health

import (
	"errors"
	"sort"
)

const EventHealthChanged = "system.health_changed"

const (
	Healthy   = "healthy"
	Degraded  = "degraded"
	Unhealthy = "unhealthy"
)

var errUnknownHealth = errors.New("health: unknown health value")

// Changed is the system.health_changed payload.
type Changed struct {
	Health         string            `json:"health"`
	PreviousHealth *string           `json:"previous_health"`
	Components     map[string]string `json:"components"`
}

func (Changed) RequiredFields() []string { return []string{"health"} }

func (c Changed) Validate() error {
	if !known(c.Health) {
		return errUnknownHealth
	}
	if c.PreviousHealth != nil && !known(*c.PreviousHealth) {
		return errUnknownHealth
	}
	return nil
}

func known(h string) bool {
	return h == Healthy || h == Degraded || h == Unhealthy
}

// Transition is one recorded change. Previous is empty before the first event.
type Transition struct {
	Health     string
	Previous   string
	Components map[string]string
}

// unhealthyComponents lists components not reporting healthy, sorted.
func unhealthyComponents(components map[string]string) []string {
	var out []string
	for name, h := range components {
		if h != Healthy {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

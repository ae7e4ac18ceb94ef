package dispatch

import "github.com/yanun0323/logs"

// Route binds event types to a typed handler.
type Route struct {
	Types  []string
	handle func(env Envelope) bool
}

// On builds a Route that decodes the envelope data as T and passes it to apply.
// Payloads that fail to decode are dropped.
func On[T any](apply func(eventType string, payload T), types ...string) Route {
	return Route{
		Types: types,
		handle: func(env Envelope) bool {
			payload, err := Decode[T](env.Data)
			if err != nil {
				logs.Debugf("dispatch: drop %s, err: %+v", env.Type, err)
				return false
			}
			apply(env.Type, payload)
			return true
		},
	}
}

// OnEnvelope builds a Route that receives the raw envelope.
func OnEnvelope(apply func(env Envelope), types ...string) Route {
	return Route{
		Types: types,
		handle: func(env Envelope) bool {
			apply(env)
			return true
		},
	}
}

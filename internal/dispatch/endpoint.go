package dispatch

import (
	"net/url"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
)

const (
	EndpointEvents = "/ws/events"
	EndpointSystem = "/ws/system"
)

// JobLogsEndpoint is the per-job log stream. The job id lives in the path.
func JobLogsEndpoint(jobID string) string {
	return "/ws/jobs/" + url.PathEscape(jobID) + "/logs"
}

// ResolveKey builds the connection key for endpoint relative to baseURL,
// carrying apiKey as a sub-protocol when set.
func ResolveKey(baseURL string, endpoint string, apiKey string) (websocket.Key, error) {
	u, err := websocket.ResolveURL(baseURL, endpoint)
	if err != nil {
		return websocket.Key{}, err
	}
	key := websocket.Key{URL: u}
	if apiKey != "" {
		key.Protocols = []string{websocket.APIKeyProtocol(apiKey)}
	}
	return key, nil
}

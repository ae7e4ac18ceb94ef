package pipeline

const (
	EventQueueStatus = "queue.status"
	EventThroughput  = "pipeline.throughput"
)

const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

type Queue struct {
	Name    string `json:"name"`
	Depth   int    `json:"depth"`
	Workers int    `json:"workers"`
}

// QueueStatus is the queue.status payload.
type QueueStatus struct {
	Queues          []Queue `json:"queues"`
	TotalQueued     int     `json:"total_queued"`
	TotalProcessing int     `json:"total_processing"`
	OverallStatus   string  `json:"overall_status"`
}

func (QueueStatus) RequiredFields() []string { return []string{"queues"} }

// Throughput is the pipeline.throughput payload.
type Throughput struct {
	DetectionsPerMinute float64  `json:"detections_per_minute"`
	EventsPerMinute     float64  `json:"events_per_minute"`
	AvgLatencyMs        *float64 `json:"avg_latency_ms"`
	Timestamp           string   `json:"timestamp"`
}

func (Throughput) RequiredFields() []string {
	return []string{"detections_per_minute", "events_per_minute"}
}

// QueueSummary is derived from the latest queue status.
type QueueSummary struct {
	Status      QueueStatus
	Longest     Queue
	TotalDepth  int
	HasBacklog  bool
	IsCritical  bool
	HasReceived bool
}

func summarize(qs QueueStatus, backlog, critical int) QueueSummary {
	sum := QueueSummary{Status: qs, HasReceived: true}
	for _, q := range qs.Queues {
		sum.TotalDepth += q.Depth
		if q.Depth > sum.Longest.Depth {
			sum.Longest = q
		}
	}
	if sum.TotalDepth < qs.TotalQueued {
		sum.TotalDepth = qs.TotalQueued
	}
	sum.HasBacklog = sum.Longest.Depth >= backlog || qs.OverallStatus == HealthWarning
	sum.IsCritical = sum.Longest.Depth >= critical || qs.OverallStatus == HealthCritical
	if sum.IsCritical {
		sum.HasBacklog = true
	}
	return sum
}

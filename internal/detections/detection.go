package detections

import "errors"

const (
	EventDetection = "detection.new"
	EventBatch     = "detection.batch"
)

var errConfidenceRange = errors.New("detections: confidence out of range")

type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is the detection.new payload.
type Detection struct {
	DetectionID int64   `json:"detection_id"`
	EventID     *int64  `json:"event_id"`
	CameraID    string  `json:"camera_id"`
	ObjectType  string  `json:"object_type"`
	Confidence  float64 `json:"confidence"`
	BBox        *BBox   `json:"bbox"`
	Timestamp   string  `json:"timestamp"`
}

func (Detection) RequiredFields() []string {
	return []string{"detection_id", "camera_id", "object_type", "confidence"}
}

func (d Detection) Validate() error {
	if d.Confidence < 0 || d.Confidence > 1 {
		return errConfidenceRange
	}
	return nil
}

// Batch is the detection.batch payload: detections grouped by the pipeline
// before analysis.
type Batch struct {
	BatchID        string  `json:"batch_id"`
	CameraID       string  `json:"camera_id"`
	DetectionIDs   []int64 `json:"detection_ids"`
	DetectionCount int     `json:"detection_count"`
	StartedAt      string  `json:"started_at"`
	ClosedAt       string  `json:"closed_at"`
	CloseReason    string  `json:"close_reason"`
}

func (Batch) RequiredFields() []string { return []string{"batch_id", "camera_id"} }

// Size prefers the explicit count over the id list.
func (b Batch) Size() int {
	if b.DetectionCount > 0 {
		return b.DetectionCount
	}
	return len(b.DetectionIDs)
}

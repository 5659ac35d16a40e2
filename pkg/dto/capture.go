package dto

// CaptureResponse is returned by POST /v1/captures.
type CaptureResponse struct {
	RequestID       string   `json:"request_id"`
	SessionID       string   `json:"session_id,omitempty"`
	Outcome         string   `json:"outcome"` // discarded, saved, saved_degraded, failed
	Message         string   `json:"message"`
	PhotoURL        string   `json:"photo_url,omitempty"`
	FaceCount       int      `json:"face_count"`
	CropsSaved      int      `json:"crops_saved"`
	EmbeddingsSaved int      `json:"embeddings_saved"`
	Fallbacks       []string `json:"fallbacks,omitempty"`
}

// CaptureStatus is the outcome pushed to devices and WebSocket clients.
type CaptureStatus struct {
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id"`
	Outcome   string `json:"outcome"`
	Message   string `json:"message"`
	PhotoURL  string `json:"photo_url,omitempty"`
	Timestamp string `json:"timestamp"`
}

// WSEvent is a WebSocket message for real-time status delivery.
type WSEvent struct {
	Type      string        `json:"type"` // capture_status
	SessionID string        `json:"session_id"`
	Data      CaptureStatus `json:"data"`
}

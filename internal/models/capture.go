package models

import "time"

// CaptureEvent is the message the device gateway publishes to NATS for
// every shutter press. Image is base64 encoded by encoding/json.
type CaptureEvent struct {
	SessionID string    `json:"session_id"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	MimeType  string    `json:"mime_type"`
	Filename  string    `json:"filename"`
	Image     []byte    `json:"image"`
}

// Photo converts the event into the immutable photo handed to the intake.
func (e CaptureEvent) Photo() *CapturedPhoto {
	return &CapturedPhoto{
		RequestID: e.RequestID,
		SessionID: e.SessionID,
		Timestamp: e.Timestamp,
		Data:      e.Image,
		MimeType:  e.MimeType,
		Filename:  e.Filename,
		Size:      len(e.Image),
	}
}

// CaptureStatus is the outcome report sent back to the capture surface.
type CaptureStatus struct {
	SessionID string    `json:"session_id"`
	RequestID string    `json:"request_id"`
	Outcome   string    `json:"outcome"`
	Message   string    `json:"message"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// CapturedPhoto is one photo delivered by the capture surface. It is never
// mutated after capture.
type CapturedPhoto struct {
	RequestID string    `json:"request_id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"-"`
	MimeType  string    `json:"mime_type"`
	Filename  string    `json:"filename"`
	Size      int       `json:"size"`
}

type PhotoStatus string

const (
	PhotoStatusUploaded PhotoStatus = "uploaded"
	PhotoStatusFaceCrop PhotoStatus = "face_crop"
)

// StoredPhotoRecord is a row of the photos collection. Full photos carry
// status uploaded and no metadata; face crops carry status face_crop and
// the crop metadata.
type StoredPhotoRecord struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	ImageURL  string        `json:"image_url" db:"image_url"`
	Status    PhotoStatus   `json:"status" db:"status"`
	Metadata  *CropMetadata `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

type CropMetadata struct {
	PhotoRequestID  string          `json:"photo_request_id"`
	LocalFaceID     int             `json:"local_face_id"`
	TempPersonID    string          `json:"temp_person_id"`
	BoundingBox     BoundingBox     `json:"bounding_box"`
	CropCoordinates CropCoordinates `json:"crop_coordinates"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type FaceDetectionOutcome struct {
	HasFaces  bool `json:"has_faces"`
	FaceCount int  `json:"faces_detected"`
}

// BoundingBox is a face rectangle in source-photo pixel space.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CropCoordinates is the padded region actually cut out of the source photo.
type CropCoordinates struct {
	XStart int `json:"x_start"`
	YStart int `json:"y_start"`
	XEnd   int `json:"x_end"`
	YEnd   int `json:"y_end"`
}

// FaceCrop is one face cut from a captured photo. LocalFaceID is only
// unique within its source photo.
type FaceCrop struct {
	LocalFaceID     int
	Data            []byte
	BoundingBox     BoundingBox
	CropCoordinates CropCoordinates
}

type FaceEmbeddingRecord struct {
	ID           uuid.UUID `json:"id" db:"id"`
	FaceCropURL  string    `json:"face_crop_url" db:"face_crop_url"`
	Embedding    []float32 `json:"-" db:"embedding"`
	Confidence   float32   `json:"confidence" db:"confidence"`
	TempPersonID string    `json:"temp_person_id" db:"temp_person_id"`
	IsProcessed  bool      `json:"is_processed" db:"is_processed"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

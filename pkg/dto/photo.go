package dto

import "github.com/google/uuid"

type PhotoDescriptor struct {
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id,omitempty"`
	Timestamp string `json:"timestamp"`
	MimeType  string `json:"mime_type"`
	Filename  string `json:"filename"`
	Size      int    `json:"size"`
}

type PhotoListResponse struct {
	Photos []PhotoDescriptor `json:"photos"`
	Total  int               `json:"total"`
}

type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type CropCoordinates struct {
	XStart int `json:"x_start"`
	YStart int `json:"y_start"`
	XEnd   int `json:"x_end"`
	YEnd   int `json:"y_end"`
}

type CropMetadata struct {
	PhotoRequestID  string          `json:"photo_request_id"`
	LocalFaceID     int             `json:"local_face_id"`
	TempPersonID    string          `json:"temp_person_id"`
	BoundingBox     BoundingBox     `json:"bounding_box"`
	CropCoordinates CropCoordinates `json:"crop_coordinates"`
}

type RecordResponse struct {
	ID        uuid.UUID     `json:"id"`
	ImageURL  string        `json:"image_url"`
	Status    string        `json:"status"`
	Metadata  *CropMetadata `json:"metadata,omitempty"`
	CreatedAt string        `json:"created_at"`
}

type RecordListResponse struct {
	Records []RecordResponse `json:"records"`
	Total   int              `json:"total"`
}

type RecordQuery struct {
	Status         string `form:"status"`
	PhotoRequestID string `form:"photo_request_id"`
	Limit          int    `form:"limit"`
}

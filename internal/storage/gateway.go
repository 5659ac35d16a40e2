package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/facevault/internal/models"
)

// ObjectStore is the object storage the gateway uploads to.
type ObjectStore interface {
	PutObjectExclusive(ctx context.Context, bucket, key string, data []byte, contentType string) error
	ObjectURL(bucket, key string) string
}

// RecordStore is the record storage the gateway writes to.
type RecordStore interface {
	InsertPhotoRecord(ctx context.Context, rec *models.StoredPhotoRecord) error
	InsertEmbedding(ctx context.Context, rec *models.FaceEmbeddingRecord) error
}

// Gateway persists photos, face crops and embeddings. An object is always
// uploaded before its record is written, and a failed record write never
// removes the uploaded object.
type Gateway struct {
	objects      ObjectStore
	records      RecordStore
	photosBucket string
	cropsBucket  string
}

func NewGateway(objects ObjectStore, records RecordStore, photosBucket, cropsBucket string) *Gateway {
	return &Gateway{
		objects:      objects,
		records:      records,
		photosBucket: photosBucket,
		cropsBucket:  cropsBucket,
	}
}

// CropContext ties a face crop to its source photo and provisional person.
type CropContext struct {
	PhotoRequestID string
	TempPersonID   string
}

// StorePhoto uploads a full photo to the photos bucket and returns its URL.
func (g *Gateway) StorePhoto(ctx context.Context, data []byte, mimeType, path string) (string, error) {
	return g.upload(ctx, g.photosBucket, path, data, mimeType)
}

func (g *Gateway) RecordPhoto(ctx context.Context, rec *models.StoredPhotoRecord) error {
	if err := g.records.InsertPhotoRecord(ctx, rec); err != nil {
		return &RecordError{Op: "photo", Err: err}
	}
	return nil
}

// StoreFaceCrop uploads one crop to the crops bucket and records it with
// status face_crop.
func (g *Gateway) StoreFaceCrop(ctx context.Context, crop models.FaceCrop, cc CropContext) (string, uuid.UUID, error) {
	key := CropKey(cc.PhotoRequestID, crop.LocalFaceID)
	url, err := g.upload(ctx, g.cropsBucket, key, crop.Data, "image/jpeg")
	if err != nil {
		return "", uuid.Nil, err
	}

	rec := &models.StoredPhotoRecord{
		ImageURL: url,
		Status:   models.PhotoStatusFaceCrop,
		Metadata: &models.CropMetadata{
			PhotoRequestID:  cc.PhotoRequestID,
			LocalFaceID:     crop.LocalFaceID,
			TempPersonID:    cc.TempPersonID,
			BoundingBox:     crop.BoundingBox,
			CropCoordinates: crop.CropCoordinates,
		},
	}
	if err := g.records.InsertPhotoRecord(ctx, rec); err != nil {
		return url, uuid.Nil, &RecordError{Op: "face crop", Err: err}
	}
	return url, rec.ID, nil
}

func (g *Gateway) RecordEmbedding(ctx context.Context, rec *models.FaceEmbeddingRecord) error {
	if err := g.records.InsertEmbedding(ctx, rec); err != nil {
		return &RecordError{Op: "embedding", Err: err}
	}
	return nil
}

func (g *Gateway) upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if err := g.objects.PutObjectExclusive(ctx, bucket, key, data, contentType); err != nil {
		return "", &StorageError{Bucket: bucket, Key: key, Err: err}
	}
	return g.objects.ObjectURL(bucket, key), nil
}

// CropKey is the object key of a face crop within the crops bucket.
func CropKey(photoRequestID string, localFaceID int) string {
	return fmt.Sprintf("%s/face_%d.jpg", photoRequestID, localFaceID)
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/your-org/facevault/internal/analysis"
	"github.com/your-org/facevault/internal/models"
	"github.com/your-org/facevault/internal/observability"
	"github.com/your-org/facevault/internal/storage"
)

// Analyzer is the face analysis capability the pipeline consults.
type Analyzer interface {
	Available() bool
	Detect(ctx context.Context, image []byte) (models.FaceDetectionOutcome, error)
	CropFaces(ctx context.Context, image []byte) (*analysis.CropResult, error)
	Annotate(ctx context.Context, image []byte) (*analysis.AnnotateResult, error)
	Embed(ctx context.Context, faceCrop []byte) (*analysis.EmbedResult, error)
}

// Persister is where photos, crops and embeddings end up.
type Persister interface {
	StorePhoto(ctx context.Context, data []byte, mimeType, path string) (string, error)
	RecordPhoto(ctx context.Context, rec *models.StoredPhotoRecord) error
	StoreFaceCrop(ctx context.Context, crop models.FaceCrop, cc storage.CropContext) (string, uuid.UUID, error)
	RecordEmbedding(ctx context.Context, rec *models.FaceEmbeddingRecord) error
}

type Outcome string

const (
	OutcomeDiscarded     Outcome = "discarded"
	OutcomeSaved         Outcome = "saved"
	OutcomeSavedDegraded Outcome = "saved_degraded"
)

// Result describes what one pipeline run did.
type Result struct {
	Outcome         Outcome
	PhotoURL        string
	FaceCount       int
	CropsSaved      int
	EmbeddingsSaved int
	Annotated       bool
	// Fallbacks lists the stages that were skipped or failed open.
	Fallbacks []string
}

// Orchestrator runs detect → crop → embed → annotate → persist for one
// photo at a time. It holds no per-photo state, so one instance serves
// any number of concurrent runs.
type Orchestrator struct {
	analyzer     Analyzer
	store        Persister
	newTempID    IDGenerator
	embeddingDim int
}

type Option func(*Orchestrator)

// WithIDGenerator replaces the temp-person id generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(o *Orchestrator) { o.newTempID = gen }
}

// WithEmbeddingDim rejects embeddings whose length differs from n.
// Zero accepts any non-empty vector.
func WithEmbeddingDim(n int) Option {
	return func(o *Orchestrator) { o.embeddingDim = n }
}

func New(analyzer Analyzer, store Persister, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		analyzer:  analyzer,
		store:     store,
		newTempID: TempPersonIDs(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process runs the pipeline for one photo. Analysis failures never discard
// the photo; only a successful detect reporting no faces does. Storage and
// record failures on the photo or any crop abort the run with an error.
func (o *Orchestrator) Process(ctx context.Context, photo *models.CapturedPhoto) (*Result, error) {
	res := &Result{}
	log := slog.With("request_id", photo.RequestID)

	// 1. Availability gate: face status unknown, keep the photo as is.
	if !o.analyzer.Available() {
		log.Warn("face analysis unavailable, saving original photo")
		res.Fallbacks = append(res.Fallbacks, "analysis_unavailable")
		return o.finalize(ctx, photo, photo.Data, photo.MimeType, OutcomeSaved, res)
	}

	// 2. Detect: the only stage allowed to discard.
	detection, err := o.analyzer.Detect(ctx, photo.Data)
	if err != nil {
		log.Warn("face detection failed, saving original photo", "error", err)
		res.Fallbacks = append(res.Fallbacks, "detect_failed")
		return o.finalize(ctx, photo, photo.Data, photo.MimeType, OutcomeSaved, res)
	}
	if !detection.HasFaces {
		log.Info("no face detected, discarding photo")
		res.Outcome = OutcomeDiscarded
		return res, nil
	}
	res.FaceCount = detection.FaceCount
	observability.FacesDetected.Add(float64(detection.FaceCount))

	outcome := OutcomeSaved

	// 3. Crop, then 4. persist crops and embeddings.
	crops, err := o.analyzer.CropFaces(ctx, photo.Data)
	switch {
	case err != nil:
		log.Warn("face cropping failed, falling back to annotation only", "error", err)
		res.Fallbacks = append(res.Fallbacks, "crop_failed")
		outcome = OutcomeSavedDegraded
	case crops.HasFaces && len(crops.Faces) > 0:
		if err := o.persistCrops(ctx, photo, crops.Faces, res); err != nil {
			return nil, err
		}
	default:
		log.Info("cropper found no faces, skipping crops")
	}

	// 5. Annotate: cosmetic, the original is used when it fails.
	image, mimeType := photo.Data, photo.MimeType
	annotated, err := o.analyzer.Annotate(ctx, photo.Data)
	if err != nil {
		log.Warn("face annotation failed, saving original photo", "error", err)
		res.Fallbacks = append(res.Fallbacks, "annotate_failed")
		outcome = OutcomeSavedDegraded
	} else {
		image, mimeType = annotated.Image, "image/jpeg"
		res.Annotated = true
	}

	// 6. Finalize.
	return o.finalize(ctx, photo, image, mimeType, outcome, res)
}

// persistCrops stores each crop in list order. A crop upload or record
// failure aborts the run; embedding problems only skip that crop's embedding.
func (o *Orchestrator) persistCrops(ctx context.Context, photo *models.CapturedPhoto, faces []models.FaceCrop, res *Result) error {
	for _, crop := range faces {
		tempID := o.newTempID()

		url, recordID, err := o.store.StoreFaceCrop(ctx, crop, storage.CropContext{
			PhotoRequestID: photo.RequestID,
			TempPersonID:   tempID,
		})
		if err != nil {
			return fmt.Errorf("persist face %d of %s: %w", crop.LocalFaceID, photo.RequestID, err)
		}
		res.CropsSaved++
		observability.FaceCropsStored.Inc()
		slog.Debug("face crop stored",
			"request_id", photo.RequestID,
			"face_id", crop.LocalFaceID,
			"record_id", recordID,
			"temp_person_id", tempID,
		)

		if o.embedCrop(ctx, photo.RequestID, crop, url, tempID) {
			res.EmbeddingsSaved++
		}
	}
	return nil
}

// embedCrop is best effort: every failure is logged and reported as false.
func (o *Orchestrator) embedCrop(ctx context.Context, requestID string, crop models.FaceCrop, cropURL, tempID string) bool {
	log := slog.With("request_id", requestID, "face_id", crop.LocalFaceID)

	emb, err := o.analyzer.Embed(ctx, crop.Data)
	if err != nil {
		log.Warn("embedding failed", "error", err)
		observability.Embeddings.WithLabelValues("failed").Inc()
		return false
	}
	if !emb.Success {
		log.Warn("embedding rejected by analysis service", "reason", emb.Error)
		observability.Embeddings.WithLabelValues("rejected").Inc()
		return false
	}
	if len(emb.Embedding) == 0 || (o.embeddingDim > 0 && len(emb.Embedding) != o.embeddingDim) {
		log.Warn("embedding has unexpected length", "got", len(emb.Embedding), "want", o.embeddingDim)
		observability.Embeddings.WithLabelValues("invalid").Inc()
		return false
	}

	rec := &models.FaceEmbeddingRecord{
		FaceCropURL:  cropURL,
		Embedding:    emb.Embedding,
		Confidence:   clampConfidence(emb.Confidence),
		TempPersonID: tempID,
		IsProcessed:  false,
	}
	if err := o.store.RecordEmbedding(ctx, rec); err != nil {
		log.Warn("store embedding failed", "error", err)
		observability.Embeddings.WithLabelValues("record_failed").Inc()
		return false
	}
	observability.Embeddings.WithLabelValues("stored").Inc()
	return true
}

func (o *Orchestrator) finalize(ctx context.Context, photo *models.CapturedPhoto, image []byte, mimeType string, outcome Outcome, res *Result) (*Result, error) {
	url, err := o.store.StorePhoto(ctx, image, mimeType, PhotoKey(photo, res.Annotated))
	if err != nil {
		return nil, fmt.Errorf("store photo %s: %w", photo.RequestID, err)
	}

	rec := &models.StoredPhotoRecord{
		ImageURL: url,
		Status:   models.PhotoStatusUploaded,
	}
	if err := o.store.RecordPhoto(ctx, rec); err != nil {
		return nil, fmt.Errorf("record photo %s: %w", photo.RequestID, err)
	}

	res.PhotoURL = url
	res.Outcome = outcome
	return res, nil
}

// PhotoKey is the object key of a photo: capture date plus request id, so
// the same capture always maps to the same key. Annotated photos are JPEG
// regardless of what was captured.
func PhotoKey(photo *models.CapturedPhoto, annotated bool) string {
	ext := strings.ToLower(path.Ext(photo.Filename))
	if annotated {
		ext = ".jpg"
	}
	if ext == "" {
		if m := mimetype.Lookup(photo.MimeType); m != nil {
			ext = m.Extension()
		}
	}
	return photo.Timestamp.UTC().Format("2006/01/02") + "/" + photo.RequestID + ext
}

func clampConfidence(c float32) float32 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

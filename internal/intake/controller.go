// Package intake receives captured photos, registers them and runs the face
// pipeline, reporting a short status back to the capture surface.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/facevault/internal/models"
	"github.com/your-org/facevault/internal/observability"
	"github.com/your-org/facevault/internal/pipeline"
	"github.com/your-org/facevault/internal/registry"
)

var ErrInvalidCapture = errors.New("invalid capture")

// Processor runs the face pipeline for one photo.
type Processor interface {
	Process(ctx context.Context, photo *models.CapturedPhoto) (*pipeline.Result, error)
}

// Notifier delivers status messages to the capture surface.
type Notifier interface {
	Notify(ctx context.Context, status models.CaptureStatus) error
}

type Controller struct {
	registry  *registry.Registry
	processor Processor
	notifier  Notifier
	sessions  *sessionLocks
	now       func() time.Time
}

// NewController wires the intake. notifier may be nil.
func NewController(reg *registry.Registry, processor Processor, notifier Notifier) *Controller {
	return &Controller{
		registry:  reg,
		processor: processor,
		notifier:  notifier,
		sessions:  newSessionLocks(),
		now:       time.Now,
	}
}

// HandleCapture registers the photo, runs the pipeline to completion and
// reports the outcome. Captures of the same session are handled one at a
// time; different sessions run concurrently.
func (c *Controller) HandleCapture(ctx context.Context, photo *models.CapturedPhoto) (*pipeline.Result, error) {
	if photo.RequestID == "" || len(photo.Data) == 0 {
		return nil, fmt.Errorf("%w: request id and image are required", ErrInvalidCapture)
	}
	if photo.Timestamp.IsZero() {
		photo.Timestamp = c.now()
	}
	if photo.Size == 0 {
		photo.Size = len(photo.Data)
	}

	unlock := c.sessions.lock(lockKey(photo))
	defer unlock()

	if !c.registry.Add(photo) {
		slog.Warn("duplicate request id, registry keeps the first photo", "request_id", photo.RequestID)
	}

	start := time.Now()
	res, err := c.processor.Process(ctx, photo)

	status := models.CaptureStatus{
		SessionID: photo.SessionID,
		RequestID: photo.RequestID,
		Timestamp: c.now(),
	}
	if err != nil {
		slog.Error("capture failed",
			"request_id", photo.RequestID,
			"session_id", photo.SessionID,
			"error", err,
		)
		observability.CapturesProcessed.WithLabelValues("failed").Inc()
		status.Outcome = "failed"
		status.Message = "Photo could not be saved"
		c.notify(ctx, status)
		return nil, err
	}

	slog.Info("capture processed",
		"request_id", photo.RequestID,
		"session_id", photo.SessionID,
		"outcome", res.Outcome,
		"faces", res.FaceCount,
		"crops", res.CropsSaved,
		"embeddings", res.EmbeddingsSaved,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	observability.CapturesProcessed.WithLabelValues(string(res.Outcome)).Inc()

	status.Outcome = string(res.Outcome)
	status.Message = StatusMessage(res)
	status.PhotoURL = res.PhotoURL
	c.notify(ctx, status)
	return res, nil
}

// lockKey is the session a capture is serialized under. Captures without a
// session only serialize with resends of the same request.
func lockKey(photo *models.CapturedPhoto) string {
	if photo.SessionID == "" {
		return "request:" + photo.RequestID
	}
	return "session:" + photo.SessionID
}

func (c *Controller) notify(ctx context.Context, status models.CaptureStatus) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, status); err != nil {
		slog.Warn("deliver capture status", "request_id", status.RequestID, "error", err)
	}
}

// StatusMessage is the short text shown on the capture device.
func StatusMessage(res *pipeline.Result) string {
	switch res.Outcome {
	case pipeline.OutcomeDiscarded:
		return "No face detected, photo discarded"
	case pipeline.OutcomeSavedDegraded:
		return "Photo saved, face processing incomplete"
	case pipeline.OutcomeSaved:
		switch {
		case len(res.Fallbacks) > 0:
			return "Photo saved without face check"
		case res.FaceCount == 1:
			return "Photo saved, 1 face"
		default:
			return fmt.Sprintf("Photo saved, %d faces", res.FaceCount)
		}
	default:
		return "Photo processed"
	}
}

// MultiNotifier fans a status out to every notifier. All are attempted;
// the errors are joined.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, status models.CaptureStatus) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, status); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

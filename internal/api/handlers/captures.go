package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facevault/internal/intake"
	"github.com/your-org/facevault/internal/models"
	"github.com/your-org/facevault/internal/pipeline"
	"github.com/your-org/facevault/pkg/dto"
)

// MaxImageBytes bounds a single uploaded capture.
const MaxImageBytes = 20 << 20

// CaptureIntake runs one capture through the pipeline.
type CaptureIntake interface {
	HandleCapture(ctx context.Context, photo *models.CapturedPhoto) (*pipeline.Result, error)
}

type CaptureHandler struct {
	intake CaptureIntake
}

func NewCaptureHandler(in CaptureIntake) *CaptureHandler {
	return &CaptureHandler{intake: in}
}

// Create accepts a multipart image upload and runs the face pipeline on it
// before responding.
func (h *CaptureHandler) Create(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}
	if len(data) > MaxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported image type " + mime.String()})
		return
	}

	ts := time.Now().UTC()
	if raw := c.PostForm("timestamp"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timestamp, want RFC3339"})
			return
		}
		ts = parsed
	}

	requestID := c.PostForm("request_id")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	photo := &models.CapturedPhoto{
		RequestID: requestID,
		SessionID: c.PostForm("session_id"),
		Timestamp: ts,
		Data:      data,
		MimeType:  mime.String(),
		Filename:  header.Filename,
		Size:      len(data),
	}

	res, err := h.intake.HandleCapture(c.Request.Context(), photo)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, intake.ErrInvalidCapture) {
			status = http.StatusBadRequest
		}
		c.JSON(status, dto.CaptureResponse{
			RequestID: photo.RequestID,
			SessionID: photo.SessionID,
			Outcome:   "failed",
			Message:   "Photo could not be saved",
		})
		return
	}

	code := http.StatusCreated
	if res.Outcome == pipeline.OutcomeDiscarded {
		code = http.StatusOK
	}
	c.JSON(code, dto.CaptureResponse{
		RequestID:       photo.RequestID,
		SessionID:       photo.SessionID,
		Outcome:         string(res.Outcome),
		Message:         intake.StatusMessage(res),
		PhotoURL:        res.PhotoURL,
		FaceCount:       res.FaceCount,
		CropsSaved:      res.CropsSaved,
		EmbeddingsSaved: res.EmbeddingsSaved,
		Fallbacks:       res.Fallbacks,
	})
}

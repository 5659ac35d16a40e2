package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facevault/internal/registry"
	"github.com/your-org/facevault/pkg/dto"
)

// PhotoHandler serves captured photos back from the in-memory registry.
type PhotoHandler struct {
	registry *registry.Registry
}

func NewPhotoHandler(reg *registry.Registry) *PhotoHandler {
	return &PhotoHandler{registry: reg}
}

func (h *PhotoHandler) List(c *gin.Context) {
	photos := h.registry.List()

	resp := make([]dto.PhotoDescriptor, 0, len(photos))
	for _, p := range photos {
		resp = append(resp, dto.PhotoDescriptor{
			RequestID: p.RequestID,
			SessionID: p.SessionID,
			Timestamp: p.Timestamp.UTC().Format(time.RFC3339),
			MimeType:  p.MimeType,
			Filename:  p.Filename,
			Size:      p.Size,
		})
	}

	c.JSON(http.StatusOK, dto.PhotoListResponse{Photos: resp, Total: len(resp)})
}

// Get returns the raw bytes of the photo as captured.
func (h *PhotoHandler) Get(c *gin.Context) {
	data, mime, err := h.registry.Get(c.Param("id"))
	if errors.Is(err, registry.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, mime, data)
}

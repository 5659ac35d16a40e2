package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facevault/internal/models"
	"github.com/your-org/facevault/internal/storage"
	"github.com/your-org/facevault/pkg/dto"
)

type RecordLister interface {
	ListPhotoRecords(ctx context.Context, f storage.RecordFilter) ([]models.StoredPhotoRecord, error)
}

// RecordHandler lists persisted photo and face crop records.
type RecordHandler struct {
	db RecordLister
}

func NewRecordHandler(db RecordLister) *RecordHandler {
	return &RecordHandler{db: db}
}

func (h *RecordHandler) List(c *gin.Context) {
	var q dto.RecordQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := models.PhotoStatus(q.Status)
	switch status {
	case "", models.PhotoStatusUploaded, models.PhotoStatusFaceCrop:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be uploaded or face_crop"})
		return
	}
	if q.Limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must not be negative"})
		return
	}

	records, err := h.db.ListPhotoRecords(c.Request.Context(), storage.RecordFilter{
		Status:         status,
		PhotoRequestID: q.PhotoRequestID,
		Limit:          q.Limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.RecordResponse, 0, len(records))
	for _, r := range records {
		resp = append(resp, toRecordResponse(r))
	}
	c.JSON(http.StatusOK, dto.RecordListResponse{Records: resp, Total: len(resp)})
}

func toRecordResponse(r models.StoredPhotoRecord) dto.RecordResponse {
	out := dto.RecordResponse{
		ID:        r.ID,
		ImageURL:  r.ImageURL,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if m := r.Metadata; m != nil {
		out.Metadata = &dto.CropMetadata{
			PhotoRequestID: m.PhotoRequestID,
			LocalFaceID:    m.LocalFaceID,
			TempPersonID:   m.TempPersonID,
			BoundingBox: dto.BoundingBox{
				X: m.BoundingBox.X, Y: m.BoundingBox.Y,
				Width: m.BoundingBox.Width, Height: m.BoundingBox.Height,
			},
			CropCoordinates: dto.CropCoordinates{
				XStart: m.CropCoordinates.XStart, YStart: m.CropCoordinates.YStart,
				XEnd: m.CropCoordinates.XEnd, YEnd: m.CropCoordinates.YEnd,
			},
		}
	}
	return out
}

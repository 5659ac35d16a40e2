package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// AnalysisStatus reports the cached face analysis availability.
type AnalysisStatus interface {
	Available() bool
}

type SystemHandler struct {
	db       Pinger
	minio    Pinger
	nats     func() error // nil when NATS is not configured
	analysis AnalysisStatus
}

func NewSystemHandler(db, minio Pinger, nats func() error, analysis AnalysisStatus) *SystemHandler {
	return &SystemHandler{db: db, minio: minio, nats: nats, analysis: analysis}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz checks the stores the pipeline cannot run without. Face analysis is
// reported but never makes the service unready: captures fail open.
func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	// Check Postgres
	if err := h.db.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}

	// Check MinIO
	if err := h.minio.Ping(ctx); err != nil {
		checks["minio"] = err.Error()
		healthy = false
	} else {
		checks["minio"] = "ok"
	}

	// Check NATS
	if h.nats == nil {
		checks["nats"] = "disabled"
	} else if err := h.nats(); err != nil {
		checks["nats"] = err.Error()
		healthy = false
	} else {
		checks["nats"] = "ok"
	}

	if h.analysis.Available() {
		checks["analysis"] = "ok"
	} else {
		checks["analysis"] = "unavailable"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	})
}

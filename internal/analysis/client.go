// Package analysis is the typed client for the external face analysis
// service (detect, crop, annotate, embed).
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/your-org/facevault/internal/models"
	"github.com/your-org/facevault/internal/observability"
)

// Availability is the last known health of the analysis service.
// Unknown and Unavailable are both treated as "not available".
type Availability int32

const (
	Unknown Availability = iota
	Available
	Unavailable
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is returned when an analysis call fails: transport error, timeout,
// non-2xx status or an undecodable response.
type Error struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analysis %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("analysis %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	state   atomic.Int32
}

// NewClient creates a client for the service at baseURL. Every call is
// bounded by timeout; a timeout surfaces as an *Error like any other failure.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
	}
}

// CheckAvailability probes GET /health and caches the result. It never
// returns an error: an unreachable service is simply Unavailable.
func (c *Client) CheckAvailability(ctx context.Context) Availability {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result := Unavailable
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err == nil {
		resp, err := c.http.Do(req)
		if err != nil {
			slog.Warn("face analysis health check failed", "url", c.baseURL, "error", err)
		} else {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				result = Available
			} else {
				slog.Warn("face analysis health check failed", "url", c.baseURL, "status", resp.StatusCode)
			}
		}
	}

	prev := Availability(c.state.Swap(int32(result)))
	if prev != result {
		slog.Info("face analysis availability changed", "from", prev.String(), "to", result.String())
	}
	if result == Available {
		observability.AnalysisAvailable.Set(1)
	} else {
		observability.AnalysisAvailable.Set(0)
	}
	return result
}

// Availability returns the cached state without contacting the service.
func (c *Client) Availability() Availability {
	return Availability(c.state.Load())
}

func (c *Client) Available() bool {
	return c.Availability() == Available
}

type imageRequest struct {
	Image []byte `json:"image"`
}

type cropResponse struct {
	HasFaces      bool `json:"has_faces"`
	FacesDetected int  `json:"faces_detected"`
	FaceCrops     []struct {
		FaceID          int                    `json:"face_id"`
		FaceCrop        []byte                 `json:"face_crop_base64"`
		BoundingBox     models.BoundingBox     `json:"bounding_box"`
		CropCoordinates models.CropCoordinates `json:"crop_coordinates"`
	} `json:"face_crops"`
}

type processResponse struct {
	HasFaces       bool   `json:"has_faces"`
	FacesDetected  int    `json:"faces_detected"`
	ProcessedImage []byte `json:"processed_image"`
}

// CropResult lists the faces cut out of one photo, in service order.
type CropResult struct {
	HasFaces  bool
	FaceCount int
	Faces     []models.FaceCrop
}

// AnnotateResult carries the photo with face markers burned in (JPEG).
type AnnotateResult struct {
	HasFaces  bool
	FaceCount int
	Image     []byte
}

// EmbedResult is the service's verdict for one face crop. Success=false is
// a normal result, not an error.
type EmbedResult struct {
	Success    bool      `json:"success"`
	Embedding  []float32 `json:"embedding"`
	Confidence float32   `json:"confidence"`
	Model      string    `json:"model"`
	Error      string    `json:"error"`
}

func (c *Client) Detect(ctx context.Context, image []byte) (models.FaceDetectionOutcome, error) {
	out, err := postImage[models.FaceDetectionOutcome](ctx, c, "detect", "/detect-faces", image)
	if err != nil {
		return models.FaceDetectionOutcome{}, err
	}
	return *out, nil
}

func (c *Client) CropFaces(ctx context.Context, image []byte) (*CropResult, error) {
	resp, err := postImage[cropResponse](ctx, c, "crop", "/crop-faces", image)
	if err != nil {
		return nil, err
	}

	result := &CropResult{HasFaces: resp.HasFaces, FaceCount: resp.FacesDetected}
	for _, fc := range resp.FaceCrops {
		result.Faces = append(result.Faces, models.FaceCrop{
			LocalFaceID:     fc.FaceID,
			Data:            fc.FaceCrop,
			BoundingBox:     fc.BoundingBox,
			CropCoordinates: fc.CropCoordinates,
		})
	}
	return result, nil
}

func (c *Client) Annotate(ctx context.Context, image []byte) (*AnnotateResult, error) {
	resp, err := postImage[processResponse](ctx, c, "annotate", "/process-faces", image)
	if err != nil {
		return nil, err
	}
	if len(resp.ProcessedImage) == 0 {
		return nil, &Error{Op: "annotate", Err: errors.New("empty processed image")}
	}
	return &AnnotateResult{
		HasFaces:  resp.HasFaces,
		FaceCount: resp.FacesDetected,
		Image:     resp.ProcessedImage,
	}, nil
}

func (c *Client) Embed(ctx context.Context, faceCrop []byte) (*EmbedResult, error) {
	return postImage[EmbedResult](ctx, c, "embed", "/generate-embedding", faceCrop)
}

// postImage sends {"image": base64} to path and decodes the JSON response.
// Every failure is reported as *Error tagged with op.
func postImage[T any](ctx context.Context, c *Client, op, path string, image []byte) (*T, error) {
	start := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(imageRequest{Image: image})
	if err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Err: errors.New(readErrorBody(resp.Body))}
	}

	var result T
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &result, nil
}

// readErrorBody extracts the service's {"error": ...} message, falling back
// to the raw body.
func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	if s := strings.TrimSpace(string(data)); s != "" {
		return s
	}
	return "empty response"
}

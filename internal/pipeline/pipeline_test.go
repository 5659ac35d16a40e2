package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facevault/internal/analysis"
	"github.com/your-org/facevault/internal/models"
	"github.com/your-org/facevault/internal/storage"
	"github.com/your-org/facevault/internal/storage/mock"
)

const (
	photosBucket = "photos"
	cropsBucket  = "face-crops"
)

// fakeAnalyzer scripts each analysis stage and counts calls.
type fakeAnalyzer struct {
	mu        sync.Mutex
	available bool
	detect    func() (models.FaceDetectionOutcome, error)
	crop      func() (*analysis.CropResult, error)
	annotate  func() (*analysis.AnnotateResult, error)
	embed     func(n int) (*analysis.EmbedResult, error)
	calls     map[string]int
}

func (f *fakeAnalyzer) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
	return f.calls[op]
}

func (f *fakeAnalyzer) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAnalyzer) Available() bool { return f.available }

func (f *fakeAnalyzer) Detect(ctx context.Context, image []byte) (models.FaceDetectionOutcome, error) {
	f.count("detect")
	return f.detect()
}

func (f *fakeAnalyzer) CropFaces(ctx context.Context, image []byte) (*analysis.CropResult, error) {
	f.count("crop")
	return f.crop()
}

func (f *fakeAnalyzer) Annotate(ctx context.Context, image []byte) (*analysis.AnnotateResult, error) {
	f.count("annotate")
	return f.annotate()
}

func (f *fakeAnalyzer) Embed(ctx context.Context, faceCrop []byte) (*analysis.EmbedResult, error) {
	n := f.count("embed")
	return f.embed(n)
}

func vector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = 0.01 * float32(i)
	}
	return v
}

func faces(n int) []models.FaceCrop {
	out := make([]models.FaceCrop, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, models.FaceCrop{
			LocalFaceID:     i,
			Data:            []byte(fmt.Sprintf("crop-%d", i)),
			BoundingBox:     models.BoundingBox{X: 10 * i, Y: 10, Width: 50, Height: 60},
			CropCoordinates: models.CropCoordinates{XStart: 10*i - 5, YStart: 5, XEnd: 10*i + 55, YEnd: 75},
		})
	}
	return out
}

// healthy returns an analyzer where every stage succeeds for n faces.
func healthy(n int) *fakeAnalyzer {
	return &fakeAnalyzer{
		available: true,
		detect: func() (models.FaceDetectionOutcome, error) {
			return models.FaceDetectionOutcome{HasFaces: n > 0, FaceCount: n}, nil
		},
		crop: func() (*analysis.CropResult, error) {
			return &analysis.CropResult{HasFaces: n > 0, FaceCount: n, Faces: faces(n)}, nil
		},
		annotate: func() (*analysis.AnnotateResult, error) {
			return &analysis.AnnotateResult{HasFaces: n > 0, FaceCount: n, Image: []byte("annotated")}, nil
		},
		embed: func(int) (*analysis.EmbedResult, error) {
			return &analysis.EmbedResult{Success: true, Embedding: vector(128), Confidence: 0.9, Model: "face_recognition"}, nil
		},
	}
}

type harness struct {
	objects *mock.ObjectStore
	records *mock.RecordStore
	orch    *Orchestrator
}

func newHarness(a Analyzer, opts ...Option) *harness {
	objects := mock.NewObjectStore()
	records := mock.NewRecordStore()
	gw := storage.NewGateway(objects, records, photosBucket, cropsBucket)
	opts = append([]Option{WithEmbeddingDim(128)}, opts...)
	return &harness{objects: objects, records: records, orch: New(a, gw, opts...)}
}

func capture(id string) *models.CapturedPhoto {
	data := []byte("original-" + id)
	return &models.CapturedPhoto{
		RequestID: id,
		SessionID: "glasses-1",
		Timestamp: time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC),
		Data:      data,
		MimeType:  "image/jpeg",
		Filename:  id + ".jpg",
		Size:      len(data),
	}
}

func TestProcess_TwoFacesHappyPath(t *testing.T) {
	h := newHarness(healthy(2))

	res, err := h.orch.Process(context.Background(), capture("req-a"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeSaved, res.Outcome)
	assert.Equal(t, 2, res.FaceCount)
	assert.Equal(t, 2, res.CropsSaved)
	assert.Equal(t, 2, res.EmbeddingsSaved)
	assert.True(t, res.Annotated)
	assert.Empty(t, res.Fallbacks)
	assert.Equal(t, "http://objects.test/photos/2026/10/17/req-a.jpg", res.PhotoURL)

	photo, ok := h.objects.Get(photosBucket, "2026/10/17/req-a.jpg")
	require.True(t, ok)
	assert.Equal(t, []byte("annotated"), photo.Data)
	assert.Equal(t, "image/jpeg", photo.ContentType)

	uploaded := h.records.Photos(models.PhotoStatusUploaded)
	require.Len(t, uploaded, 1)
	assert.Equal(t, res.PhotoURL, uploaded[0].ImageURL)
	assert.Nil(t, uploaded[0].Metadata)

	crops := h.records.Photos(models.PhotoStatusFaceCrop)
	require.Len(t, crops, 2)
	embeddings := h.records.Embeddings()
	require.Len(t, embeddings, 2)

	for i, c := range crops {
		require.NotNil(t, c.Metadata)
		assert.Equal(t, "req-a", c.Metadata.PhotoRequestID)
		assert.Equal(t, i+1, c.Metadata.LocalFaceID)
		assert.Equal(t, fmt.Sprintf("http://objects.test/face-crops/req-a/face_%d.jpg", i+1), c.ImageURL)

		assert.Equal(t, c.ImageURL, embeddings[i].FaceCropURL)
		assert.Equal(t, c.Metadata.TempPersonID, embeddings[i].TempPersonID)
		assert.Len(t, embeddings[i].Embedding, 128)
		assert.False(t, embeddings[i].IsProcessed)
	}
	assert.NotEqual(t, crops[0].Metadata.TempPersonID, crops[1].Metadata.TempPersonID)
	assert.Contains(t, crops[0].Metadata.TempPersonID, "temp_person_")
}

func TestProcess_NoFacesDiscards(t *testing.T) {
	a := healthy(0)
	h := newHarness(a)

	res, err := h.orch.Process(context.Background(), capture("req-b"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeDiscarded, res.Outcome)
	assert.Empty(t, res.PhotoURL)
	assert.Empty(t, h.objects.Paths())
	assert.Empty(t, h.records.Photos(models.PhotoStatusUploaded))
	assert.Empty(t, h.records.Embeddings())
	assert.Zero(t, a.Calls("crop"))
	assert.Zero(t, a.Calls("annotate"))
}

func TestProcess_AnalysisUnavailableSavesOriginal(t *testing.T) {
	a := healthy(2)
	a.available = false
	h := newHarness(a)

	p := capture("req-c")
	res, err := h.orch.Process(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSaved, res.Outcome)
	assert.Equal(t, []string{"analysis_unavailable"}, res.Fallbacks)
	assert.Zero(t, a.Calls("detect"))

	photo, ok := h.objects.Get(photosBucket, "2026/10/17/req-c.jpg")
	require.True(t, ok)
	assert.Equal(t, p.Data, photo.Data)
	assert.Len(t, h.records.Photos(models.PhotoStatusUploaded), 1)
	assert.Empty(t, h.records.Photos(models.PhotoStatusFaceCrop))
}

func TestProcess_DetectFailureSavesOriginal(t *testing.T) {
	a := healthy(1)
	a.detect = func() (models.FaceDetectionOutcome, error) {
		return models.FaceDetectionOutcome{}, &analysis.Error{Op: "detect", StatusCode: 500, Err: errors.New("boom")}
	}
	h := newHarness(a)

	p := capture("req-d")
	res, err := h.orch.Process(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSaved, res.Outcome)
	assert.Equal(t, []string{"detect_failed"}, res.Fallbacks)
	assert.Zero(t, a.Calls("crop"))

	photo, ok := h.objects.Get(photosBucket, "2026/10/17/req-d.jpg")
	require.True(t, ok)
	assert.Equal(t, p.Data, photo.Data)
}

func TestProcess_CropFailureAnnotatesOnly(t *testing.T) {
	a := healthy(1)
	a.crop = func() (*analysis.CropResult, error) {
		return nil, &analysis.Error{Op: "crop", Err: context.DeadlineExceeded}
	}
	h := newHarness(a)

	res, err := h.orch.Process(context.Background(), capture("req-e"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeSavedDegraded, res.Outcome)
	assert.Equal(t, []string{"crop_failed"}, res.Fallbacks)
	assert.True(t, res.Annotated)
	assert.Zero(t, res.CropsSaved)
	assert.Zero(t, a.Calls("embed"))
	assert.Empty(t, h.records.Photos(models.PhotoStatusFaceCrop))

	photo, ok := h.objects.Get(photosBucket, "2026/10/17/req-e.jpg")
	require.True(t, ok)
	assert.Equal(t, []byte("annotated"), photo.Data)
}

func TestProcess_CropperFindsNothing(t *testing.T) {
	a := healthy(1)
	a.crop = func() (*analysis.CropResult, error) {
		return &analysis.CropResult{HasFaces: false}, nil
	}
	h := newHarness(a)

	res, err := h.orch.Process(context.Background(), capture("req-f"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeSaved, res.Outcome)
	assert.Zero(t, res.CropsSaved)
	assert.Equal(t, 1, a.Calls("annotate"))
	assert.Len(t, h.records.Photos(models.PhotoStatusUploaded), 1)
}

func TestProcess_AnnotateFailureKeepsOriginal(t *testing.T) {
	a := healthy(1)
	a.annotate = func() (*analysis.AnnotateResult, error) {
		return nil, &analysis.Error{Op: "annotate", StatusCode: 500, Err: errors.New("opencv")}
	}
	h := newHarness(a)

	p := capture("req-g")
	res, err := h.orch.Process(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSavedDegraded, res.Outcome)
	assert.False(t, res.Annotated)
	assert.Equal(t, 1, res.CropsSaved)

	photo, ok := h.objects.Get(photosBucket, "2026/10/17/req-g.jpg")
	require.True(t, ok)
	assert.Equal(t, p.Data, photo.Data)
}

func TestProcess_EmbeddingFailuresAreIsolated(t *testing.T) {
	a := healthy(4)
	a.embed = func(n int) (*analysis.EmbedResult, error) {
		switch n {
		case 1:
			return nil, &analysis.Error{Op: "embed", Err: errors.New("connection reset")}
		case 2:
			return &analysis.EmbedResult{Success: false, Error: "No face found in image"}, nil
		case 3:
			return &analysis.EmbedResult{Success: true, Embedding: vector(64), Confidence: 0.8}, nil
		default:
			return &analysis.EmbedResult{Success: true, Embedding: vector(128), Confidence: 1.7}, nil
		}
	}
	h := newHarness(a)

	res, err := h.orch.Process(context.Background(), capture("req-h"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeSaved, res.Outcome)
	assert.Equal(t, 4, res.CropsSaved)
	assert.Equal(t, 1, res.EmbeddingsSaved)
	assert.Len(t, h.records.Photos(models.PhotoStatusFaceCrop), 4)

	embeddings := h.records.Embeddings()
	require.Len(t, embeddings, 1)
	assert.Equal(t, "http://objects.test/face-crops/req-h/face_4.jpg", embeddings[0].FaceCropURL)
	assert.Equal(t, float32(1), embeddings[0].Confidence)
}

func TestProcess_EmbeddingRecordFailureIsIsolated(t *testing.T) {
	h := newHarness(healthy(2))
	h.records.EmbeddingError = errors.New("vector dimension mismatch")

	res, err := h.orch.Process(context.Background(), capture("req-i"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeSaved, res.Outcome)
	assert.Equal(t, 2, res.CropsSaved)
	assert.Zero(t, res.EmbeddingsSaved)
}

func TestProcess_CropUploadFailureIsFatal(t *testing.T) {
	h := newHarness(healthy(2))
	h.objects.PutError = errors.New("bucket unreachable")
	h.objects.FailBucket = cropsBucket

	res, err := h.orch.Process(context.Background(), capture("req-j"))
	require.Error(t, err)
	assert.Nil(t, res)

	var serr *storage.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, cropsBucket, serr.Bucket)

	assert.Empty(t, h.records.Photos(models.PhotoStatusFaceCrop))
	_, ok := h.objects.Get(photosBucket, "2026/10/17/req-j.jpg")
	assert.False(t, ok)
}

func TestProcess_CropRecordFailureIsFatal(t *testing.T) {
	a := healthy(2)
	h := newHarness(a)
	h.records.CropRecordError = errors.New("insert failed")

	_, err := h.orch.Process(context.Background(), capture("req-k"))
	require.Error(t, err)

	var rerr *storage.RecordError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "face crop", rerr.Op)

	// The first crop object stays behind; nothing after it runs.
	assert.Equal(t, []string{"face-crops/req-k/face_1.jpg"}, h.objects.Paths())
	assert.Zero(t, a.Calls("embed"))
	assert.Zero(t, a.Calls("annotate"))
}

func TestProcess_PhotoUploadFailureIsFatal(t *testing.T) {
	h := newHarness(healthy(1))
	h.objects.PutError = errors.New("disk full")
	h.objects.FailBucket = photosBucket

	_, err := h.orch.Process(context.Background(), capture("req-l"))
	require.Error(t, err)
	assert.Empty(t, h.records.Photos(models.PhotoStatusUploaded))
	// Crops written before the failure are kept.
	assert.Len(t, h.records.Photos(models.PhotoStatusFaceCrop), 1)
}

func TestProcess_PhotoRecordFailureIsFatal(t *testing.T) {
	a := healthy(1)
	a.available = false
	h := newHarness(a)
	h.records.PhotoError = errors.New("connection refused")

	_, err := h.orch.Process(context.Background(), capture("req-m"))
	require.Error(t, err)

	var rerr *storage.RecordError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "photo", rerr.Op)
	_, ok := h.objects.Get(photosBucket, "2026/10/17/req-m.jpg")
	assert.True(t, ok)
}

func TestProcess_RerunCollidesInsteadOfOverwriting(t *testing.T) {
	h := newHarness(healthy(1))
	p := capture("req-n")

	_, err := h.orch.Process(context.Background(), p)
	require.NoError(t, err)

	_, err = h.orch.Process(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrObjectExists)
	assert.Len(t, h.records.Photos(models.PhotoStatusFaceCrop), 1)
	assert.Len(t, h.records.Photos(models.PhotoStatusUploaded), 1)
}

func TestProcess_CustomIDGenerator(t *testing.T) {
	n := 0
	gen := func() string {
		n++
		return fmt.Sprintf("temp_person_%d", n)
	}
	h := newHarness(healthy(3), WithIDGenerator(gen))

	_, err := h.orch.Process(context.Background(), capture("req-o"))
	require.NoError(t, err)

	var ids []string
	for _, c := range h.records.Photos(models.PhotoStatusFaceCrop) {
		ids = append(ids, c.Metadata.TempPersonID)
	}
	assert.Equal(t, []string{"temp_person_1", "temp_person_2", "temp_person_3"}, ids)
}

func TestProcess_ConcurrentRunsGetDistinctTempIDs(t *testing.T) {
	h := newHarness(healthy(2))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.orch.Process(context.Background(), capture(fmt.Sprintf("req-p%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, c := range h.records.Photos(models.PhotoStatusFaceCrop) {
		assert.False(t, seen[c.Metadata.TempPersonID], "duplicate temp id %s", c.Metadata.TempPersonID)
		seen[c.Metadata.TempPersonID] = true
	}
	assert.Len(t, seen, 20)
}

func TestPhotoKey(t *testing.T) {
	p := capture("abc")
	assert.Equal(t, "2026/10/17/abc.jpg", PhotoKey(p, false))

	p.Filename = "IMG_0001.PNG"
	assert.Equal(t, "2026/10/17/abc.png", PhotoKey(p, false))
	assert.Equal(t, "2026/10/17/abc.jpg", PhotoKey(p, true))

	p.Filename = ""
	p.MimeType = "image/png"
	assert.Equal(t, "2026/10/17/abc.png", PhotoKey(p, false))

	p.MimeType = "application/x-unknown-thing"
	assert.Equal(t, "2026/10/17/abc", PhotoKey(p, false))
	assert.Equal(t, "2026/10/17/abc.jpg", PhotoKey(p, true))

	p.Timestamp = time.Date(2026, 1, 2, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	assert.Equal(t, "2026/01/03/abc", PhotoKey(p, false))
}

func TestProcess_AnnotatedPNGIsStoredAsJPEG(t *testing.T) {
	p := capture("req-png")
	p.MimeType = "image/png"
	p.Filename = "shot.png"

	a := healthy(1)
	a.crop = func() (*analysis.CropResult, error) {
		return &analysis.CropResult{HasFaces: false}, nil
	}
	h := newHarness(a)
	res, err := h.orch.Process(context.Background(), p)
	require.NoError(t, err)
	require.True(t, res.Annotated)
	assert.Equal(t, "http://objects.test/photos/2026/10/17/req-png.jpg", res.PhotoURL)

	photo, ok := h.objects.Get(photosBucket, "2026/10/17/req-png.jpg")
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", photo.ContentType)
	_, ok = h.objects.Get(photosBucket, "2026/10/17/req-png.png")
	assert.False(t, ok)

	// A second run of the same capture lands on the same key.
	_, err = h.orch.Process(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrObjectExists)
}

func TestProcess_UnannotatedPNGKeepsExtension(t *testing.T) {
	p := capture("req-png")
	p.MimeType = "image/png"
	p.Filename = "shot.png"

	a := healthy(1)
	a.annotate = func() (*analysis.AnnotateResult, error) {
		return nil, &analysis.Error{Op: "annotate", Err: errors.New("timeout")}
	}
	h := newHarness(a)
	res, err := h.orch.Process(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, "http://objects.test/photos/2026/10/17/req-png.png", res.PhotoURL)
	photo, ok := h.objects.Get(photosBucket, "2026/10/17/req-png.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", photo.ContentType)
}

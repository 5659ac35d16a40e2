package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CapturesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facevault",
		Name:      "captures_total",
		Help:      "Total number of captured photos by pipeline outcome",
	}, []string{"outcome"})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facevault",
		Name:      "faces_detected_total",
		Help:      "Total number of faces reported by the analysis service",
	})

	FaceCropsStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facevault",
		Name:      "face_crops_stored_total",
		Help:      "Total number of face crops uploaded and recorded",
	})

	Embeddings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facevault",
		Name:      "embeddings_total",
		Help:      "Face embedding attempts by result",
	}, []string{"result"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facevault",
		Name:      "analysis_duration_seconds",
		Help:      "Duration of face analysis service calls",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"stage"})

	AnalysisAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facevault",
		Name:      "analysis_available",
		Help:      "1 if the face analysis service passed its last health check",
	})

	RegistryPhotos = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facevault",
		Name:      "registry_photos",
		Help:      "Number of photos held in the in-memory registry",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facevault",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	CaptureQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facevault",
		Name:      "capture_queue_depth",
		Help:      "Number of capture events waiting in the CAPTURES stream",
	})

	UnprocessedEmbeddings = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facevault",
		Name:      "embeddings_unprocessed",
		Help:      "Number of stored face embeddings awaiting identity resolution",
	})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facevault",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)

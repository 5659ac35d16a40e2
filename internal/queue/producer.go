package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/facevault/internal/models"
)

const (
	CapturesStreamName  = "CAPTURES"
	CapturesSubjectBase = "captures"
	StatusStreamName    = "STATUS"
	StatusSubjectBase   = "status"
)

// CaptureSubject is the subject a session's capture events are published on.
func CaptureSubject(sessionID string) string {
	return CapturesSubjectBase + "." + subjectToken(sessionID)
}

// StatusSubject is the subject a session's status messages are published on.
func StatusSubject(sessionID string) string {
	return StatusSubjectBase + "." + subjectToken(sessionID)
}

// subjectToken keeps a session id usable as a single subject token.
func subjectToken(s string) string {
	if s == "" {
		return "default"
	}
	out := []byte(s)
	for i, b := range out {
		switch b {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			out[i] = '_'
		}
	}
	return string(out)
}

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := connect(natsURL)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

func connect(natsURL string) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

// EnsureStreams creates JetStream streams if they don't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:        CapturesStreamName,
			Subjects:    []string{CapturesSubjectBase + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      time.Hour,
			MaxMsgs:     10000,
			MaxBytes:    2 * 1024 * 1024 * 1024, // 2GB
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Duplicates:  2 * time.Minute,
			Description: "Captured photos awaiting the face pipeline",
		},
		{
			Name:        StatusStreamName,
			Subjects:    []string{StatusSubjectBase + ".>"},
			Retention:   jetstream.LimitsPolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     1000000,
			Storage:     jetstream.FileStorage,
			Description: "Capture outcome messages for devices",
		},
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		allOK := true
		for _, cfg := range streams {
			opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
			cancel()
			if err != nil {
				allOK = false
				if attempt == maxAttempts {
					return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
				}
				slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
				break
			}
			slog.Info("ensured NATS stream", "name", cfg.Name)
		}
		if allOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// PublishCapture publishes a capture event. The request id doubles as the
// JetStream message id, so a resent capture inside the duplicate window is
// dropped by the server.
func (p *Producer) PublishCapture(ctx context.Context, evt models.CaptureEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal capture: %w", err)
	}

	ack, err := p.js.Publish(ctx, CaptureSubject(evt.SessionID), payload, jetstream.WithMsgID(evt.RequestID))
	if err != nil {
		return fmt.Errorf("publish capture: %w", err)
	}
	if ack.Duplicate {
		slog.Warn("capture already queued", "request_id", evt.RequestID)
	}
	return nil
}

// Notify publishes a capture status for the device gateway.
func (p *Producer) Notify(ctx context.Context, status models.CaptureStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	if _, err := p.js.Publish(ctx, StatusSubject(status.SessionID), payload); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	return nil
}

// QueueDepth returns the number of pending messages in the CAPTURES stream.
func (p *Producer) QueueDepth(ctx context.Context) (uint64, error) {
	stream, err := p.js.Stream(ctx, CapturesStreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}

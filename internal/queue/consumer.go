package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/facevault/internal/models"
)

// CaptureHandler processes one decoded capture event.
type CaptureHandler func(ctx context.Context, evt models.CaptureEvent) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, err := connect(natsURL)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeCaptures starts consuming capture events from the CAPTURES stream.
// workerCount determines how many goroutines process messages concurrently.
// Captures are attempted once: a failed capture is terminated, not
// redelivered, unless the failure came from shutdown.
func (c *Consumer) ConsumeCaptures(ctx context.Context, consumerName string, handler CaptureHandler, workerCount int) error {
	stream, err := c.js.Stream(ctx, CapturesStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", CapturesStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       5 * time.Minute,
		MaxDeliver:    3,
		FilterSubject: CapturesSubjectBase + ".>",
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	msgCh := make(chan jetstream.Msg, workerCount*2)

	// Fetch loop
	go func() {
		defer close(msgCh)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(workerCount, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch captures error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				select {
				case msgCh <- msg:
				case <-ctx.Done():
					_ = msg.Nak()
					return
				}
			}
		}
	}()

	// Workers
	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			for msg := range msgCh {
				c.handleCapture(ctx, workerID, msg, handler)
			}
		}(i)
	}

	slog.Info("capture consumer started", "consumer", consumerName, "workers", workerCount)
	return nil
}

func (c *Consumer) handleCapture(ctx context.Context, workerID int, msg jetstream.Msg, handler CaptureHandler) {
	var evt models.CaptureEvent
	if err := json.Unmarshal(msg.Data(), &evt); err != nil {
		slog.Error("decode capture", "worker", workerID, "subject", msg.Subject(), "error", err)
		_ = msg.Term()
		return
	}

	// Keep working on it while the pipeline runs.
	stop := keepInProgress(ctx, msg)
	err := handler(ctx, evt)
	stop()

	switch {
	case err == nil:
		_ = msg.Ack()
	case ctx.Err() != nil:
		_ = msg.Nak()
	default:
		slog.Error("process capture error", "worker", workerID, "request_id", evt.RequestID, "error", err)
		_ = msg.Term()
	}
}

// keepInProgress extends the ack deadline every minute until stop is called.
func keepInProgress(ctx context.Context, msg jetstream.Msg) (stop func()) {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				_ = msg.InProgress()
			}
		}
	}()
	return func() { close(done) }
}

// WatchStatus streams new status messages of one session until ctx ends.
func (c *Consumer) WatchStatus(ctx context.Context, sessionID string) (<-chan models.CaptureStatus, error) {
	cons, err := c.js.OrderedConsumer(ctx, StatusStreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{StatusSubject(sessionID)},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create status consumer: %w", err)
	}

	out := make(chan models.CaptureStatus, 16)
	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}
			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(2*time.Second))
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, jetstream.ErrConsumerNotFound) {
					return
				}
				time.Sleep(time.Second)
				continue
			}
			for msg := range batch.Messages() {
				var status models.CaptureStatus
				if err := json.Unmarshal(msg.Data(), &status); err != nil {
					slog.Warn("decode status", "subject", msg.Subject(), "error", err)
					continue
				}
				select {
				case out <- status:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}

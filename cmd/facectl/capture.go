package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/your-org/facevault/internal/models"
	"github.com/your-org/facevault/internal/queue"
)

var captureCmd = &cobra.Command{
	Use:   "capture <image-file>",
	Short: "Publish a photo to the capture queue like a device would",
	Long: `Publish an image file as a capture event on the CAPTURES stream.

With --wait the command also prints the status message the server sends
back for this capture.

Example:
  facectl capture shot.jpg --session glasses-1 --wait`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().String("session", "facectl", "Session id of the simulated device")
	captureCmd.Flags().String("request-id", "", "Request id (default: random UUID)")
	captureCmd.Flags().Bool("wait", false, "Wait for the capture status")
	captureCmd.Flags().Duration("timeout", 2*time.Minute, "How long --wait waits")
}

func runCapture(cmd *cobra.Command, args []string) error {
	path := args[0]
	sessionID := mustGetString(cmd, "session")
	requestID := mustGetString(cmd, "request-id")
	wait := mustGetBool(cmd, "wait")
	timeout := mustGetDuration(cmd, "timeout")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.NATS.URL == "" {
		return fmt.Errorf("nats url is not configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	mime := mimetype.Detect(data)
	if !mime.Is("image/jpeg") && !mime.Is("image/png") && !mime.Is("image/heic") && !mime.Is("image/webp") {
		return fmt.Errorf("%s is %s, not a supported image", path, mime.String())
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		return err
	}
	defer producer.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if err := producer.EnsureStreams(ctx); err != nil {
		return err
	}

	var statuses <-chan models.CaptureStatus
	if wait {
		consumer, err := queue.NewConsumer(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer consumer.Close()

		// Subscribe before publishing so the status cannot be missed.
		statuses, err = consumer.WatchStatus(ctx, sessionID)
		if err != nil {
			return err
		}
	}

	err = producer.PublishCapture(ctx, models.CaptureEvent{
		SessionID: sessionID,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		MimeType:  mime.String(),
		Filename:  filepath.Base(path),
		Image:     data,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %s (%d bytes) as %s\n", filepath.Base(path), len(data), requestID)

	if !wait {
		return nil
	}
	for status := range statuses {
		if status.RequestID != requestID {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", status.Outcome, status.Message)
		if status.PhotoURL != "" {
			fmt.Fprintln(cmd.OutOrStdout(), status.PhotoURL)
		}
		return nil
	}
	return fmt.Errorf("no status for %s within %s", requestID, timeout)
}

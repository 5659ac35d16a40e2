// Package reconcile finds objects left behind when an upload succeeded but
// the record write after it failed.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
)

type ObjectStore interface {
	ListObjects(ctx context.Context, bucket string) ([]string, error)
	DeleteObjects(ctx context.Context, bucket string, keys []string) error
	ObjectURL(bucket, key string) string
}

type RecordStore interface {
	ImageURLs(ctx context.Context) (map[string]struct{}, error)
}

// Orphans are the unrecorded object keys of one bucket.
type Orphans struct {
	Bucket string
	Keys   []string
}

// Find lists every object in buckets whose URL no record refers to.
func Find(ctx context.Context, objects ObjectStore, records RecordStore, buckets ...string) ([]Orphans, error) {
	urls, err := records.ImageURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load record urls: %w", err)
	}

	var out []Orphans
	for _, bucket := range buckets {
		keys, err := objects.ListObjects(ctx, bucket)
		if err != nil {
			return nil, err
		}

		o := Orphans{Bucket: bucket}
		for _, key := range keys {
			if _, ok := urls[objects.ObjectURL(bucket, key)]; !ok {
				o.Keys = append(o.Keys, key)
			}
		}
		slog.Debug("reconcile: scanned bucket", "bucket", bucket, "objects", len(keys), "orphans", len(o.Keys))
		out = append(out, o)
	}
	return out, nil
}

// Delete removes the given orphans and returns how many were deleted.
func Delete(ctx context.Context, objects ObjectStore, orphans []Orphans) (int, error) {
	deleted := 0
	for _, o := range orphans {
		if len(o.Keys) == 0 {
			continue
		}
		if err := objects.DeleteObjects(ctx, o.Bucket, o.Keys); err != nil {
			return deleted, err
		}
		deleted += len(o.Keys)
		slog.Info("reconcile: deleted orphans", "bucket", o.Bucket, "deleted", len(o.Keys))
	}
	return deleted, nil
}

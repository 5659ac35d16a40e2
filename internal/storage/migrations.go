package storage

import (
	"context"
	"fmt"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS photos (
	id          UUID PRIMARY KEY,
	image_url   TEXT NOT NULL,
	status      TEXT NOT NULL CHECK (status IN ('uploaded', 'face_crop')),
	metadata    JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS photos_status_created_idx ON photos (status, created_at DESC);
CREATE INDEX IF NOT EXISTS photos_request_idx ON photos ((metadata->>'photo_request_id'));

CREATE TABLE IF NOT EXISTS face_embeddings (
	id              UUID PRIMARY KEY,
	face_crop_url   TEXT NOT NULL,
	embedding       vector(%d) NOT NULL,
	confidence      REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
	temp_person_id  TEXT NOT NULL,
	is_processed    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS face_embeddings_unprocessed_idx ON face_embeddings (created_at) WHERE NOT is_processed;
`

// Migrate creates the record tables if they are missing. embeddingDim fixes
// the vector column length.
func (s *PostgresStore) Migrate(ctx context.Context, embeddingDim int) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(schema, embeddingDim)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

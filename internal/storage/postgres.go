package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/facevault/internal/config"
	"github.com/your-org/facevault/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Photo records ---

// InsertPhotoRecord writes a full-photo or face-crop row and fills in its
// ID and CreatedAt.
func (s *PostgresStore) InsertPhotoRecord(ctx context.Context, rec *models.StoredPhotoRecord) error {
	rec.ID = uuid.New()

	var metadata []byte
	if rec.Metadata != nil {
		var err error
		metadata, err = json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal photo metadata: %w", err)
		}
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO photos (id, image_url, status, metadata) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		rec.ID, rec.ImageURL, rec.Status, metadata,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert photo record: %w", err)
	}
	return nil
}

// RecordFilter narrows ListPhotoRecords. Zero values mean "any".
type RecordFilter struct {
	Status         models.PhotoStatus
	PhotoRequestID string
	Limit          int
}

func (s *PostgresStore) ListPhotoRecords(ctx context.Context, f RecordFilter) ([]models.StoredPhotoRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	where := "WHERE TRUE"
	args := []interface{}{}
	argIdx := 1

	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, f.Status)
		argIdx++
	}
	if f.PhotoRequestID != "" {
		where += fmt.Sprintf(" AND metadata->>'photo_request_id' = $%d", argIdx)
		args = append(args, f.PhotoRequestID)
		argIdx++
	}

	query := fmt.Sprintf(
		`SELECT id, image_url, status, metadata, created_at FROM photos %s ORDER BY created_at DESC LIMIT $%d`,
		where, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list photo records: %w", err)
	}
	defer rows.Close()

	var records []models.StoredPhotoRecord
	for rows.Next() {
		var (
			rec      models.StoredPhotoRecord
			metadata []byte
		)
		if err := rows.Scan(&rec.ID, &rec.ImageURL, &rec.Status, &metadata, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo record: %w", err)
		}
		if len(metadata) > 0 {
			rec.Metadata = &models.CropMetadata{}
			if err := json.Unmarshal(metadata, rec.Metadata); err != nil {
				return nil, fmt.Errorf("decode photo metadata %s: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ImageURLs returns the set of every image URL referenced by a photo record.
func (s *PostgresStore) ImageURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT image_url FROM photos`)
	if err != nil {
		return nil, fmt.Errorf("list image urls: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan image url: %w", err)
		}
		urls[u] = struct{}{}
	}
	return urls, rows.Err()
}

// --- Face embeddings ---

func (s *PostgresStore) InsertEmbedding(ctx context.Context, rec *models.FaceEmbeddingRecord) error {
	rec.ID = uuid.New()
	vec := pgvector.NewVector(rec.Embedding)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO face_embeddings (id, face_crop_url, embedding, confidence, temp_person_id, is_processed)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		rec.ID, rec.FaceCropURL, vec, rec.Confidence, rec.TempPersonID, rec.IsProcessed,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert face embedding: %w", err)
	}
	return nil
}

// CountUnprocessedEmbeddings returns how many embeddings still await
// identity resolution.
func (s *PostgresStore) CountUnprocessedEmbeddings(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM face_embeddings WHERE NOT is_processed`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unprocessed embeddings: %w", err)
	}
	return count, nil
}

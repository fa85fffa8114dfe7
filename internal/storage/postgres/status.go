package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"content_syncer/internal/domain"
)

type SyncStatusStore struct {
	db *sqlx.DB
}

func NewSyncStatusStore(db *sqlx.DB) *SyncStatusStore {
	return &SyncStatusStore{db: db}
}

func (s *SyncStatusStore) Get(ctx context.Context, source string) (*domain.SyncStatusRecord, error) {
	var record domain.SyncStatusRecord
	query := `
		SELECT source, last_sync_at, last_successful_sync_at, total_records,
			sync_duration_ms, error_count, next_sync_at
		FROM sync_status
		WHERE source = $1`

	err := s.db.GetContext(ctx, &record, query, source)
	if err == sql.ErrNoRows {
		// Return empty record for new sources
		return &domain.SyncStatusRecord{Source: source}, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *SyncStatusStore) List(ctx context.Context) ([]domain.SyncStatusRecord, error) {
	var records []domain.SyncStatusRecord
	query := `
		SELECT source, last_sync_at, last_successful_sync_at, total_records,
			sync_duration_ms, error_count, next_sync_at
		FROM sync_status
		ORDER BY source`

	err := s.db.SelectContext(ctx, &records, query)
	return records, err
}

// Upsert writes the per-source bookkeeping row. A failed run passes a nil
// LastSuccessfulSyncAt, which keeps whatever value the row already holds.
func (s *SyncStatusStore) Upsert(ctx context.Context, record *domain.SyncStatusRecord) error {
	query := `
		INSERT INTO sync_status (
			source, last_sync_at, last_successful_sync_at, total_records,
			sync_duration_ms, error_count, next_sync_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source) DO UPDATE SET
			last_sync_at = EXCLUDED.last_sync_at,
			last_successful_sync_at = COALESCE(EXCLUDED.last_successful_sync_at, sync_status.last_successful_sync_at),
			total_records = EXCLUDED.total_records,
			sync_duration_ms = EXCLUDED.sync_duration_ms,
			error_count = EXCLUDED.error_count,
			next_sync_at = EXCLUDED.next_sync_at`

	_, err := s.db.ExecContext(ctx, query,
		record.Source,
		record.LastSyncAt,
		record.LastSuccessfulSyncAt,
		record.TotalRecords,
		record.SyncDurationMs,
		record.ErrorCount,
		record.NextSyncAt,
	)
	return err
}

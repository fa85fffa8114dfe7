package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"content_syncer/internal/domain"
	"content_syncer/internal/source"
)

type Source interface {
	ID() string
	Name() string
	Fetch(ctx context.Context) (source.Result, error)
}

type ContentStore interface {
	UpsertBatch(ctx context.Context, records []domain.ContentRecord) (domain.UpsertStats, error)
}

type SyncStatusStore interface {
	Get(ctx context.Context, source string) (*domain.SyncStatusRecord, error)
	List(ctx context.Context) ([]domain.SyncStatusRecord, error)
	Upsert(ctx context.Context, record *domain.SyncStatusRecord) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, record *domain.ContentRecord, created bool) error
	Close() error
}

// NextSyncFunc reports when the source should sync again after a run that
// finished at the given time. Used for the advisory next_sync_at column.
type NextSyncFunc func(after time.Time) time.Time

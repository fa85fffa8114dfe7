package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"content_syncer/internal/domain"
)

// SyncService runs one source's full sync: fetch all pages, persist the
// batch in a single transaction, write the bookkeeping row, publish events.
type SyncService struct {
	source    Source
	content   ContentStore
	status    SyncStatusStore
	txManager TransactionManager
	publisher Publisher
	nextSync  NextSyncFunc
	logger    *slog.Logger
}

func NewSyncService(
	source Source,
	content ContentStore,
	status SyncStatusStore,
	txManager TransactionManager,
	publisher Publisher,
	nextSync NextSyncFunc,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		source:    source,
		content:   content,
		status:    status,
		txManager: txManager,
		publisher: publisher,
		nextSync:  nextSync,
		logger:    logger.With("source", source.ID()),
	}
}

// Sync performs one run. The returned error marks a fatal run failure
// (exhausted retries, credential errors, transaction rollback); item-level
// skips are reported through the result only. A status row is written on
// both paths: failures keep the previous last_successful_sync_at.
func (s *SyncService) Sync(ctx context.Context) (domain.SyncResult, error) {
	startedAt := time.Now()
	result := domain.SyncResult{Source: s.source.ID()}

	s.logger.Info("starting sync", "source_name", s.source.Name())

	collected, err := s.source.Fetch(ctx)
	if err != nil {
		return s.fail(ctx, startedAt, result, fmt.Errorf("fetch content: %w", err))
	}

	s.logger.Info("fetched records",
		"count", len(collected.Records),
		"pages", collected.Pages,
		"skipped", collected.Skipped,
	)

	var stats domain.UpsertStats
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var upsertErr error
		stats, upsertErr = s.content.UpsertBatch(txCtx, collected.Records)
		return upsertErr
	})
	if err != nil {
		return s.fail(ctx, startedAt, result, fmt.Errorf("persist content: %w", err))
	}

	published, publishErrors := s.publishEvents(ctx, collected.Records, stats)

	result.Success = true
	result.Synced = stats.Upserted
	result.DurationMs = time.Since(startedAt).Milliseconds()
	if collected.Skipped > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("%d items skipped during fetch", collected.Skipped))
	}
	if stats.Skipped > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("%d records skipped during upsert", stats.Skipped))
	}
	result.Errors = append(result.Errors, publishErrors...)

	errorCount := collected.Skipped + stats.Skipped + len(publishErrors)
	if err := s.writeStatus(ctx, startedAt, stats.Upserted, errorCount, true); err != nil {
		return result, fmt.Errorf("update sync status: %w", err)
	}

	s.logger.Info("sync completed",
		"created", stats.Created,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"published", published,
		"duration", time.Since(startedAt),
	)

	return result, nil
}

func (s *SyncService) fail(ctx context.Context, startedAt time.Time, result domain.SyncResult, err error) (domain.SyncResult, error) {
	result.Errors = append(result.Errors, err.Error())
	result.DurationMs = time.Since(startedAt).Milliseconds()

	if statusErr := s.writeStatus(ctx, startedAt, 0, 1, false); statusErr != nil {
		s.logger.Error("failed to write sync status", "error", statusErr)
	}

	return result, err
}

func (s *SyncService) writeStatus(ctx context.Context, startedAt time.Time, totalRecords, errorCount int, success bool) error {
	now := time.Now().UTC()

	record := &domain.SyncStatusRecord{
		Source:         s.source.ID(),
		LastSyncAt:     now,
		TotalRecords:   totalRecords,
		SyncDurationMs: now.Sub(startedAt).Milliseconds(),
		ErrorCount:     errorCount,
	}
	if success {
		record.LastSuccessfulSyncAt = &now
	}
	if s.nextSync != nil {
		next := s.nextSync(now)
		record.NextSyncAt = &next
	}

	return s.status.Upsert(ctx, record)
}

// publishEvents emits one event per upserted record. Publish failures do not
// fail the run; they are logged and surfaced in the result errors.
func (s *SyncService) publishEvents(ctx context.Context, records []domain.ContentRecord, stats domain.UpsertStats) (int, []string) {
	if s.publisher == nil {
		return 0, nil
	}

	created := make(map[string]struct{}, len(stats.CreatedIDs))
	for _, id := range stats.CreatedIDs {
		created[id] = struct{}{}
	}
	skipped := make(map[string]struct{}, len(stats.SkippedIDs))
	for _, id := range stats.SkippedIDs {
		skipped[id] = struct{}{}
	}

	published := 0
	var errs []string

	for i := range records {
		rec := &records[i]
		if _, ok := skipped[rec.ID]; ok {
			continue
		}

		_, isNew := created[rec.ID]
		if err := s.publisher.Publish(ctx, rec, isNew); err != nil {
			s.logger.Warn("failed to publish event", "id", rec.ID, "error", err)
			errs = append(errs, fmt.Sprintf("publish %s: %v", rec.ID, err))
			continue
		}
		published++
	}

	return published, errs
}

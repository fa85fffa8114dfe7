package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"content_syncer/internal/domain"
)

// ErrNoTransaction is returned when UpsertBatch is called outside a
// transaction. Batches rely on savepoints, which only exist inside one.
var ErrNoTransaction = errors.New("upsert batch requires a transaction")

type ContentStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewContentStore(db *sqlx.DB, logger *slog.Logger) *ContentStore {
	return &ContentStore{db: db, logger: logger}
}

// UpsertBatch writes records inside the transaction carried on ctx, in the
// order given. Each record is wrapped in a savepoint: an item-level database
// error rolls back that record only and the batch continues. Any error that
// is not a *pq.Error is treated as a connection failure and aborts the whole
// batch so the enclosing transaction rolls back.
//
// created_at is only set when the row does not exist yet; updated_at and
// last_synced_at always advance. Calling UpsertBatch twice with the same
// records yields the same final row state.
func (s *ContentStore) UpsertBatch(ctx context.Context, records []domain.ContentRecord) (domain.UpsertStats, error) {
	stats := domain.UpsertStats{Attempted: len(records)}
	if len(records) == 0 {
		return stats, nil
	}

	tx := GetTxFromContext(ctx)
	if tx == nil {
		return stats, ErrNoTransaction
	}

	existing, err := s.existingIDs(ctx, tx, records)
	if err != nil {
		return stats, fmt.Errorf("load existing ids: %w", err)
	}

	now := time.Now().UTC()

	for i := range records {
		rec := &records[i]

		if err := rec.Validate(); err != nil {
			s.logger.Warn("skipping invalid record", "id", rec.ID, "error", err)
			stats.Skipped++
			stats.SkippedIDs = append(stats.SkippedIDs, rec.ID)
			continue
		}

		metadata, err := metadataValue(rec.Metadata)
		if err != nil {
			s.logger.Warn("skipping record with bad metadata", "id", rec.ID, "error", err)
			stats.Skipped++
			stats.SkippedIDs = append(stats.SkippedIDs, rec.ID)
			continue
		}

		if err := s.upsertOne(ctx, tx, i, rec, metadata, now); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) {
				s.logger.Warn("skipping record after database error",
					"id", rec.ID,
					"code", string(pqErr.Code),
					"error", err,
				)
				stats.Skipped++
				stats.SkippedIDs = append(stats.SkippedIDs, rec.ID)
				continue
			}
			return stats, fmt.Errorf("upsert %s: %w", rec.ID, err)
		}

		stats.Upserted++
		if _, ok := existing[rec.ID]; ok {
			stats.Updated++
		} else {
			stats.Created++
			stats.CreatedIDs = append(stats.CreatedIDs, rec.ID)
		}
	}

	return stats, nil
}

// existingIDs reports which record ids already have a content row, read
// through the batch's own transaction so the created/updated split is
// consistent with what the upserts will see.
func (s *ContentStore) existingIDs(ctx context.Context, tx *sqlx.Tx, records []domain.ContentRecord) (map[string]struct{}, error) {
	ids := make([]string, 0, len(records))
	for i := range records {
		ids = append(ids, records[i].ID)
	}

	rows, err := tx.QueryContext(ctx, "SELECT id FROM content WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = struct{}{}
	}

	return existing, rows.Err()
}

func (s *ContentStore) upsertOne(ctx context.Context, tx *sqlx.Tx, i int, rec *domain.ContentRecord, metadata any, now time.Time) error {
	savepoint := fmt.Sprintf("record_%d", i)

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}

	if err := s.writeRecord(ctx, tx, rec, metadata, now); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
			return fmt.Errorf("rollback to savepoint: %w", rbErr)
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}

	return nil
}

func (s *ContentStore) writeRecord(ctx context.Context, tx *sqlx.Tx, rec *domain.ContentRecord, metadata any, now time.Time) error {
	query := `
		INSERT INTO content (
			id, source, source_id, title, description, content_type, category, url,
			tags, themes, topics, authors, metadata,
			source_created_at, source_updated_at, last_synced_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
		ON CONFLICT (source, source_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			content_type = EXCLUDED.content_type,
			category = EXCLUDED.category,
			url = EXCLUDED.url,
			tags = EXCLUDED.tags,
			themes = EXCLUDED.themes,
			topics = EXCLUDED.topics,
			authors = EXCLUDED.authors,
			metadata = EXCLUDED.metadata,
			source_created_at = EXCLUDED.source_created_at,
			source_updated_at = EXCLUDED.source_updated_at,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = EXCLUDED.updated_at`

	_, err := tx.ExecContext(ctx, query,
		rec.ID,
		rec.Source,
		rec.SourceID,
		rec.Title,
		rec.Description,
		string(rec.ContentType),
		rec.Category,
		rec.URL,
		pq.Array(rec.Tags),
		pq.Array(rec.Themes),
		pq.Array(rec.Topics),
		pq.Array(rec.Authors),
		metadata,
		rec.SourceCreatedAt,
		rec.SourceUpdatedAt,
		now,
		now,
		now,
	)
	if err != nil {
		return err
	}

	switch {
	case rec.Tool != nil:
		return s.writeToolDetails(ctx, tx, rec.ID, rec.Tool)
	case rec.Video != nil:
		return s.writeVideoDetails(ctx, tx, rec.ID, rec.Video)
	case rec.Newsletter != nil:
		return s.writeNewsletterDetails(ctx, tx, rec.ID, rec.Newsletter)
	case rec.Document != nil:
		return s.writeDocumentDetails(ctx, tx, rec.ID, rec.Document)
	}

	return nil
}

func (s *ContentStore) writeToolDetails(ctx context.Context, tx *sqlx.Tx, contentID string, d *domain.ToolDetails) error {
	query := `
		INSERT INTO tool_details (content_id, link, status, usage_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (content_id) DO UPDATE SET
			link = EXCLUDED.link,
			status = EXCLUDED.status,
			usage_count = EXCLUDED.usage_count`

	_, err := tx.ExecContext(ctx, query, contentID, d.Link, d.Status, d.UsageCount)
	return err
}

func (s *ContentStore) writeVideoDetails(ctx context.Context, tx *sqlx.Tx, contentID string, d *domain.VideoDetails) error {
	query := `
		INSERT INTO video_details (content_id, duration, channel_id, channel_title, thumbnail_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (content_id) DO UPDATE SET
			duration = EXCLUDED.duration,
			channel_id = EXCLUDED.channel_id,
			channel_title = EXCLUDED.channel_title,
			thumbnail_url = EXCLUDED.thumbnail_url`

	_, err := tx.ExecContext(ctx, query, contentID, d.Duration, d.ChannelID, d.ChannelTitle, d.ThumbnailURL)
	return err
}

func (s *ContentStore) writeNewsletterDetails(ctx context.Context, tx *sqlx.Tx, contentID string, d *domain.NewsletterDetails) error {
	query := `
		INSERT INTO newsletter_details (content_id, campaign_type, sent_at, emails_sent, archive_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (content_id) DO UPDATE SET
			campaign_type = EXCLUDED.campaign_type,
			sent_at = EXCLUDED.sent_at,
			emails_sent = EXCLUDED.emails_sent,
			archive_url = EXCLUDED.archive_url`

	_, err := tx.ExecContext(ctx, query, contentID, d.CampaignType, d.SentAt, d.EmailsSent, d.ArchiveURL)
	return err
}

func (s *ContentStore) writeDocumentDetails(ctx context.Context, tx *sqlx.Tx, contentID string, d *domain.DocumentDetails) error {
	query := `
		INSERT INTO document_details (content_id, path, format, repository)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (content_id) DO UPDATE SET
			path = EXCLUDED.path,
			format = EXCLUDED.format,
			repository = EXCLUDED.repository`

	_, err := tx.ExecContext(ctx, query, contentID, d.Path, d.Format, d.Repository)
	return err
}

// GetByID loads one record with its type-specific details.
func (s *ContentStore) GetByID(ctx context.Context, id string) (*domain.ContentRecord, error) {
	exec := GetExecutor(ctx, s.db)

	var row contentRow
	err := sqlx.GetContext(ctx, exec, &row, selectContent+" WHERE id = $1", id)
	if err != nil {
		return nil, err
	}

	rec, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	if err := s.loadDetails(ctx, exec, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

// ListBySource loads all base records for one source, ordered by source id.
// Type-specific details are left nil; use GetByID for a full record.
func (s *ContentStore) ListBySource(ctx context.Context, source string) ([]domain.ContentRecord, error) {
	exec := GetExecutor(ctx, s.db)

	var rows []contentRow
	err := sqlx.SelectContext(ctx, exec, &rows, selectContent+" WHERE source = $1 ORDER BY source_id", source)
	if err != nil {
		return nil, err
	}

	records := make([]domain.ContentRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, nil
}

func (s *ContentStore) loadDetails(ctx context.Context, exec sqlx.ExtContext, rec *domain.ContentRecord) error {
	var err error

	switch rec.ContentType {
	case domain.ContentTypeTool:
		var d domain.ToolDetails
		err = sqlx.GetContext(ctx, exec, &d,
			"SELECT link, status, usage_count FROM tool_details WHERE content_id = $1", rec.ID)
		if err == nil {
			rec.Tool = &d
		}
	case domain.ContentTypeVideo:
		var d domain.VideoDetails
		err = sqlx.GetContext(ctx, exec, &d,
			"SELECT duration, channel_id, channel_title, thumbnail_url FROM video_details WHERE content_id = $1", rec.ID)
		if err == nil {
			rec.Video = &d
		}
	case domain.ContentTypeNewsletter:
		var d domain.NewsletterDetails
		err = sqlx.GetContext(ctx, exec, &d,
			"SELECT campaign_type, sent_at, emails_sent, archive_url FROM newsletter_details WHERE content_id = $1", rec.ID)
		if err == nil {
			rec.Newsletter = &d
		}
	case domain.ContentTypeDocument:
		var d domain.DocumentDetails
		err = sqlx.GetContext(ctx, exec, &d,
			"SELECT path, format, repository FROM document_details WHERE content_id = $1", rec.ID)
		if err == nil {
			rec.Document = &d
		}
	}

	if err == sql.ErrNoRows {
		return nil
	}
	return err
}

const selectContent = `
	SELECT id, source, source_id, title, description, content_type, category, url,
		tags, themes, topics, authors, metadata,
		source_created_at, source_updated_at, last_synced_at, created_at, updated_at
	FROM content`

type contentRow struct {
	ID              string         `db:"id"`
	Source          string         `db:"source"`
	SourceID        string         `db:"source_id"`
	Title           string         `db:"title"`
	Description     string         `db:"description"`
	ContentType     string         `db:"content_type"`
	Category        string         `db:"category"`
	URL             string         `db:"url"`
	Tags            pq.StringArray `db:"tags"`
	Themes          pq.StringArray `db:"themes"`
	Topics          pq.StringArray `db:"topics"`
	Authors         pq.StringArray `db:"authors"`
	Metadata        []byte         `db:"metadata"`
	SourceCreatedAt *time.Time     `db:"source_created_at"`
	SourceUpdatedAt *time.Time     `db:"source_updated_at"`
	LastSyncedAt    time.Time      `db:"last_synced_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r *contentRow) toDomain() (*domain.ContentRecord, error) {
	rec := &domain.ContentRecord{
		ID:              r.ID,
		Source:          r.Source,
		SourceID:        r.SourceID,
		Title:           r.Title,
		Description:     r.Description,
		ContentType:     domain.ContentType(r.ContentType),
		Category:        r.Category,
		URL:             r.URL,
		Tags:            r.Tags,
		Themes:          r.Themes,
		Topics:          r.Topics,
		Authors:         r.Authors,
		SourceCreatedAt: r.SourceCreatedAt,
		SourceUpdatedAt: r.SourceUpdatedAt,
		LastSyncedAt:    r.LastSyncedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}

	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", r.ID, err)
		}
	}

	return rec, nil
}

func metadataValue(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return b, nil
}

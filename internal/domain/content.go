package domain

import (
	"errors"
	"time"
)

// ContentType identifies which kind of content a record represents.
type ContentType string

const (
	ContentTypeTool       ContentType = "tool"
	ContentTypeVideo      ContentType = "video"
	ContentTypeNewsletter ContentType = "newsletter"
	ContentTypeDocument   ContentType = "document"
)

// ContentRecord is the unified representation of one item from any provider.
// (Source, SourceID) is the idempotency key; ID is derived from it and never
// changes across syncs of the same provider item.
type ContentRecord struct {
	ID          string
	Source      string
	SourceID    string
	Title       string
	Description string
	ContentType ContentType
	Category    string
	URL         string

	Tags    []string
	Themes  []string
	Topics  []string
	Authors []string

	// Metadata is the provider-specific extension point, persisted as JSON.
	Metadata map[string]any

	// Provider timestamps, passed through unmodified. Nil when the provider
	// does not report them.
	SourceCreatedAt *time.Time
	SourceUpdatedAt *time.Time

	// Local bookkeeping. CreatedAt is set once on first insert and never
	// changes; UpdatedAt and LastSyncedAt advance on every successful upsert.
	LastSyncedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// At most one of the following is non-nil, matching ContentType. Each
	// maps to a one-to-zero-or-one side table keyed by the content ID.
	Tool       *ToolDetails
	Video      *VideoDetails
	Newsletter *NewsletterDetails
	Document   *DocumentDetails
}

// ToolDetails carries tool-catalog specific fields.
type ToolDetails struct {
	Link       string `db:"link"`
	Status     string `db:"status"`
	UsageCount int    `db:"usage_count"`
}

// VideoDetails carries video-catalog specific fields.
type VideoDetails struct {
	Duration     string `db:"duration"` // ISO 8601, e.g. "PT12M3S"
	ChannelID    string `db:"channel_id"`
	ChannelTitle string `db:"channel_title"`
	ThumbnailURL string `db:"thumbnail_url"`
}

// NewsletterDetails carries campaign specific fields.
type NewsletterDetails struct {
	CampaignType string     `db:"campaign_type"`
	SentAt       *time.Time `db:"sent_at"`
	EmailsSent   int        `db:"emails_sent"`
	ArchiveURL   string     `db:"archive_url"`
}

// DocumentDetails carries document-repository specific fields.
type DocumentDetails struct {
	Path       string `db:"path"`
	Format     string `db:"format"`
	Repository string `db:"repository"`
}

// ContentID derives the stable record ID for a provider item.
func ContentID(source, sourceID string) string {
	return source + "-" + sourceID
}

var (
	ErrMissingSource   = errors.New("content record missing source")
	ErrMissingSourceID = errors.New("content record missing source id")
	ErrMissingTitle    = errors.New("content record missing title")
)

// Validate reports whether the record carries the minimum identity and
// descriptive fields required for persistence.
func (r *ContentRecord) Validate() error {
	if r.Source == "" {
		return ErrMissingSource
	}
	if r.SourceID == "" {
		return ErrMissingSourceID
	}
	if r.Title == "" {
		return ErrMissingTitle
	}
	return nil
}

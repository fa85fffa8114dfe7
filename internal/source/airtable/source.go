package airtable

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"content_syncer/internal/domain"
	"content_syncer/internal/source"
)

const (
	SourceID   = "airtable"
	SourceName = "Airtable Tools"

	defaultStatus = "active"
)

// Config holds Airtable source configuration.
type Config struct {
	BaseURL  string
	APIKey   string
	BaseID   string
	Table    string
	PageSize int
	Timeout  time.Duration
}

// Source implements source.Source for the Airtable tools base.
type Source struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	baseID     string
	table      string
	pageSize   int
	logger     *slog.Logger
}

// New creates a new Airtable source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		baseID:   cfg.BaseID,
		table:    cfg.Table,
		pageSize: cfg.PageSize,
		logger:   logger.With("source", SourceID),
	}
}

// ID returns the source identifier.
func (s *Source) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

// FetchPage fetches one page of records. The cursor is Airtable's opaque
// offset token; empty means the first page.
func (s *Source) FetchPage(ctx context.Context, cursor string) (source.Page, error) {
	u := fmt.Sprintf("%s/%s/%s?pageSize=%d",
		s.baseURL, s.baseID, url.PathEscape(s.table), s.pageSize)
	if cursor != "" {
		u += "&offset=" + url.QueryEscape(cursor)
	}

	req, err := source.NewRequest(ctx, u)
	if err != nil {
		return source.Page{}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	var resp APIResponse
	if err := source.DoJSON(s.httpClient, req, &resp); err != nil {
		return source.Page{}, err
	}

	page := s.transform(resp.Records)
	page.NextCursor = resp.Offset

	return page, nil
}

func (s *Source) transform(records []Record) source.Page {
	page := source.Page{
		Items: make([]domain.ContentRecord, 0, len(records)),
	}

	for _, r := range records {
		if r.ID == "" || r.Fields.Name == "" {
			s.logger.Warn("skipping malformed record", "record_id", r.ID)
			page.Skipped++
			continue
		}

		status := r.Fields.Status
		if status == "" {
			status = defaultStatus
		}

		rec := domain.ContentRecord{
			ID:          domain.ContentID(SourceID, r.ID),
			Source:      SourceID,
			SourceID:    r.ID,
			Title:       r.Fields.Name,
			Description: r.Fields.Description,
			ContentType: domain.ContentTypeTool,
			Category:    r.Fields.Category,
			URL:         r.Fields.Link,
			Tags:        r.Fields.Tags,
			Tool: &domain.ToolDetails{
				Link:       r.Fields.Link,
				Status:     status,
				UsageCount: r.Fields.UsageCount,
			},
		}

		if r.Fields.Pricing != "" {
			rec.Metadata = map[string]any{"pricing": r.Fields.Pricing}
		}

		if t, err := time.Parse(time.RFC3339, r.CreatedTime); err == nil {
			rec.SourceCreatedAt = &t
		}
		if r.Fields.LastModified != "" {
			if t, err := time.Parse(time.RFC3339, r.Fields.LastModified); err == nil {
				rec.SourceUpdatedAt = &t
			} else {
				s.logger.Warn("failed to parse last modified",
					"record_id", r.ID,
					"value", r.Fields.LastModified,
				)
			}
		}

		page.Items = append(page.Items, rec)
	}

	return page
}

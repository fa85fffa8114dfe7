package mailchimp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"content_syncer/internal/domain"
	"content_syncer/internal/source"
)

const (
	SourceID   = "mailchimp"
	SourceName = "Mailchimp Campaigns"
)

// Config holds Mailchimp source configuration.
type Config struct {
	BaseURL  string
	APIKey   string
	PageSize int
	Timeout  time.Duration
}

// Source implements source.Source for the Mailchimp campaigns endpoint.
type Source struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	pageSize   int
	logger     *slog.Logger
}

// New creates a new Mailchimp source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
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

// FetchPage fetches one page of sent campaigns. The cursor is the numeric
// offset into the campaign list; empty means offset zero. The next cursor is
// derived from total_items, so the walk ends exactly at the list's tail.
func (s *Source) FetchPage(ctx context.Context, cursor string) (source.Page, error) {
	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			return source.Page{}, fmt.Errorf("parse cursor %q: %w", cursor, err)
		}
		offset = parsed
	}

	u := fmt.Sprintf("%s/campaigns?count=%d&offset=%d&status=sent",
		s.baseURL, s.pageSize, offset)

	req, err := source.NewRequest(ctx, u)
	if err != nil {
		return source.Page{}, err
	}
	// Mailchimp ignores the username, only the key matters.
	req.SetBasicAuth("anystring", s.apiKey)

	var resp APIResponse
	if err := source.DoJSON(s.httpClient, req, &resp); err != nil {
		return source.Page{}, err
	}

	page := s.transform(resp.Campaigns)

	consumed := offset + len(resp.Campaigns)
	if len(resp.Campaigns) > 0 && consumed < resp.TotalItems {
		page.NextCursor = strconv.Itoa(consumed)
	}

	return page, nil
}

func (s *Source) transform(campaigns []Campaign) source.Page {
	page := source.Page{
		Items: make([]domain.ContentRecord, 0, len(campaigns)),
	}

	for _, c := range campaigns {
		title := c.Settings.SubjectLine
		if title == "" {
			title = c.Settings.Title
		}
		if c.ID == "" || title == "" {
			s.logger.Warn("skipping malformed campaign", "campaign_id", c.ID)
			page.Skipped++
			continue
		}

		rec := domain.ContentRecord{
			ID:          domain.ContentID(SourceID, c.ID),
			Source:      SourceID,
			SourceID:    c.ID,
			Title:       title,
			Description: c.Settings.PreviewText,
			ContentType: domain.ContentTypeNewsletter,
			URL:         c.ArchiveURL,
			Newsletter: &domain.NewsletterDetails{
				CampaignType: c.Type,
				EmailsSent:   c.EmailsSent,
				ArchiveURL:   c.ArchiveURL,
			},
		}

		if c.Settings.FromName != "" {
			rec.Authors = []string{c.Settings.FromName}
		}

		if t, err := time.Parse(time.RFC3339, c.CreateTime); err == nil {
			rec.SourceCreatedAt = &t
		}
		if c.SendTime != "" {
			if t, err := time.Parse(time.RFC3339, c.SendTime); err == nil {
				rec.Newsletter.SentAt = &t
				rec.SourceUpdatedAt = &t
			} else {
				s.logger.Warn("failed to parse send time",
					"campaign_id", c.ID,
					"value", c.SendTime,
				)
			}
		}

		page.Items = append(page.Items, rec)
	}

	return page
}

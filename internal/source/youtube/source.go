package youtube

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"content_syncer/internal/domain"
	"content_syncer/internal/source"
)

const (
	SourceID   = "youtube"
	SourceName = "YouTube Channel"

	watchURL = "https://www.youtube.com/watch?v="
)

// Config holds YouTube source configuration.
type Config struct {
	BaseURL   string
	APIKey    string
	ChannelID string
	PageSize  int
	Timeout   time.Duration
}

// Source implements source.Source for the YouTube Data API search endpoint.
type Source struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	channelID  string
	pageSize   int
	logger     *slog.Logger
}

// New creates a new YouTube source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		channelID: cfg.ChannelID,
		pageSize:  cfg.PageSize,
		logger:    logger.With("source", SourceID),
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

// FetchPage fetches one page of channel videos. The cursor is the API's
// opaque page token; empty means the first page.
func (s *Source) FetchPage(ctx context.Context, cursor string) (source.Page, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("order", "date")
	q.Set("channelId", s.channelID)
	q.Set("maxResults", strconv.Itoa(s.pageSize))
	q.Set("key", s.apiKey)
	if cursor != "" {
		q.Set("pageToken", cursor)
	}

	req, err := source.NewRequest(ctx, s.baseURL+"/search?"+q.Encode())
	if err != nil {
		return source.Page{}, err
	}

	var resp APIResponse
	if err := source.DoJSON(s.httpClient, req, &resp); err != nil {
		return source.Page{}, err
	}

	page := s.transform(resp.Items)
	page.NextCursor = resp.NextPageToken

	return page, nil
}

func (s *Source) transform(items []Item) source.Page {
	page := source.Page{
		Items: make([]domain.ContentRecord, 0, len(items)),
	}

	for _, it := range items {
		if it.ID.VideoID == "" || it.Snippet.Title == "" {
			s.logger.Warn("skipping malformed item", "video_id", it.ID.VideoID)
			page.Skipped++
			continue
		}

		thumbnail := it.Snippet.Thumbnails.High.URL
		if thumbnail == "" {
			thumbnail = it.Snippet.Thumbnails.Default.URL
		}

		rec := domain.ContentRecord{
			ID:          domain.ContentID(SourceID, it.ID.VideoID),
			Source:      SourceID,
			SourceID:    it.ID.VideoID,
			Title:       it.Snippet.Title,
			Description: it.Snippet.Description,
			ContentType: domain.ContentTypeVideo,
			URL:         watchURL + it.ID.VideoID,
			Video: &domain.VideoDetails{
				ChannelID:    it.Snippet.ChannelID,
				ChannelTitle: it.Snippet.ChannelTitle,
				ThumbnailURL: thumbnail,
			},
		}

		if it.Snippet.ChannelTitle != "" {
			rec.Authors = []string{it.Snippet.ChannelTitle}
		}

		if t, err := time.Parse(time.RFC3339, it.Snippet.PublishedAt); err == nil {
			rec.SourceCreatedAt = &t
		} else {
			s.logger.Warn("failed to parse published time",
				"video_id", it.ID.VideoID,
				"value", it.Snippet.PublishedAt,
			)
		}

		page.Items = append(page.Items, rec)
	}

	return page
}

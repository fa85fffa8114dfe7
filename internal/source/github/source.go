package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"content_syncer/internal/domain"
	"content_syncer/internal/source"
)

const (
	SourceID   = "github"
	SourceName = "GitHub Documents"

	defaultExtension = "md"
)

// Config holds GitHub source configuration.
type Config struct {
	BaseURL   string
	Token     string
	Owner     string
	Repo      string
	Extension string
	PageSize  int
	Timeout   time.Duration
}

// Source implements source.Source for the GitHub code search endpoint,
// listing documents of one extension inside one repository.
type Source struct {
	httpClient *http.Client
	baseURL    string
	token      string
	repo       string
	extension  string
	pageSize   int
	logger     *slog.Logger
}

// New creates a new GitHub source.
func New(cfg Config, logger *slog.Logger) *Source {
	extension := cfg.Extension
	if extension == "" {
		extension = defaultExtension
	}

	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   cfg.BaseURL,
		token:     cfg.Token,
		repo:      cfg.Owner + "/" + cfg.Repo,
		extension: extension,
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

// FetchPage fetches one page of search results. The cursor is the numeric
// page parameter; empty means page one.
func (s *Source) FetchPage(ctx context.Context, cursor string) (source.Page, error) {
	pageNum := 1
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			return source.Page{}, fmt.Errorf("parse cursor %q: %w", cursor, err)
		}
		pageNum = parsed
	}

	q := url.Values{}
	q.Set("q", fmt.Sprintf("repo:%s extension:%s", s.repo, s.extension))
	q.Set("per_page", strconv.Itoa(s.pageSize))
	q.Set("page", strconv.Itoa(pageNum))

	req, err := source.NewRequest(ctx, s.baseURL+"/search/code?"+q.Encode())
	if err != nil {
		return source.Page{}, err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	var resp APIResponse
	if err := source.DoJSON(s.httpClient, req, &resp); err != nil {
		return source.Page{}, err
	}

	page := s.transform(resp.Items)

	if len(resp.Items) > 0 && pageNum*s.pageSize < resp.TotalCount {
		page.NextCursor = strconv.Itoa(pageNum + 1)
	}

	return page, nil
}

// transform keys each document by its repository path rather than its blob
// SHA, so edits update the existing row instead of minting a new identity.
func (s *Source) transform(items []Item) source.Page {
	page := source.Page{
		Items: make([]domain.ContentRecord, 0, len(items)),
	}

	for _, it := range items {
		if it.Path == "" {
			s.logger.Warn("skipping malformed item", "sha", it.SHA)
			page.Skipped++
			continue
		}

		title := it.Name
		if title == "" {
			title = path.Base(it.Path)
		}

		rec := domain.ContentRecord{
			ID:          domain.ContentID(SourceID, it.Path),
			Source:      SourceID,
			SourceID:    it.Path,
			Title:       title,
			ContentType: domain.ContentTypeDocument,
			URL:         it.HTMLURL,
			Document: &domain.DocumentDetails{
				Path:       it.Path,
				Format:     strings.TrimPrefix(path.Ext(it.Path), "."),
				Repository: it.Repository.FullName,
			},
		}

		if dir, _, found := strings.Cut(it.Path, "/"); found {
			rec.Category = dir
		}
		if it.SHA != "" {
			rec.Metadata = map[string]any{"sha": it.SHA}
		}

		page.Items = append(page.Items, rec)
	}

	return page
}

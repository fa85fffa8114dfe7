package mailchimp

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content_syncer/internal/domain"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	return New(Config{
		BaseURL:  srv.URL,
		APIKey:   "mc-key",
		PageSize: 10,
		Timeout:  5 * time.Second,
	}, logger)
}

func TestFetchPage_MapsCampaign(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/campaigns", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("count"))
		assert.Equal(t, "0", r.URL.Query().Get("offset"))
		assert.Equal(t, "sent", r.URL.Query().Get("status"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "anystring", user)
		assert.Equal(t, "mc-key", pass)

		w.Write([]byte(`{
			"campaigns": [
				{
					"id": "cmp1",
					"type": "regular",
					"status": "sent",
					"create_time": "2024-05-01T09:00:00Z",
					"send_time": "2024-05-02T09:00:00Z",
					"archive_url": "https://archive.example/cmp1",
					"emails_sent": 1200,
					"settings": {
						"subject_line": "May digest",
						"from_name": "The Team",
						"preview_text": "What happened in May"
					}
				}
			],
			"total_items": 1
		}`))
	})

	page, err := src.FetchPage(context.Background(), "")
	require.NoError(t, err)

	assert.Empty(t, page.NextCursor)
	require.Len(t, page.Items, 1)

	rec := page.Items[0]
	assert.Equal(t, "mailchimp-cmp1", rec.ID)
	assert.Equal(t, "May digest", rec.Title)
	assert.Equal(t, "What happened in May", rec.Description)
	assert.Equal(t, domain.ContentTypeNewsletter, rec.ContentType)
	assert.Equal(t, []string{"The Team"}, rec.Authors)
	require.NotNil(t, rec.Newsletter)
	assert.Equal(t, "regular", rec.Newsletter.CampaignType)
	assert.Equal(t, 1200, rec.Newsletter.EmailsSent)
	require.NotNil(t, rec.Newsletter.SentAt)
	assert.Equal(t, time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC), rec.Newsletter.SentAt.UTC())
}

func TestFetchPage_CursorAdvancesByConsumed(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("offset") {
		case "0":
			w.Write([]byte(`{
				"campaigns": [
					{"id": "c1", "settings": {"subject_line": "One"}},
					{"id": "c2", "settings": {"subject_line": "Two"}}
				],
				"total_items": 3
			}`))
		case "2":
			w.Write([]byte(`{
				"campaigns": [
					{"id": "c3", "settings": {"subject_line": "Three"}}
				],
				"total_items": 3
			}`))
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	})

	first, err := src.FetchPage(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "2", first.NextCursor)

	second, err := src.FetchPage(context.Background(), first.NextCursor)
	require.NoError(t, err)
	assert.Empty(t, second.NextCursor)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "Three", second.Items[0].Title)
}

func TestFetchPage_RejectsBadCursor(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})

	_, err := src.FetchPage(context.Background(), "not-a-number")
	require.Error(t, err)
}

func TestFetchPage_FallsBackToCampaignTitle(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"campaigns": [
				{"id": "c1", "settings": {"title": "Internal name"}},
				{"id": "c2", "settings": {}}
			],
			"total_items": 2
		}`))
	})

	page, err := src.FetchPage(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 1, page.Skipped)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Internal name", page.Items[0].Title)
}

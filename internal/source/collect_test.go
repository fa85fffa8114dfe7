package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content_syncer/internal/domain"
	"content_syncer/internal/retry"
)

var errFlaky = errors.New("connection reset")

// fakeSource serves a fixed cursor-to-page map and can fail a cursor a set
// number of times before succeeding.
type fakeSource struct {
	pages    map[string]Page
	failures map[string]int
	calls    []string
}

func (f *fakeSource) ID() string   { return "fake" }
func (f *fakeSource) Name() string { return "Fake Source" }

func (f *fakeSource) FetchPage(ctx context.Context, cursor string) (Page, error) {
	f.calls = append(f.calls, cursor)
	if f.failures[cursor] > 0 {
		f.failures[cursor]--
		return Page{}, errFlaky
	}
	return f.pages[cursor], nil
}

func makeRecords(prefix string, n int) []domain.ContentRecord {
	records := make([]domain.ContentRecord, n)
	for i := range records {
		id := fmt.Sprintf("%s-%d", prefix, i)
		records[i] = domain.ContentRecord{
			ID:       domain.ContentID("fake", id),
			Source:   "fake",
			SourceID: id,
			Title:    "Item " + id,
		}
	}
	return records
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestFetch_AccumulatesAllPages(t *testing.T) {
	src := &fakeSource{
		pages: map[string]Page{
			"":      {Items: makeRecords("p1", 100), NextCursor: "page2"},
			"page2": {Items: makeRecords("p2", 37)},
		},
	}

	c := NewCollector(src, CollectConfig{Retry: fastRetry()}, testLogger())

	result, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Records, 137)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, []string{"", "page2"}, src.calls)
	// order preserved across the page boundary
	assert.Equal(t, "fake-p1-0", result.Records[0].ID)
	assert.Equal(t, "fake-p2-36", result.Records[136].ID)
}

func TestFetch_RetriesFailedPageOnly(t *testing.T) {
	src := &fakeSource{
		pages: map[string]Page{
			"":      {Items: makeRecords("p1", 3), NextCursor: "page2"},
			"page2": {Items: makeRecords("p2", 2)},
		},
		failures: map[string]int{"page2": 2},
	}

	c := NewCollector(src, CollectConfig{Retry: fastRetry()}, testLogger())

	result, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Records, 5)
	// page one is fetched exactly once; only page two is retried
	assert.Equal(t, []string{"", "page2", "page2", "page2"}, src.calls)
}

func TestFetch_ExhaustedRetriesPropagate(t *testing.T) {
	src := &fakeSource{
		pages: map[string]Page{
			"": {Items: makeRecords("p1", 3), NextCursor: "page2"},
		},
		failures: map[string]int{"page2": 10},
	}

	c := NewCollector(src, CollectConfig{Retry: fastRetry()}, testLogger())

	result, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errFlaky)
	assert.Contains(t, err.Error(), "fetch page 2")
	assert.Len(t, result.Records, 3)
}

func TestFetch_PermanentErrorNotRetried(t *testing.T) {
	src := &permanentSource{}

	c := NewCollector(src, CollectConfig{Retry: fastRetry()}, testLogger())

	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, src.calls)
}

type permanentSource struct {
	calls int
}

func (p *permanentSource) ID() string   { return "perm" }
func (p *permanentSource) Name() string { return "Permanent" }

func (p *permanentSource) FetchPage(ctx context.Context, cursor string) (Page, error) {
	p.calls++
	return Page{}, retry.Permanent(errors.New("bad credentials"))
}

func TestFetch_StopsOnEmptyPage(t *testing.T) {
	src := &fakeSource{
		pages: map[string]Page{
			"":      {Items: makeRecords("p1", 2), NextCursor: "page2"},
			"page2": {NextCursor: "page3"}, // empty page still advertising a cursor
		},
	}

	c := NewCollector(src, CollectConfig{Retry: fastRetry()}, testLogger())

	result, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Records, 2)
	assert.Equal(t, []string{"", "page2"}, src.calls)
}

func TestFetch_MaxPagesGuard(t *testing.T) {
	pages := map[string]Page{"": {Items: makeRecords("p0", 1), NextCursor: "1"}}
	for i := 1; i < 20; i++ {
		pages[strconv.Itoa(i)] = Page{
			Items:      makeRecords(strconv.Itoa(i), 1),
			NextCursor: strconv.Itoa(i + 1),
		}
	}
	src := &fakeSource{pages: pages}

	c := NewCollector(src, CollectConfig{Retry: fastRetry(), MaxPages: 3}, testLogger())

	result, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Pages)
	assert.Len(t, src.calls, 3)
}

func TestFetch_AppliesInterPageDelay(t *testing.T) {
	src := &fakeSource{
		pages: map[string]Page{
			"":      {Items: makeRecords("p1", 1), NextCursor: "page2"},
			"page2": {Items: makeRecords("p2", 1), NextCursor: "page3"},
			"page3": {Items: makeRecords("p3", 1)},
		},
	}

	c := NewCollector(src, CollectConfig{
		Retry:              fastRetry(),
		MinRequestInterval: 20 * time.Millisecond,
	}, testLogger())

	start := time.Now()
	result, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Records, 3)
	// first fetch is immediate, the next two wait out the interval
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestFetch_CountsSkippedAcrossPages(t *testing.T) {
	src := &fakeSource{
		pages: map[string]Page{
			"":      {Items: makeRecords("p1", 4), Skipped: 2, NextCursor: "page2"},
			"page2": {Items: makeRecords("p2", 1), Skipped: 1},
		},
	}

	c := NewCollector(src, CollectConfig{Retry: fastRetry()}, testLogger())

	result, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Skipped)
	assert.Len(t, result.Records, 5)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"content_syncer/internal/domain"
	"content_syncer/internal/service/mocks"
	"content_syncer/internal/source"
)

type SyncServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source    *mocks.MockSource
	content   *mocks.MockContentStore
	status    *mocks.MockSyncStatusStore
	txManager *mocks.MockTransactionManager
	publisher *mocks.MockPublisher

	service *SyncService
	logger  *slog.Logger
}

func (s *SyncServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockSource(s.ctrl)
	s.content = mocks.NewMockContentStore(s.ctrl)
	s.status = mocks.NewMockSyncStatusStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.source.EXPECT().ID().Return("test-source").AnyTimes()
	s.source.EXPECT().Name().Return("Test Source").AnyTimes()

	s.service = NewSyncService(
		s.source,
		s.content,
		s.status,
		s.txManager,
		s.publisher,
		func(after time.Time) time.Time { return after.Add(30 * time.Minute) },
		s.logger,
	)
}

func (s *SyncServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSyncServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SyncServiceTestSuite))
}

func syncRecords(n int) []domain.ContentRecord {
	records := make([]domain.ContentRecord, n)
	for i := range records {
		sourceID := fmt.Sprintf("rec%d", i+1)
		records[i] = domain.ContentRecord{
			ID:          domain.ContentID("test-source", sourceID),
			Source:      "test-source",
			SourceID:    sourceID,
			ContentType: domain.ContentTypeTool,
			Title:       fmt.Sprintf("Record %d", i+1),
		}
	}
	return records
}

func (s *SyncServiceTestSuite) TestSync_CreatedAndUpdatedRecords() {
	ctx := context.Background()
	records := syncRecords(2)

	s.source.EXPECT().Fetch(ctx).Return(source.Result{Records: records, Pages: 1}, nil)

	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)

	s.content.EXPECT().UpsertBatch(ctx, records).Return(domain.UpsertStats{
		Attempted:  2,
		Upserted:   2,
		Created:    1,
		Updated:    1,
		CreatedIDs: []string{"test-source-rec1"},
	}, nil)

	s.publisher.EXPECT().Publish(ctx, &records[0], true).Return(nil)
	s.publisher.EXPECT().Publish(ctx, &records[1], false).Return(nil)

	var written *domain.SyncStatusRecord
	s.status.EXPECT().Upsert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, record *domain.SyncStatusRecord) error {
			written = record
			return nil
		},
	)

	result, err := s.service.Sync(ctx)

	s.NoError(err)
	s.True(result.Success)
	s.False(result.Skipped)
	s.Equal("test-source", result.Source)
	s.Equal(2, result.Synced)
	s.Empty(result.Errors)

	s.Require().NotNil(written)
	s.Equal("test-source", written.Source)
	s.Equal(2, written.TotalRecords)
	s.Equal(0, written.ErrorCount)
	s.Require().NotNil(written.LastSuccessfulSyncAt)
	s.Equal(written.LastSyncAt, *written.LastSuccessfulSyncAt)
	s.Require().NotNil(written.NextSyncAt)
	s.Equal(30*time.Minute, written.NextSyncAt.Sub(written.LastSyncAt))
}

func (s *SyncServiceTestSuite) TestSync_FetchErrorKeepsLastSuccess() {
	ctx := context.Background()

	s.source.EXPECT().Fetch(ctx).Return(source.Result{}, errors.New("api error"))

	var written *domain.SyncStatusRecord
	s.status.EXPECT().Upsert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, record *domain.SyncStatusRecord) error {
			written = record
			return nil
		},
	)

	result, err := s.service.Sync(ctx)

	s.Error(err)
	s.Contains(err.Error(), "fetch content")
	s.False(result.Success)
	s.Require().Len(result.Errors, 1)
	s.Contains(result.Errors[0], "api error")

	s.Require().NotNil(written)
	s.Nil(written.LastSuccessfulSyncAt)
	s.Equal(0, written.TotalRecords)
	s.Equal(1, written.ErrorCount)
}

func (s *SyncServiceTestSuite) TestSync_UpsertErrorAbortsRun() {
	ctx := context.Background()
	records := syncRecords(1)

	s.source.EXPECT().Fetch(ctx).Return(source.Result{Records: records, Pages: 1}, nil)

	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)

	s.content.EXPECT().UpsertBatch(ctx, records).Return(domain.UpsertStats{}, errors.New("connection reset"))

	s.status.EXPECT().Upsert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, record *domain.SyncStatusRecord) error {
			s.Nil(record.LastSuccessfulSyncAt)
			return nil
		},
	)

	result, err := s.service.Sync(ctx)

	s.Error(err)
	s.Contains(err.Error(), "persist content")
	s.False(result.Success)
	s.Equal(0, result.Synced)
}

func (s *SyncServiceTestSuite) TestSync_SkippedItemsSurfaceAsErrors() {
	ctx := context.Background()
	records := syncRecords(3)

	s.source.EXPECT().Fetch(ctx).Return(source.Result{Records: records, Pages: 2, Skipped: 2}, nil)

	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)

	s.content.EXPECT().UpsertBatch(ctx, records).Return(domain.UpsertStats{
		Attempted:  3,
		Upserted:   2,
		Created:    2,
		Skipped:    1,
		CreatedIDs: []string{"test-source-rec1", "test-source-rec2"},
		SkippedIDs: []string{"test-source-rec3"},
	}, nil)

	// The skipped record must not produce an event.
	s.publisher.EXPECT().Publish(ctx, &records[0], true).Return(nil)
	s.publisher.EXPECT().Publish(ctx, &records[1], true).Return(nil)

	var written *domain.SyncStatusRecord
	s.status.EXPECT().Upsert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, record *domain.SyncStatusRecord) error {
			written = record
			return nil
		},
	)

	result, err := s.service.Sync(ctx)

	s.NoError(err)
	s.True(result.Success)
	s.Equal(2, result.Synced)
	s.Require().Len(result.Errors, 2)
	s.Contains(result.Errors[0], "2 items skipped during fetch")
	s.Contains(result.Errors[1], "1 records skipped during upsert")

	s.Require().NotNil(written)
	s.Equal(3, written.ErrorCount)
	s.NotNil(written.LastSuccessfulSyncAt)
}

func (s *SyncServiceTestSuite) TestSync_PublisherNil() {
	ctx := context.Background()
	records := syncRecords(1)

	service := NewSyncService(
		s.source,
		s.content,
		s.status,
		s.txManager,
		nil,
		nil,
		s.logger,
	)

	s.source.EXPECT().Fetch(ctx).Return(source.Result{Records: records, Pages: 1}, nil)

	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)

	s.content.EXPECT().UpsertBatch(ctx, records).Return(domain.UpsertStats{
		Attempted:  1,
		Upserted:   1,
		Created:    1,
		CreatedIDs: []string{"test-source-rec1"},
	}, nil)

	var written *domain.SyncStatusRecord
	s.status.EXPECT().Upsert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, record *domain.SyncStatusRecord) error {
			written = record
			return nil
		},
	)

	result, err := service.Sync(ctx)

	s.NoError(err)
	s.True(result.Success)
	s.Equal(1, result.Synced)

	// No schedule wired in, so no advisory next run either.
	s.Require().NotNil(written)
	s.Nil(written.NextSyncAt)
}

func (s *SyncServiceTestSuite) TestSync_PublishFailureDoesNotFailRun() {
	ctx := context.Background()
	records := syncRecords(2)

	s.source.EXPECT().Fetch(ctx).Return(source.Result{Records: records, Pages: 1}, nil)

	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)

	s.content.EXPECT().UpsertBatch(ctx, records).Return(domain.UpsertStats{
		Attempted:  2,
		Upserted:   2,
		Created:    2,
		CreatedIDs: []string{"test-source-rec1", "test-source-rec2"},
	}, nil)

	s.publisher.EXPECT().Publish(ctx, &records[0], true).Return(errors.New("channel closed"))
	s.publisher.EXPECT().Publish(ctx, &records[1], true).Return(nil)

	var written *domain.SyncStatusRecord
	s.status.EXPECT().Upsert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, record *domain.SyncStatusRecord) error {
			written = record
			return nil
		},
	)

	result, err := s.service.Sync(ctx)

	s.NoError(err)
	s.True(result.Success)
	s.Require().Len(result.Errors, 1)
	s.Contains(result.Errors[0], "publish test-source-rec1")

	s.Require().NotNil(written)
	s.Equal(1, written.ErrorCount)
}

func (s *SyncServiceTestSuite) TestSync_StatusWriteFailure() {
	ctx := context.Background()
	records := syncRecords(1)

	s.source.EXPECT().Fetch(ctx).Return(source.Result{Records: records, Pages: 1}, nil)

	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)

	s.content.EXPECT().UpsertBatch(ctx, records).Return(domain.UpsertStats{
		Attempted:  1,
		Upserted:   1,
		Created:    1,
		CreatedIDs: []string{"test-source-rec1"},
	}, nil)

	s.publisher.EXPECT().Publish(ctx, &records[0], true).Return(nil)

	s.status.EXPECT().Upsert(ctx, gomock.Any()).Return(errors.New("table missing"))

	_, err := s.service.Sync(ctx)

	s.Error(err)
	s.Contains(err.Error(), "update sync status")
}

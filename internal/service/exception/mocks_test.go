package exception

import (
	"context"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aidingjing/rain-gauge-api/internal/model"
	"github.com/aidingjing/rain-gauge-api/internal/observability"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FetchExceptions(ctx context.Context, f model.Filter, page, pageSize int) ([]model.ExceptionRecord, int, error) {
	args := m.Called(ctx, f, page, pageSize)
	recs, _ := args.Get(0).([]model.ExceptionRecord)
	return recs, args.Int(1), args.Error(2)
}

func (m *mockStore) FetchAllExceptions(ctx context.Context, f model.Filter) ([]model.ExceptionRecord, error) {
	args := m.Called(ctx, f)
	recs, _ := args.Get(0).([]model.ExceptionRecord)
	return recs, args.Error(1)
}

func (m *mockStore) FindPendingException(ctx context.Context, stcd string, tm time.Time) (*model.ExceptionRecord, error) {
	args := m.Called(ctx, stcd, tm)
	rec, _ := args.Get(0).(*model.ExceptionRecord)
	return rec, args.Error(1)
}

func (m *mockStore) ResolveException(ctx context.Context, req model.ResolveRequest, resolvedAt time.Time) error {
	return m.Called(ctx, req, resolvedAt).Error(0)
}

func (m *mockStore) CountPendingExceptions(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) CountPendingStations(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) CountPendingRegions(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) LatestPendingTime(ctx context.Context) (*time.Time, error) {
	args := m.Called(ctx)
	latest, _ := args.Get(0).(*time.Time)
	return latest, args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type recordingPublisher struct {
	published []model.ResolvedDetail
	err       error
}

func (p *recordingPublisher) PublishResolved(_ context.Context, d model.ResolvedDetail) error {
	p.published = append(p.published, d)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func histogramCount(t *testing.T, m *observability.Metrics) uint64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.ExportedRows.Write(&out))
	return out.GetHistogram().GetSampleCount()
}

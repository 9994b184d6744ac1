package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"analytics-engine/internal/analytics"
	"analytics-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const tenantID = "6f1c2a52-8d0e-4f0e-9a55-0b7f0f3f9a10"

var (
	rangeFrom = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeTo   = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	buildTime = time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
)

type fakeStore struct {
	tenants   map[string]bool
	ds        models.Dataset
	err       error
	block     bool
	lookupErr error
}

func (f *fakeStore) TenantExists(ctx context.Context, id string) (bool, error) {
	if f.lookupErr != nil {
		return false, f.lookupErr
	}
	return f.tenants[id], nil
}

func (f *fakeStore) wait(ctx context.Context) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func (f *fakeStore) Events(ctx context.Context, _ string, _, _ time.Time) ([]models.Event, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.ds.Events, nil
}

func (f *fakeStore) Alerts(ctx context.Context, _ string, _, _ time.Time) ([]models.Alert, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.ds.Alerts, nil
}

func (f *fakeStore) Devices(ctx context.Context, _ string) ([]models.Device, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.ds.Devices, nil
}

type fakeStorage struct {
	stats models.StorageStats
	found bool
	err   error
}

func (f fakeStorage) StorageStats(context.Context, string) (models.StorageStats, bool, error) {
	return f.stats, f.found, f.err
}

type fakeArchive struct {
	mu     sync.Mutex
	stored []models.ArchivedReport
	err    error
}

func (f *fakeArchive) StoreReport(_ context.Context, _ string, a models.ArchivedReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, a)
	return f.err
}

func at(d, h int) time.Time {
	return time.Date(2024, 1, d, h, 0, 0, 0, time.UTC)
}

func sampleDataset() models.Dataset {
	var events []models.Event
	for i := 0; i < 10; i++ {
		events = append(events, models.Event{ID: "spike", EventType: "motion", Severity: models.SeverityLow, Timestamp: at(1, 3)})
	}
	events = append(events,
		models.Event{ID: "e-door", EventType: "door", Severity: models.SeverityHigh, Timestamp: at(2, 14)},
		models.Event{ID: "e-tamper", EventType: "tamper", Severity: models.SeverityCritical, Timestamp: at(2, 15)},
	)

	return models.Dataset{
		Events: events,
		Alerts: []models.Alert{
			{ID: "a1", Title: "Door Open", Severity: models.SeverityCritical, CreatedAt: at(1, 2)},
			{ID: "a2", Title: "Motion", Severity: models.SeverityLow, CreatedAt: at(1, 3)},
			{ID: "a3", Title: "Door Open", Severity: models.SeverityCritical, CreatedAt: at(2, 4)},
			{ID: "a4", Title: "Door Open", Severity: models.SeverityCritical, CreatedAt: at(2, 5)},
		},
		Devices: []models.Device{
			{ID: "c1", IsActive: true},
			{ID: "c2", IsActive: true},
			{ID: "c3"},
			{ID: "c4"},
		},
	}
}

func newTestBuilder(store Store, storage StorageReader, archive Archive) *Builder {
	return NewBuilder(store, storage, archive, Options{
		FetchTimeout:        time.Second,
		TopAlerts:           analytics.DefaultTopAlerts,
		AnomalyCap:          analytics.DefaultAnomalyCap,
		AnomalyFactor:       analytics.DefaultAnomalyFactor,
		Thresholds:          analytics.DefaultThresholds,
		AverageResponseTime: 2.5,
		AverageLatency:      150,
		DefaultStorage:      models.StorageStats{UsedGB: 750, TotalGB: 1000},
		Now:                 func() time.Time { return buildTime },
	}, zap.NewNop())
}

func knownStore(ds models.Dataset) *fakeStore {
	return &fakeStore{tenants: map[string]bool{tenantID: true}, ds: ds}
}

func TestBuild_EventsReport(t *testing.T) {
	archive := &fakeArchive{}
	b := newTestBuilder(knownStore(sampleDataset()), nil, archive)

	rep, err := b.Build(context.Background(), Request{
		TenantID: tenantID, From: rangeFrom, To: rangeTo, RequestID: "req-1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.MetricEvents, rep.Meta.Metric)
	assert.Equal(t, models.Summary{
		TotalEvents: 12, TotalAlerts: 4, TotalCameras: 4, AverageResponseTime: 2.5, SystemUptime: 50,
	}, rep.Summary)

	assert.Equal(t, []models.DayBucket{
		{Date: "2024-01-01", Count: 10},
		{Date: "2024-01-02", Count: 2},
		{Date: "2024-01-03", Count: 0},
	}, rep.Trends.EventsByDay)
	require.Len(t, rep.Trends.EventsByHour, 24)
	assert.Equal(t, 10, rep.Trends.EventsByHour[3].Count)
	require.Len(t, rep.Trends.EventsByType, 3)
	assert.Equal(t, "motion", rep.Trends.EventsByType[0].Type)
	require.Len(t, rep.Trends.EventsBySeverity, 3)

	assert.Equal(t, models.PerformanceSnapshot{
		CamerasOnline: 2, CamerasOffline: 2, TotalCameras: 4, Uptime: 50,
		AverageLatency: 150, StorageUsed: 750, StorageTotal: 1000,
	}, rep.Performance)

	require.Len(t, rep.Insights.TopAlerts, 2)
	assert.Equal(t, "Door Open", rep.Insights.TopAlerts[0].Title)
	assert.Equal(t, 3, rep.Insights.TopAlerts[0].Count)

	ids := make([]string, 0)
	for _, r := range rep.Insights.Recommendations {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"uptime-1", "security-1"}, ids)

	require.Len(t, rep.Insights.Anomalies, 1)
	assert.Equal(t, "anomaly-3", rep.Insights.Anomalies[0].ID)
	assert.Equal(t, buildTime, rep.Insights.Anomalies[0].DetectedAt)

	require.Len(t, archive.stored, 1)
	assert.Equal(t, "req-1", archive.stored[0].RequestID)
	assert.NotEqual(t, "req-1", archive.stored[0].ID)
	assert.NotEmpty(t, archive.stored[0].ID)
	assert.Equal(t, *rep, archive.stored[0].Report)
}

func TestBuild_Deterministic(t *testing.T) {
	b := newTestBuilder(knownStore(sampleDataset()), nil, nil)
	req := Request{TenantID: tenantID, From: rangeFrom, To: rangeTo, Metric: models.MetricEvents}

	first, err := b.Build(context.Background(), req)
	require.NoError(t, err)
	second, err := b.Build(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuild_StorageFromCollaborator(t *testing.T) {
	storage := fakeStorage{stats: models.StorageStats{UsedGB: 950, TotalGB: 1000}, found: true}
	b := newTestBuilder(knownStore(sampleDataset()), storage, nil)

	rep, err := b.Build(context.Background(), Request{TenantID: tenantID, From: rangeFrom, To: rangeTo})
	require.NoError(t, err)

	assert.Equal(t, 950.0, rep.Performance.StorageUsed)
	require.Len(t, rep.Insights.Recommendations, 3)
	assert.Equal(t, "storage-1", rep.Insights.Recommendations[1].ID)
}

func TestBuild_StorageMissingUsesDefaults(t *testing.T) {
	b := newTestBuilder(knownStore(sampleDataset()), fakeStorage{found: false}, nil)

	rep, err := b.Build(context.Background(), Request{TenantID: tenantID, From: rangeFrom, To: rangeTo})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, rep.Performance.StorageTotal)
}

func TestBuild_PerformanceDimension(t *testing.T) {
	b := newTestBuilder(knownStore(sampleDataset()), nil, nil)

	rep, err := b.Build(context.Background(), Request{
		TenantID: tenantID, From: rangeFrom, To: rangeTo, Metric: models.MetricPerformance,
	})
	require.NoError(t, err)

	assert.Empty(t, rep.Trends.EventsByDay)
	assert.NotNil(t, rep.Trends.EventsByDay)
	assert.Empty(t, rep.Trends.EventsByHour)
	assert.Empty(t, rep.Insights.TopAlerts)
	assert.Empty(t, rep.Insights.Anomalies)
	require.Len(t, rep.Insights.Recommendations, 1)
	assert.Equal(t, "uptime-1", rep.Insights.Recommendations[0].ID)
	assert.Equal(t, 12, rep.Summary.TotalEvents)
}

func TestBuild_AlertsDimension(t *testing.T) {
	b := newTestBuilder(knownStore(sampleDataset()), nil, nil)

	rep, err := b.Build(context.Background(), Request{
		TenantID: tenantID, From: rangeFrom, To: rangeTo, Metric: models.MetricAlerts,
	})
	require.NoError(t, err)

	assert.Equal(t, []models.DayBucket{
		{Date: "2024-01-01", Count: 2},
		{Date: "2024-01-02", Count: 2},
		{Date: "2024-01-03", Count: 0},
	}, rep.Trends.EventsByDay)
	require.Len(t, rep.Trends.EventsByType, 2)
	assert.Equal(t, "Door Open", rep.Trends.EventsByType[0].Type)
	assert.Equal(t, 75.0, rep.Trends.EventsByType[0].Percentage)

	require.Len(t, rep.Insights.Recommendations, 1)
	assert.Equal(t, "security-1", rep.Insights.Recommendations[0].ID)
}

func TestBuild_SecurityDimension(t *testing.T) {
	b := newTestBuilder(knownStore(sampleDataset()), nil, nil)

	rep, err := b.Build(context.Background(), Request{
		TenantID: tenantID, From: rangeFrom, To: rangeTo, Metric: models.MetricSecurity,
	})
	require.NoError(t, err)

	var types []string
	for _, c := range rep.Trends.EventsByType {
		types = append(types, c.Type)
	}
	assert.Equal(t, []string{"door", "tamper"}, types)

	require.Len(t, rep.Insights.TopAlerts, 1)
	assert.Equal(t, "Door Open", rep.Insights.TopAlerts[0].Title)
	assert.Equal(t, 12, rep.Summary.TotalEvents)
}

func TestBuild_Errors(t *testing.T) {
	store := knownStore(sampleDataset())

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"missing tenant", Request{From: rangeFrom, To: rangeTo}, ErrUnauthorized},
		{"malformed tenant", Request{TenantID: "acme", From: rangeFrom, To: rangeTo}, ErrUnauthorized},
		{"unknown tenant", Request{TenantID: "00000000-0000-0000-0000-000000000001", From: rangeFrom, To: rangeTo}, ErrNotFound},
		{"reversed range", Request{TenantID: tenantID, From: rangeTo, To: rangeFrom}, ErrInvalidRange},
		{"zero range", Request{TenantID: tenantID}, ErrInvalidRange},
		{"unknown metric", Request{TenantID: tenantID, From: rangeFrom, To: rangeTo, Metric: "revenue"}, ErrUnknownMetric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(store, nil, nil)
			_, err := b.Build(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuild_InvalidRangeNamesConstraint(t *testing.T) {
	b := newTestBuilder(knownStore(sampleDataset()), nil, nil)

	_, err := b.Build(context.Background(), Request{TenantID: tenantID, From: rangeTo, To: rangeFrom})

	var rangeErr *analytics.InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "to must not be before from", rangeErr.Reason)
	assert.Equal(t, "invalid_range", Kind(err))
}

func TestBuild_Timeout(t *testing.T) {
	store := knownStore(sampleDataset())
	store.block = true

	b := newTestBuilder(store, nil, nil)
	b.opts.FetchTimeout = 20 * time.Millisecond

	rep, err := b.Build(context.Background(), Request{TenantID: tenantID, From: rangeFrom, To: rangeTo})
	assert.Nil(t, rep)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestBuild_CallerCanceled(t *testing.T) {
	store := knownStore(sampleDataset())
	store.block = true
	b := newTestBuilder(store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := b.Build(ctx, Request{TenantID: tenantID, From: rangeFrom, To: rangeTo})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestBuild_FetchFailureIsInternal(t *testing.T) {
	store := knownStore(sampleDataset())
	store.err = errors.New("connection refused")

	archive := &fakeArchive{}
	b := newTestBuilder(store, nil, archive)

	_, err := b.Build(context.Background(), Request{TenantID: tenantID, From: rangeFrom, To: rangeTo})
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, "internal", Kind(err))
	assert.Empty(t, archive.stored)
}

func TestBuild_StorageFailureIsInternal(t *testing.T) {
	b := newTestBuilder(knownStore(sampleDataset()), fakeStorage{err: errors.New("redis down")}, nil)

	_, err := b.Build(context.Background(), Request{TenantID: tenantID, From: rangeFrom, To: rangeTo})
	assert.ErrorIs(t, err, ErrInternal)
}

func TestBuild_TenantLookupFailure(t *testing.T) {
	store := knownStore(sampleDataset())
	store.lookupErr = errors.New("too many connections")
	b := newTestBuilder(store, nil, nil)

	_, err := b.Build(context.Background(), Request{TenantID: tenantID, From: rangeFrom, To: rangeTo})
	assert.ErrorIs(t, err, ErrInternal)
}

func TestBuild_ArchiveFailureDoesNotFailReport(t *testing.T) {
	archive := &fakeArchive{err: errors.New("redis down")}
	b := newTestBuilder(knownStore(sampleDataset()), nil, archive)

	rep, err := b.Build(context.Background(), Request{TenantID: tenantID, From: rangeFrom, To: rangeTo, RequestID: "r"})
	require.NoError(t, err)
	assert.NotNil(t, rep)
	assert.Len(t, archive.stored, 1)
}

func TestBuild_EmptyTenant(t *testing.T) {
	b := newTestBuilder(knownStore(models.Dataset{}), nil, nil)

	rep, err := b.Build(context.Background(), Request{TenantID: tenantID, From: rangeFrom, To: rangeFrom})
	require.NoError(t, err)

	require.Len(t, rep.Trends.EventsByDay, 1)
	assert.Len(t, rep.Trends.EventsByHour, 24)
	assert.Empty(t, rep.Trends.EventsByType)
	assert.Zero(t, rep.Summary.SystemUptime)
	assert.Empty(t, rep.Insights.Anomalies)
	assert.Empty(t, rep.Insights.TopAlerts)
	require.Len(t, rep.Insights.Recommendations, 1)
	assert.Equal(t, "uptime-1", rep.Insights.Recommendations[0].ID)
}

func TestDataset(t *testing.T) {
	b := newTestBuilder(knownStore(sampleDataset()), nil, nil)

	ds, err := b.Dataset(context.Background(), tenantID, rangeFrom, rangeTo)
	require.NoError(t, err)
	assert.Len(t, ds.Events, 12)
	assert.Len(t, ds.Alerts, 4)
	assert.Len(t, ds.Devices, 4)

	_, err = b.Dataset(context.Background(), "", rangeFrom, rangeTo)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestBuild_AggregationPanicIsInternal(t *testing.T) {
	for _, step := range []string{"performance", "hourly", "daily", "category", "insights"} {
		t.Run(step, func(t *testing.T) {
			archive := &fakeArchive{}
			b := newTestBuilder(knownStore(sampleDataset()), nil, archive)
			b.step = func(name string) {
				if name == step {
					panic("index out of range")
				}
			}

			rep, err := b.Build(context.Background(), Request{TenantID: tenantID, From: rangeFrom, To: rangeTo})
			assert.Nil(t, rep)
			assert.ErrorIs(t, err, ErrInternal)
			assert.Equal(t, "internal", Kind(err))
			assert.ErrorContains(t, err, "panicked")
			assert.Empty(t, archive.stored)
		})
	}
}

func TestBuild_CallerDeadlineIsTimeout(t *testing.T) {
	store := knownStore(sampleDataset())
	store.block = true
	b := newTestBuilder(store, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Build(ctx, Request{TenantID: tenantID, From: rangeFrom, To: rangeTo})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "timeout", Kind(err))
}

func TestNewBuilder_DefaultsZeroOptions(t *testing.T) {
	b := NewBuilder(knownStore(sampleDataset()), nil, nil, Options{}, zap.NewNop())

	assert.Equal(t, analytics.DefaultTopAlerts, b.opts.TopAlerts)
	assert.Equal(t, analytics.DefaultAnomalyCap, b.opts.AnomalyCap)
	assert.Equal(t, analytics.DefaultThresholds, b.opts.Thresholds)
	assert.Equal(t, DefaultMaxRange, b.opts.MaxRange)

	rep, err := b.Build(context.Background(), Request{TenantID: tenantID, From: rangeFrom, To: rangeTo})
	require.NoError(t, err)
	assert.NotEmpty(t, rep.Insights.TopAlerts)
	assert.NotEmpty(t, rep.Insights.Anomalies)
	require.NotEmpty(t, rep.Insights.Recommendations)
	assert.Equal(t, "uptime-1", rep.Insights.Recommendations[0].ID)
}

func TestBuild_RangeTooWide(t *testing.T) {
	store := knownStore(sampleDataset())
	b := newTestBuilder(store, nil, nil)

	from := time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

	rep, err := b.Build(context.Background(), Request{TenantID: tenantID, From: from, To: to})
	assert.Nil(t, rep)
	assert.ErrorIs(t, err, ErrInvalidRange)

	var rangeErr *analytics.InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Contains(t, rangeErr.Reason, "range must not exceed")

	_, err = b.Dataset(context.Background(), tenantID, from, to)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"analytics-engine/internal/analytics"
	"analytics-engine/internal/config"
	"analytics-engine/internal/metrics"
	"analytics-engine/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Store supplies tenant-scoped records.
type Store interface {
	TenantExists(ctx context.Context, tenantID string) (bool, error)
	Events(ctx context.Context, tenantID string, from, to time.Time) ([]models.Event, error)
	Alerts(ctx context.Context, tenantID string, from, to time.Time) ([]models.Alert, error)
	Devices(ctx context.Context, tenantID string) ([]models.Device, error)
}

// StorageReader supplies per-tenant storage figures.
type StorageReader interface {
	StorageStats(ctx context.Context, tenantID string) (models.StorageStats, bool, error)
}

// Archive keeps a history of built reports.
type Archive interface {
	StoreReport(ctx context.Context, tenantID string, archived models.ArchivedReport) error
}

type Options struct {
	Location            *time.Location
	FetchTimeout        time.Duration
	MaxRange            time.Duration
	TopAlerts           int
	AnomalyCap          int
	AnomalyFactor       float64
	Thresholds          analytics.Thresholds
	AverageResponseTime float64
	AverageLatency      float64
	DefaultStorage      models.StorageStats
	Now                 func() time.Time
}

func OptionsFromConfig(cfg *config.Config) Options {
	a := cfg.Analytics
	return Options{
		Location:            cfg.Location(),
		FetchTimeout:        a.FetchTimeout,
		MaxRange:            a.MaxRange,
		TopAlerts:           a.TopAlerts,
		AnomalyCap:          a.AnomalyCap,
		AnomalyFactor:       a.AnomalyFactor,
		Thresholds:          analytics.Thresholds{UptimePercent: a.UptimeThreshold, StorageRatio: a.StorageThreshold},
		AverageResponseTime: a.AverageResponseTime,
		AverageLatency:      a.AverageLatency,
		DefaultStorage:      models.StorageStats{UsedGB: a.DefaultStorageUsedGB, TotalGB: a.DefaultStorageTotalGB},
	}
}

// DefaultMaxRange bounds the span of one report or export.
const DefaultMaxRange = 366 * 24 * time.Hour

type Request struct {
	TenantID  string
	From      time.Time
	To        time.Time
	Metric    models.Metric
	RequestID string
}

// Builder assembles analytics reports. It keeps no per-request state and
// is safe for concurrent use.
type Builder struct {
	store   Store
	storage StorageReader
	archive Archive
	opts    Options
	logger  *zap.Logger

	// step, when set, runs at the start of each named aggregation step.
	step func(name string)
}

// NewBuilder wires the collaborators. storage and archive may be nil: the
// configured default storage figures are used and nothing is archived.
func NewBuilder(store Store, storage StorageReader, archive Archive, opts Options, logger *zap.Logger) *Builder {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.MaxRange <= 0 {
		opts.MaxRange = DefaultMaxRange
	}
	if opts.TopAlerts <= 0 {
		opts.TopAlerts = analytics.DefaultTopAlerts
	}
	if opts.AnomalyCap <= 0 {
		opts.AnomalyCap = analytics.DefaultAnomalyCap
	}
	if opts.AnomalyFactor <= 0 {
		opts.AnomalyFactor = analytics.DefaultAnomalyFactor
	}
	if opts.Thresholds.UptimePercent <= 0 {
		opts.Thresholds.UptimePercent = analytics.DefaultThresholds.UptimePercent
	}
	if opts.Thresholds.StorageRatio <= 0 {
		opts.Thresholds.StorageRatio = analytics.DefaultThresholds.StorageRatio
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Builder{
		store:   store,
		storage: storage,
		archive: archive,
		opts:    opts,
		logger:  logger,
	}
}

type snapshot struct {
	models.Dataset
	storage models.StorageStats
}

// Build fetches the tenant's records for [req.From, req.To) and assembles
// the report for req.Metric. It returns either a complete report or an
// error wrapping one of the package sentinels.
func (b *Builder) Build(ctx context.Context, req Request) (*models.Report, error) {
	if req.Metric == "" {
		req.Metric = models.MetricEvents
	}
	p, ok := plans[req.Metric]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, req.Metric)
	}
	if err := validate(req.TenantID, req.From, req.To, b.opts.MaxRange); err != nil {
		return nil, err
	}

	log := b.logger.With(
		zap.String("request_id", req.RequestID),
		zap.String("tenant_id", req.TenantID),
		zap.String("metric", string(req.Metric)),
		zap.Time("from", req.From),
		zap.Time("to", req.To),
	)

	snap, err := b.fetch(ctx, req.TenantID, req.From, req.To, true)
	if err != nil {
		b.logFailure(log, "report fetch failed", err)
		return nil, err
	}

	rep, err := b.assemble(ctx, req, p, snap)
	if err != nil {
		b.logFailure(log, "report assembly failed", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, abandoned("assembly", err)
	}

	metrics.AnomaliesDetected.Add(float64(len(rep.Insights.Anomalies)))
	b.archiveReport(ctx, log, req, rep)

	log.Info("report built",
		zap.Int("events", rep.Summary.TotalEvents),
		zap.Int("alerts", rep.Summary.TotalAlerts),
		zap.Int("anomalies", len(rep.Insights.Anomalies)),
		zap.Int("recommendations", len(rep.Insights.Recommendations)))
	return rep, nil
}

// Dataset returns the raw tenant-scoped records for [from, to).
func (b *Builder) Dataset(ctx context.Context, tenantID string, from, to time.Time) (models.Dataset, error) {
	if err := validate(tenantID, from, to, b.opts.MaxRange); err != nil {
		return models.Dataset{}, err
	}
	snap, err := b.fetch(ctx, tenantID, from, to, false)
	if err != nil {
		b.logFailure(b.logger.With(zap.String("tenant_id", tenantID)), "dataset fetch failed", err)
		return models.Dataset{}, err
	}
	return snap.Dataset, nil
}

func validate(tenantID string, from, to time.Time, maxRange time.Duration) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("%w: missing tenant", ErrUnauthorized)
	}
	if _, err := uuid.Parse(tenantID); err != nil {
		return fmt.Errorf("%w: malformed tenant id", ErrUnauthorized)
	}
	if from.IsZero() || to.IsZero() {
		return fmt.Errorf("%w: %w", ErrInvalidRange,
			&analytics.InvalidRangeError{Start: from, End: to, Reason: "from and to must be set"})
	}
	if to.Before(from) {
		return fmt.Errorf("%w: %w", ErrInvalidRange,
			&analytics.InvalidRangeError{Start: from, End: to, Reason: "to must not be before from"})
	}
	if to.Sub(from) > maxRange {
		return fmt.Errorf("%w: %w", ErrInvalidRange,
			&analytics.InvalidRangeError{Start: from, End: to, Reason: fmt.Sprintf("range must not exceed %s", maxRange)})
	}
	return nil
}

// fetch loads everything a report needs under one timeout. No partial
// snapshot is ever returned.
func (b *Builder) fetch(ctx context.Context, tenantID string, from, to time.Time, withStorage bool) (snapshot, error) {
	start := time.Now()
	defer func() { metrics.FetchDuration.Observe(time.Since(start).Seconds()) }()

	fetchCtx, cancel := context.WithTimeout(ctx, b.opts.FetchTimeout)
	defer cancel()

	exists, err := b.store.TenantExists(fetchCtx, tenantID)
	if err != nil {
		return snapshot{}, b.fetchError(ctx, fetchCtx, "tenant lookup", err)
	}
	if !exists {
		return snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, tenantID)
	}

	var snap snapshot
	snap.storage = b.opts.DefaultStorage

	g, gctx := errgroup.WithContext(fetchCtx)
	g.Go(func() error {
		events, err := b.store.Events(gctx, tenantID, from, to)
		if err != nil {
			return fmt.Errorf("events: %w", err)
		}
		snap.Events = events
		return nil
	})
	g.Go(func() error {
		alerts, err := b.store.Alerts(gctx, tenantID, from, to)
		if err != nil {
			return fmt.Errorf("alerts: %w", err)
		}
		snap.Alerts = alerts
		return nil
	})
	g.Go(func() error {
		devices, err := b.store.Devices(gctx, tenantID)
		if err != nil {
			return fmt.Errorf("devices: %w", err)
		}
		snap.Devices = devices
		return nil
	})
	if withStorage && b.storage != nil {
		g.Go(func() error {
			stats, found, err := b.storage.StorageStats(gctx, tenantID)
			if err != nil {
				return fmt.Errorf("storage: %w", err)
			}
			if found {
				snap.storage = stats
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return snapshot{}, b.fetchError(ctx, fetchCtx, "fetch", err)
	}
	return snap, nil
}

func (b *Builder) fetchError(parent, fetchCtx context.Context, op string, err error) error {
	switch {
	case parent.Err() != nil:
		return abandoned(op, parent.Err())
	case errors.Is(fetchCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %s (%s)", ErrTimeout, b.opts.FetchTimeout, op)
	default:
		return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
	}
}

// abandoned reports a caller context that ended mid-build. A caller deadline
// is a timeout; a cancellation stays context.Canceled.
func abandoned(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: caller deadline passed during %s: %w", ErrTimeout, op, err)
	}
	return fmt.Errorf("report abandoned during %s: %w", op, err)
}

func (b *Builder) runStep(name string) {
	if b.step != nil {
		b.step(name)
	}
}

func (b *Builder) assemble(ctx context.Context, req Request, p plan, snap snapshot) (rep *models.Report, err error) {
	scoped := p.scope(snap.Dataset)
	loc := b.opts.Location

	var times []time.Time
	switch p.trends {
	case trendsFromEvents:
		times = analytics.EventTimes(scoped.Events)
	case trendsFromAlerts:
		times = analytics.AlertTimes(scoped.Alerts)
	}

	trends := models.Trends{
		EventsByDay:      []models.DayBucket{},
		EventsByHour:     []models.HourBucket{},
		EventsByType:     []models.CategoryBucket{},
		EventsBySeverity: []models.SeverityBucket{},
	}
	var (
		perf  models.PerformanceSnapshot
		hours []models.HourBucket
	)

	var g errgroup.Group
	goSafe := func(name string, fn func() error) {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %s aggregation panicked: %v", ErrInternal, name, r)
				}
			}()
			b.runStep(name)
			return fn()
		})
	}

	goSafe("performance", func() error {
		perf = analytics.Summarize(snap.Devices)
		return nil
	})
	if p.trends != trendsNone || p.anomalies {
		goSafe("hourly", func() error {
			hours = analytics.HourlyBuckets(times, loc)
			return nil
		})
	}
	if p.trends != trendsNone {
		goSafe("daily", func() error {
			days, err := analytics.DailyBuckets(times, req.From, req.To, loc)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidRange, err)
			}
			trends.EventsByDay = days
			return nil
		})
		goSafe("category", func() error {
			if p.trends == trendsFromAlerts {
				trends.EventsByType = analytics.ByCategory(scoped.Alerts, analytics.AlertTitle)
				trends.EventsBySeverity = analytics.BySeverity(scoped.Alerts, analytics.AlertSeverity)
			} else {
				trends.EventsByType = analytics.ByCategory(scoped.Events, analytics.EventType)
				trends.EventsBySeverity = analytics.BySeverity(scoped.Events, analytics.EventSeverity)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, abandoned("aggregation", err)
	}

	if p.trends != trendsNone {
		trends.EventsByHour = hours
	}

	perf.AverageLatency = b.opts.AverageLatency
	perf.StorageUsed = snap.storage.UsedGB
	perf.StorageTotal = snap.storage.TotalGB

	defer func() {
		if r := recover(); r != nil {
			rep, err = nil, fmt.Errorf("%w: insights panicked: %v", ErrInternal, r)
		}
	}()
	b.runStep("insights")

	insights := models.Insights{
		TopAlerts: []models.TopAlert{},
		Anomalies: []models.Anomaly{},
	}
	if p.topAlerts {
		insights.TopAlerts = analytics.TopAlerts(scoped.Alerts, b.opts.TopAlerts)
	}
	insights.Recommendations = analytics.GenerateRecommendations(perf, snap.storage, scoped.Alerts, b.opts.Thresholds, p.rules)
	if p.anomalies {
		insights.Anomalies = analytics.DetectAnomalies(hours, b.opts.AnomalyFactor, b.opts.AnomalyCap, b.opts.Now().UTC())
	}

	return &models.Report{
		Meta: models.ReportMeta{
			TenantID: req.TenantID,
			Metric:   req.Metric,
			From:     req.From,
			To:       req.To,
		},
		Summary: models.Summary{
			TotalEvents:         len(snap.Events),
			TotalAlerts:         len(snap.Alerts),
			TotalCameras:        perf.TotalCameras,
			AverageResponseTime: b.opts.AverageResponseTime,
			SystemUptime:        perf.Uptime,
		},
		Trends:      trends,
		Performance: perf,
		Insights:    insights,
	}, nil
}

// archiveReport stores rep in the history. Failures are logged and never fail the request.
func (b *Builder) archiveReport(ctx context.Context, log *zap.Logger, req Request, rep *models.Report) {
	if b.archive == nil {
		return
	}
	err := b.archive.StoreReport(ctx, req.TenantID, models.ArchivedReport{
		ID:        uuid.NewString(),
		RequestID: req.RequestID,
		BuiltAt:   b.opts.Now().UTC(),
		Report:    *rep,
	})
	if err != nil {
		log.Warn("failed to archive report", zap.Error(err))
	}
}

func (b *Builder) logFailure(log *zap.Logger, msg string, err error) {
	switch Kind(err) {
	case "internal":
		log.Error(msg, zap.Error(err))
	case "timeout":
		log.Warn(msg, zap.Error(err))
	default:
		log.Debug(msg, zap.Error(err))
	}
}

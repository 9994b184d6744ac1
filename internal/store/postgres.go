package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"analytics-engine/internal/config"
	"analytics-engine/internal/models"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// PostgresStore reads tenant-scoped security records.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM tenants WHERE tenant_id = $1`, tenantID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up tenant: %w", err)
	}
	return true, nil
}

// Events returns the tenant's events with from <= timestamp < to.
func (s *PostgresStore) Events(ctx context.Context, tenantID string, from, to time.Time) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id::text, tenant_id::text, camera_id::text, event_type, severity, occurred_at
		FROM events
		WHERE tenant_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at, event_id`,
		tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		var (
			e        models.Event
			cameraID sql.NullString
			severity string
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &cameraID, &e.EventType, &severity, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.CameraID = cameraID.String
		e.Severity = models.Severity(severity)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	s.logger.Debug("events loaded",
		zap.String("tenant_id", tenantID),
		zap.Int("count", len(events)))
	return events, nil
}

// Alerts returns the tenant's alerts with from <= created_at < to.
func (s *PostgresStore) Alerts(ctx context.Context, tenantID string, from, to time.Time) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT alert_id::text, tenant_id::text, title, severity, created_at
		FROM alerts
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at, alert_id`,
		tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]models.Alert, 0)
	for rows.Next() {
		var (
			a        models.Alert
			severity string
		)
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Title, &severity, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Severity = models.Severity(severity)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

// Devices returns the tenant's current camera snapshot.
func (s *PostgresStore) Devices(ctx context.Context, tenantID string) ([]models.Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT camera_id::text, tenant_id::text, is_active
		FROM cameras
		WHERE tenant_id = $1
		ORDER BY camera_id`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	devices := make([]models.Device, 0)
	for rows.Next() {
		var d models.Device
		if err := rows.Scan(&d.ID, &d.TenantID, &d.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cameras: %w", err)
	}
	return devices, nil
}

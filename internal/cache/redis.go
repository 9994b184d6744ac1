package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"analytics-engine/internal/config"
	"analytics-engine/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	storageKeyPrefix = "analytics:storage:"
	reportKeyPrefix  = "analytics:report:"
	reportsKeyPrefix = "analytics:reports:"
)

// RedisClient holds per-tenant storage figures written by the device
// health processes and a bounded history of built reports.
type RedisClient struct {
	client      *redis.Client
	archiveSize int64
	archiveTTL  time.Duration
}

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	size := cfg.ArchiveSize
	if size <= 0 {
		size = 50
	}
	ttl := cfg.ArchiveTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisClient{
		client:      client,
		archiveSize: size,
		archiveTTL:  ttl,
	}, nil
}

func storageKey(tenantID string) string { return storageKeyPrefix + tenantID }
func reportsKey(tenantID string) string { return reportsKeyPrefix + tenantID }

func reportKey(tenantID, reportID string) string {
	return reportKeyPrefix + tenantID + ":" + reportID
}

// StorageStats reads the tenant's storage hash. found is false when the
// hash does not exist.
func (r *RedisClient) StorageStats(ctx context.Context, tenantID string) (stats models.StorageStats, found bool, err error) {
	values, err := r.client.HGetAll(ctx, storageKey(tenantID)).Result()
	if err != nil {
		return stats, false, fmt.Errorf("failed to read storage stats: %w", err)
	}
	if len(values) == 0 {
		return stats, false, nil
	}

	if stats.UsedGB, err = parseGB(values, "used_gb"); err != nil {
		return models.StorageStats{}, false, err
	}
	if stats.TotalGB, err = parseGB(values, "total_gb"); err != nil {
		return models.StorageStats{}, false, err
	}
	return stats, true, nil
}

func (r *RedisClient) SetStorageStats(ctx context.Context, tenantID string, stats models.StorageStats) error {
	err := r.client.HSet(ctx, storageKey(tenantID),
		"used_gb", strconv.FormatFloat(stats.UsedGB, 'f', -1, 64),
		"total_gb", strconv.FormatFloat(stats.TotalGB, 'f', -1, 64),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to write storage stats: %w", err)
	}
	return nil
}

func parseGB(values map[string]string, field string) (float64, error) {
	raw, ok := values[field]
	if !ok {
		return 0, fmt.Errorf("storage stats missing %s", field)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid storage %s %q: %w", field, raw, err)
	}
	return v, nil
}

// StoreReport archives a report and trims the tenant's history.
// StoreReport archives a report under its ID, assigning one when empty.
// The caller's request id is payload only and never part of the key.
func (r *RedisClient) StoreReport(ctx context.Context, tenantID string, archived models.ArchivedReport) error {
	if archived.ID == "" {
		archived.ID = uuid.NewString()
	}
	data, err := json.Marshal(archived)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	key := reportKey(tenantID, archived.ID)
	listKey := reportsKey(tenantID)

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, r.archiveTTL)
		pipe.LPush(ctx, listKey, key)
		pipe.LTrim(ctx, listKey, 0, r.archiveSize-1)
		pipe.Expire(ctx, listKey, r.archiveTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store report in Redis: %w", err)
	}
	return nil
}

// RecentReports returns up to count archived reports, newest first.
// Entries whose payload already expired are skipped.
func (r *RedisClient) RecentReports(ctx context.Context, tenantID string, count int64) ([]models.ArchivedReport, error) {
	reports := make([]models.ArchivedReport, 0)
	if count <= 0 {
		return reports, nil
	}

	keys, err := r.client.LRange(ctx, reportsKey(tenantID), 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get recent report keys: %w", err)
	}

	for _, key := range keys {
		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get report %s: %w", key, err)
		}

		var archived models.ArchivedReport
		if err := json.Unmarshal(data, &archived); err != nil {
			continue
		}
		reports = append(reports, archived)
	}
	return reports, nil
}

func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

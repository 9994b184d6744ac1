package analytics

import (
	"fmt"
	"sort"
	"time"

	"analytics-engine/internal/models"
)

const (
	DefaultTopAlerts     = 5
	DefaultAnomalyCap    = 5
	DefaultAnomalyFactor = 3.0
)

// TopAlerts ranks alert titles by occurrence count, highest first. Equal
// counts keep the order in which each title first appeared.
func TopAlerts(alerts []models.Alert, n int) []models.TopAlert {
	if n <= 0 {
		return []models.TopAlert{}
	}

	index := make(map[string]int)
	grouped := make([]models.TopAlert, 0)
	for _, a := range alerts {
		i, ok := index[a.Title]
		if !ok {
			i = len(grouped)
			index[a.Title] = i
			grouped = append(grouped, models.TopAlert{Title: a.Title, Severity: a.Severity})
		}
		grouped[i].Count++
	}

	sort.SliceStable(grouped, func(i, j int) bool {
		return grouped[i].Count > grouped[j].Count
	})

	if len(grouped) > n {
		grouped = grouped[:n]
	}
	for i := range grouped {
		grouped[i].ID = fmt.Sprintf("alert-%d", i)
	}
	return grouped
}

// RuleSet selects which recommendation rules are evaluated.
type RuleSet uint8

const (
	RuleUptime RuleSet = 1 << iota
	RuleStorage
	RuleCriticalAlerts

	AllRules = RuleUptime | RuleStorage | RuleCriticalAlerts
)

type Thresholds struct {
	UptimePercent float64
	StorageRatio  float64
}

var DefaultThresholds = Thresholds{UptimePercent: 95, StorageRatio: 0.8}

// GenerateRecommendations evaluates the enabled rules in the fixed order
// uptime, storage, critical alerts. Each rule fires at most once.
func GenerateRecommendations(perf models.PerformanceSnapshot, storage models.StorageStats, alerts []models.Alert, th Thresholds, rules RuleSet) []models.Recommendation {
	recs := make([]models.Recommendation, 0, 3)

	if rules&RuleUptime != 0 && perf.Uptime < th.UptimePercent {
		recs = append(recs, models.Recommendation{
			ID:    "uptime-1",
			Title: "Improve System Uptime",
			Description: fmt.Sprintf("System uptime is below %g%%. Consider checking camera connections and network stability.",
				th.UptimePercent),
			Priority: models.PriorityHigh,
		})
	}

	if rules&RuleStorage != 0 && storage.TotalGB > 0 && storage.UsedGB/storage.TotalGB > th.StorageRatio {
		recs = append(recs, models.Recommendation{
			ID:    "storage-1",
			Title: "Storage Space Warning",
			Description: fmt.Sprintf("Storage usage is above %g%%. Consider cleaning old recordings or upgrading storage.",
				th.StorageRatio*100),
			Priority: models.PriorityMedium,
		})
	}

	if rules&RuleCriticalAlerts != 0 {
		critical := 0
		for _, a := range alerts {
			if a.Severity == models.SeverityCritical {
				critical++
			}
		}
		if critical > 0 {
			recs = append(recs, models.Recommendation{
				ID:          "security-1",
				Title:       "Address Critical Alerts",
				Description: fmt.Sprintf("There are %d critical alerts that require immediate attention.", critical),
				Priority:    models.PriorityHigh,
			})
		}
	}

	return recs
}

// DetectAnomalies flags hours whose count exceeds factor times the flat
// 24-hour average. At most limit anomalies are returned, in hour order.
func DetectAnomalies(hours []models.HourBucket, factor float64, limit int, detectedAt time.Time) []models.Anomaly {
	anomalies := make([]models.Anomaly, 0)
	if limit <= 0 {
		return anomalies
	}

	total := 0
	for _, h := range hours {
		total += h.Count
	}
	average := float64(total) / 24
	threshold := average * factor

	ordered := make([]models.HourBucket, len(hours))
	copy(ordered, hours)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Hour < ordered[j].Hour })

	for _, h := range ordered {
		if float64(h.Count) <= threshold {
			continue
		}
		anomalies = append(anomalies, models.Anomaly{
			ID:          fmt.Sprintf("anomaly-%d", h.Hour),
			Description: fmt.Sprintf("Unusual activity detected at hour %d: %d events (average: %.1f)", h.Hour, h.Count, average),
			Severity:    models.SeverityMedium,
			DetectedAt:  detectedAt,
		})
		if len(anomalies) == limit {
			break
		}
	}
	return anomalies
}

package analytics

import (
	"testing"
	"time"

	"analytics-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alertsOf(pairs ...any) []models.Alert {
	var alerts []models.Alert
	for i := 0; i < len(pairs); i += 2 {
		title := pairs[i].(string)
		n := pairs[i+1].(int)
		for j := 0; j < n; j++ {
			alerts = append(alerts, models.Alert{Title: title, Severity: models.SeverityMedium})
		}
	}
	return alerts
}

func TestSummarize(t *testing.T) {
	snap := Summarize([]models.Device{
		{ID: "c1", IsActive: true},
		{ID: "c2", IsActive: true},
		{ID: "c3"},
		{ID: "c4"},
	})
	assert.Equal(t, 2, snap.CamerasOnline)
	assert.Equal(t, 2, snap.CamerasOffline)
	assert.Equal(t, 4, snap.TotalCameras)
	assert.Equal(t, 50.0, snap.Uptime)
}

func TestSummarize_NoDevices(t *testing.T) {
	snap := Summarize(nil)
	assert.Equal(t, models.PerformanceSnapshot{}, snap)
}

func TestTopAlerts(t *testing.T) {
	top := TopAlerts(alertsOf("Motion", 1, "Door Open", 3), 5)

	require.Len(t, top, 2)
	assert.Equal(t, models.TopAlert{ID: "alert-0", Title: "Door Open", Count: 3, Severity: models.SeverityMedium}, top[0])
	assert.Equal(t, models.TopAlert{ID: "alert-1", Title: "Motion", Count: 1, Severity: models.SeverityMedium}, top[1])
}

func TestTopAlerts_TieBreakIsFirstOccurrence(t *testing.T) {
	alerts := []models.Alert{
		{Title: "B"}, {Title: "A"}, {Title: "C"}, {Title: "A"}, {Title: "B"}, {Title: "C"},
	}

	first := TopAlerts(alerts, 5)
	second := TopAlerts(alerts, 5)
	assert.Equal(t, first, second)

	titles := []string{first[0].Title, first[1].Title, first[2].Title}
	assert.Equal(t, []string{"B", "A", "C"}, titles)
}

func TestTopAlerts_Limit(t *testing.T) {
	top := TopAlerts(alertsOf("a", 1, "b", 2, "c", 3, "d", 4, "e", 5, "f", 6), 5)
	require.Len(t, top, 5)
	assert.Equal(t, "f", top[0].Title)
	assert.Equal(t, "b", top[4].Title)

	assert.Empty(t, TopAlerts(alertsOf("a", 1), 0))
	assert.Empty(t, TopAlerts(nil, 5))
}

func TestGenerateRecommendations_UptimeAndCritical(t *testing.T) {
	alerts := []models.Alert{
		{Title: "x", Severity: models.SeverityCritical},
		{Title: "y", Severity: models.SeverityLow},
		{Title: "z", Severity: models.SeverityCritical},
	}
	perf := models.PerformanceSnapshot{Uptime: 90}

	recs := GenerateRecommendations(perf, models.StorageStats{}, alerts, DefaultThresholds, AllRules)

	require.Len(t, recs, 2)
	assert.Equal(t, "uptime-1", recs[0].ID)
	assert.Equal(t, models.PriorityHigh, recs[0].Priority)
	assert.Equal(t, "security-1", recs[1].ID)
	assert.Equal(t, models.PriorityHigh, recs[1].Priority)
	assert.Contains(t, recs[1].Description, "2 critical alerts")
}

func TestGenerateRecommendations_FixedOrder(t *testing.T) {
	alerts := []models.Alert{{Severity: models.SeverityCritical}}
	perf := models.PerformanceSnapshot{Uptime: 10}
	storage := models.StorageStats{UsedGB: 900, TotalGB: 1000}

	for i := 0; i < 3; i++ {
		recs := GenerateRecommendations(perf, storage, alerts, DefaultThresholds, AllRules)
		require.Len(t, recs, 3)
		assert.Equal(t, "uptime-1", recs[0].ID)
		assert.Equal(t, "storage-1", recs[1].ID)
		assert.Equal(t, models.PriorityMedium, recs[1].Priority)
		assert.Equal(t, "security-1", recs[2].ID)
	}
}

func TestGenerateRecommendations_Guards(t *testing.T) {
	healthy := models.PerformanceSnapshot{Uptime: 99}

	recs := GenerateRecommendations(healthy, models.StorageStats{UsedGB: 10, TotalGB: 0}, nil, DefaultThresholds, AllRules)
	assert.Empty(t, recs)

	recs = GenerateRecommendations(healthy, models.StorageStats{UsedGB: 800, TotalGB: 1000}, nil, DefaultThresholds, AllRules)
	assert.Empty(t, recs, "a ratio equal to the threshold does not fire")

	recs = GenerateRecommendations(models.PerformanceSnapshot{Uptime: 0}, models.StorageStats{}, nil, DefaultThresholds, RuleStorage)
	assert.Empty(t, recs, "disabled rule must not fire")
}

func TestDetectAnomalies_SingleSpike(t *testing.T) {
	hours := HourlyBuckets(nil, time.UTC)
	hours[3].Count = 10
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	anomalies := DetectAnomalies(hours, DefaultAnomalyFactor, DefaultAnomalyCap, at)

	require.Len(t, anomalies, 1)
	assert.Equal(t, "anomaly-3", anomalies[0].ID)
	assert.Equal(t, models.SeverityMedium, anomalies[0].Severity)
	assert.Equal(t, at, anomalies[0].DetectedAt)
	assert.Equal(t, "Unusual activity detected at hour 3: 10 events (average: 0.4)", anomalies[0].Description)
}

func TestDetectAnomalies_CapAndThreshold(t *testing.T) {
	hours := HourlyBuckets(nil, time.UTC)
	for _, h := range []int{1, 4, 6, 9, 12, 15, 20} {
		hours[h].Count = 50
	}
	total := 50 * 7
	threshold := float64(total) / 24 * DefaultAnomalyFactor

	anomalies := DetectAnomalies(hours, DefaultAnomalyFactor, DefaultAnomalyCap, time.Time{})

	require.Len(t, anomalies, 5)
	ids := make([]string, 0, len(anomalies))
	for _, a := range anomalies {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"anomaly-1", "anomaly-4", "anomaly-6", "anomaly-9", "anomaly-12"}, ids)
	assert.Greater(t, 50.0, threshold)
}

func TestDetectAnomalies_NoEvents(t *testing.T) {
	assert.Empty(t, DetectAnomalies(HourlyBuckets(nil, time.UTC), DefaultAnomalyFactor, DefaultAnomalyCap, time.Time{}))
}

func TestDetectAnomalies_UniformLoad(t *testing.T) {
	hours := HourlyBuckets(nil, time.UTC)
	for i := range hours {
		hours[i].Count = 7
	}
	assert.Empty(t, DetectAnomalies(hours, DefaultAnomalyFactor, DefaultAnomalyCap, time.Time{}))
}

func TestDetectAnomalies_SingleEventInQuietRange(t *testing.T) {
	hours := HourlyBuckets(nil, time.UTC)
	hours[17].Count = 1

	anomalies := DetectAnomalies(hours, DefaultAnomalyFactor, DefaultAnomalyCap, time.Time{})

	require.Len(t, anomalies, 1)
	assert.Equal(t, "anomaly-17", anomalies[0].ID)
	assert.Equal(t, "Unusual activity detected at hour 17: 1 events (average: 0.0)", anomalies[0].Description)
}

package analytics

import "analytics-engine/internal/models"

// Summarize computes device availability. It reads only the device snapshot;
// latency and storage fields are left for the caller to fill.
func Summarize(devices []models.Device) models.PerformanceSnapshot {
	online := 0
	for _, d := range devices {
		if d.IsActive {
			online++
		}
	}
	total := len(devices)

	return models.PerformanceSnapshot{
		CamerasOnline:  online,
		CamerasOffline: total - online,
		TotalCameras:   total,
		Uptime:         percentage(online, total),
	}
}

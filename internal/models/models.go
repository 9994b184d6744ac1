package models

import "time"

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Metric is the report dimension requested by the caller.
type Metric string

const (
	MetricEvents      Metric = "events"
	MetricAlerts      Metric = "alerts"
	MetricPerformance Metric = "performance"
	MetricSecurity    Metric = "security"
)

func ParseMetric(s string) (Metric, bool) {
	switch m := Metric(s); m {
	case MetricEvents, MetricAlerts, MetricPerformance, MetricSecurity:
		return m, true
	case "":
		return MetricEvents, true
	}
	return "", false
}

type Event struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	CameraID  string    `json:"camera_id"`
	EventType string    `json:"event_type"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

type Alert struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Title     string    `json:"title"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

type Device struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	IsActive bool   `json:"is_active"`
}

// Dataset is one tenant's records for a single time range.
type Dataset struct {
	Events  []Event
	Alerts  []Alert
	Devices []Device
}

type StorageStats struct {
	UsedGB  float64 `json:"used_gb"`
	TotalGB float64 `json:"total_gb"`
}

type DayBucket struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type HourBucket struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

type CategoryBucket struct {
	Type       string  `json:"type"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type SeverityBucket struct {
	Severity string `json:"severity"`
	Count    int    `json:"count"`
	Color    string `json:"color"`
}

type PerformanceSnapshot struct {
	CamerasOnline  int     `json:"camerasOnline"`
	CamerasOffline int     `json:"camerasOffline"`
	TotalCameras   int     `json:"totalCameras"`
	Uptime         float64 `json:"uptime"`
	AverageLatency float64 `json:"averageLatency"`
	StorageUsed    float64 `json:"storageUsed"`
	StorageTotal   float64 `json:"storageTotal"`
}

type TopAlert struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Count    int      `json:"count"`
	Severity Severity `json:"severity"`
}

type Recommendation struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

type Anomaly struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	DetectedAt  time.Time `json:"timestamp"`
}

type Summary struct {
	TotalEvents         int     `json:"totalEvents"`
	TotalAlerts         int     `json:"totalAlerts"`
	TotalCameras        int     `json:"totalCameras"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	SystemUptime        float64 `json:"systemUptime"`
}

type Trends struct {
	EventsByDay      []DayBucket      `json:"eventsByDay"`
	EventsByHour     []HourBucket     `json:"eventsByHour"`
	EventsByType     []CategoryBucket `json:"eventsByType"`
	EventsBySeverity []SeverityBucket `json:"eventsBySeverity"`
}

type Insights struct {
	TopAlerts       []TopAlert       `json:"topAlerts"`
	Recommendations []Recommendation `json:"recommendations"`
	Anomalies       []Anomaly        `json:"anomalies"`
}

type ReportMeta struct {
	TenantID string    `json:"tenantId"`
	Metric   Metric    `json:"metric"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
}

type Report struct {
	Meta        ReportMeta          `json:"meta"`
	Summary     Summary             `json:"summary"`
	Trends      Trends              `json:"trends"`
	Performance PerformanceSnapshot `json:"performance"`
	Insights    Insights            `json:"insights"`
}

// ArchivedReport is a report kept in the per-tenant history.
type ArchivedReport struct {
	ID        string    `json:"id"`
	RequestID string    `json:"requestId"`
	BuiltAt   time.Time `json:"builtAt"`
	Report    Report    `json:"report"`
}

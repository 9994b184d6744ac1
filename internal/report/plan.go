package report

import (
	"analytics-engine/internal/analytics"
	"analytics-engine/internal/models"
)

type trendSource int

const (
	trendsNone trendSource = iota
	trendsFromEvents
	trendsFromAlerts
)

// plan is the aggregation run for one metric dimension. Summary and
// performance are always computed from the full dataset.
type plan struct {
	trends     trendSource
	severeOnly bool
	topAlerts  bool
	anomalies  bool
	rules      analytics.RuleSet
}

var plans = map[models.Metric]plan{
	models.MetricEvents: {
		trends:    trendsFromEvents,
		topAlerts: true,
		anomalies: true,
		rules:     analytics.AllRules,
	},
	models.MetricAlerts: {
		trends:    trendsFromAlerts,
		topAlerts: true,
		anomalies: true,
		rules:     analytics.RuleCriticalAlerts,
	},
	models.MetricPerformance: {
		trends: trendsNone,
		rules:  analytics.RuleUptime | analytics.RuleStorage,
	},
	models.MetricSecurity: {
		trends:     trendsFromEvents,
		severeOnly: true,
		topAlerts:  true,
		anomalies:  true,
		rules:      analytics.RuleCriticalAlerts,
	},
}

func isSevere(s models.Severity) bool {
	return s == models.SeverityHigh || s == models.SeverityCritical
}

// scope narrows the dataset for plans that only look at HIGH and CRITICAL
// records. The input is not modified.
func (p plan) scope(ds models.Dataset) models.Dataset {
	if !p.severeOnly {
		return ds
	}
	out := models.Dataset{
		Events:  make([]models.Event, 0, len(ds.Events)),
		Alerts:  make([]models.Alert, 0, len(ds.Alerts)),
		Devices: ds.Devices,
	}
	for _, e := range ds.Events {
		if isSevere(e.Severity) {
			out.Events = append(out.Events, e)
		}
	}
	for _, a := range ds.Alerts {
		if isSevere(a.Severity) {
			out.Alerts = append(out.Alerts, a)
		}
	}
	return out
}

package analytics

import (
	"math"

	"analytics-engine/internal/models"
)

var severityColors = map[models.Severity]string{
	models.SeverityLow:      "#10b981",
	models.SeverityMedium:   "#f59e0b",
	models.SeverityHigh:     "#ef4444",
	models.SeverityCritical: "#dc2626",
}

const unknownSeverityColor = "#6b7280"

func SeverityColor(s models.Severity) string {
	if c, ok := severityColors[s]; ok {
		return c
	}
	return unknownSeverityColor
}

type counter struct {
	order  []string
	counts map[string]int
}

func countBy[T any](records []T, label func(T) string) counter {
	c := counter{counts: make(map[string]int)}
	for _, r := range records {
		key := label(r)
		if _, seen := c.counts[key]; !seen {
			c.order = append(c.order, key)
		}
		c.counts[key]++
	}
	return c
}

// ByCategory groups records by label in order of first occurrence.
// Percentages are relative to len(records) and rounded to two decimals.
func ByCategory[T any](records []T, label func(T) string) []models.CategoryBucket {
	c := countBy(records, label)
	total := len(records)

	buckets := make([]models.CategoryBucket, 0, len(c.order))
	for _, key := range c.order {
		buckets = append(buckets, models.CategoryBucket{
			Type:       key,
			Count:      c.counts[key],
			Percentage: percentage(c.counts[key], total),
		})
	}
	return buckets
}

// BySeverity groups records by severity in order of first occurrence and
// attaches the display color for each level.
func BySeverity[T any](records []T, severity func(T) models.Severity) []models.SeverityBucket {
	c := countBy(records, func(r T) string { return string(severity(r)) })

	buckets := make([]models.SeverityBucket, 0, len(c.order))
	for _, key := range c.order {
		buckets = append(buckets, models.SeverityBucket{
			Severity: key,
			Count:    c.counts[key],
			Color:    SeverityColor(models.Severity(key)),
		})
	}
	return buckets
}

func EventType(e models.Event) string            { return e.EventType }
func EventSeverity(e models.Event) models.Severity { return e.Severity }
func AlertTitle(a models.Alert) string            { return a.Title }
func AlertSeverity(a models.Alert) models.Severity { return a.Severity }

func percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

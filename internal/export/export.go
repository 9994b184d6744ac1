package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"analytics-engine/internal/models"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

var ErrUnsupportedFormat = errors.New("invalid format, supported formats: CSV, JSON, XLSX")

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	}
	return "", ErrUnsupportedFormat
}

func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}

// Filename is the attachment name for an export produced at t.
func (f Format) Filename(t time.Time) string {
	return fmt.Sprintf("analytics_export_%s.%s", t.UTC().Format("2006-01-02"), f)
}

type Meta struct {
	From       time.Time
	To         time.Time
	ExportedAt time.Time
}

func Write(w io.Writer, f Format, ds models.Dataset, meta Meta) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, ds)
	case FormatJSON:
		return writeJSON(w, ds, meta)
	case FormatXLSX:
		return writeXLSX(w, ds)
	}
	return ErrUnsupportedFormat
}

var csvHeader = []string{"Type", "ID", "Timestamp", "Category", "Severity", "Camera", "Status"}

func writeCSV(w io.Writer, ds models.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range rows(ds) {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func rows(ds models.Dataset) [][]string {
	out := make([][]string, 0, len(ds.Events)+len(ds.Alerts)+len(ds.Devices))
	for _, e := range ds.Events {
		out = append(out, []string{"Event", e.ID, e.Timestamp.UTC().Format(time.RFC3339), e.EventType, string(e.Severity), e.CameraID, ""})
	}
	for _, a := range ds.Alerts {
		out = append(out, []string{"Alert", a.ID, a.CreatedAt.UTC().Format(time.RFC3339), a.Title, string(a.Severity), "", ""})
	}
	for _, d := range ds.Devices {
		out = append(out, []string{"Camera", d.ID, "", "Camera Info", "INFO", d.ID, deviceStatus(d)})
	}
	return out
}

func deviceStatus(d models.Device) string {
	if d.IsActive {
		return "Active"
	}
	return "Inactive"
}

type jsonExport struct {
	ExportDate time.Time `json:"exportDate"`
	DateRange  struct {
		From time.Time `json:"from"`
		To   time.Time `json:"to"`
	} `json:"dateRange"`
	Summary struct {
		TotalEvents  int `json:"totalEvents"`
		TotalAlerts  int `json:"totalAlerts"`
		TotalCameras int `json:"totalCameras"`
	} `json:"summary"`
	Data struct {
		Events  []models.Event  `json:"events"`
		Alerts  []models.Alert  `json:"alerts"`
		Cameras []models.Device `json:"cameras"`
	} `json:"data"`
}

func writeJSON(w io.Writer, ds models.Dataset, meta Meta) error {
	var doc jsonExport
	doc.ExportDate = meta.ExportedAt.UTC()
	doc.DateRange.From = meta.From
	doc.DateRange.To = meta.To
	doc.Summary.TotalEvents = len(ds.Events)
	doc.Summary.TotalAlerts = len(ds.Alerts)
	doc.Summary.TotalCameras = len(ds.Devices)
	doc.Data.Events = nonNil(ds.Events)
	doc.Data.Alerts = nonNil(ds.Alerts)
	doc.Data.Cameras = nonNil(ds.Devices)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode json export: %w", err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

type sheet struct {
	name   string
	header []string
	rows   [][]any
}

func sheets(ds models.Dataset) []sheet {
	events := sheet{name: "Events", header: []string{"ID", "Timestamp", "Event Type", "Severity", "Camera"}}
	for _, e := range ds.Events {
		events.rows = append(events.rows, []any{e.ID, e.Timestamp.UTC().Format(time.RFC3339), e.EventType, string(e.Severity), e.CameraID})
	}
	alerts := sheet{name: "Alerts", header: []string{"ID", "Created At", "Title", "Severity"}}
	for _, a := range ds.Alerts {
		alerts.rows = append(alerts.rows, []any{a.ID, a.CreatedAt.UTC().Format(time.RFC3339), a.Title, string(a.Severity)})
	}
	cameras := sheet{name: "Cameras", header: []string{"ID", "Status"}}
	for _, d := range ds.Devices {
		cameras.rows = append(cameras.rows, []any{d.ID, deviceStatus(d)})
	}
	return []sheet{events, alerts, cameras}
}

func writeXLSX(w io.Writer, ds models.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, sh := range sheets(ds) {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sh.name, err)
		}

		header := make([]any, len(sh.header))
		for c, h := range sh.header {
			header[c] = h
		}
		if err := f.SetSheetRow(sh.name, "A1", &header); err != nil {
			return fmt.Errorf("failed to write %s header: %w", sh.name, err)
		}
		last, err := excelize.CoordinatesToCellName(len(sh.header), 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellStyle(sh.name, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}

		for r, row := range sh.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
				return fmt.Errorf("failed to write %s row %d: %w", sh.name, r+2, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

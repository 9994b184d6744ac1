package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"analytics-engine/internal/analytics"
	"analytics-engine/internal/export"
	"analytics-engine/internal/report"

	"go.uber.org/zap"
)

// statusClientClosed is the non-standard code logged when the caller hangs up.
const statusClientClosed = 499

const retryAfterSeconds = 5

// parseRange resolves the from/to query values. Missing values default to
// [now-defaultRange, now). Both RFC3339 timestamps and plain dates are accepted.
func parseRange(fromRaw, toRaw string, now time.Time, defaultRange time.Duration) (time.Time, time.Time, error) {
	to := now
	if toRaw != "" {
		t, err := parseTime(toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, rangeError("to must be RFC3339 or YYYY-MM-DD")
		}
		to = t
	}

	from := to.Add(-defaultRange)
	if fromRaw != "" {
		t, err := parseTime(fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, rangeError("from must be RFC3339 or YYYY-MM-DD")
		}
		from = t
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %w", report.ErrInvalidRange,
			&analytics.InvalidRangeError{Start: from, End: to, Reason: "to must not be before from"})
	}
	return from, to, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func rangeError(reason string) error {
	return fmt.Errorf("%w: %w", report.ErrInvalidRange, &analytics.InvalidRangeError{Reason: reason})
}

// writeError maps a report error onto a status code and JSON body. Internal
// causes are logged and never echoed to the caller.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rangeErr *analytics.InvalidRangeError

	switch {
	case errors.Is(err, report.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
	case errors.Is(err, report.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Tenant not found"})
	case errors.As(err, &rangeErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: rangeErr.Error()})
	case errors.Is(err, report.ErrInvalidRange), errors.Is(err, report.ErrUnknownMetric):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, report.ErrTimeout):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Analytics data source timed out"})
	case errors.Is(err, context.Canceled):
		w.WriteHeader(statusClientClosed)
	default:
		s.logger.Error("failed to fetch analytics data",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to fetch analytics data"})
	}
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	now := s.opts.Now()
	from, to, err := parseRange(q.Get("from"), q.Get("to"), now, s.opts.DefaultRange)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ds, err := s.reports.Dataset(r.Context(), r.Header.Get(headerTenantID), from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, ds, export.Meta{From: from, To: to, ExportedAt: now}); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: export: %w", report.ErrInternal, err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(now)))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("failed to write export", zap.Error(err))
	}
}

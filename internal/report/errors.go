package report

import (
	"context"
	"errors"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("tenant not found")
	ErrInvalidRange  = errors.New("invalid range")
	ErrUnknownMetric = errors.New("unknown metric")
	ErrTimeout       = errors.New("data fetch timed out")
	ErrInternal      = errors.New("internal error")
)

// Kind names the category of err for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, ErrUnknownMetric):
		return "unknown_metric"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

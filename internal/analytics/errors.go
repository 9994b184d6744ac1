package analytics

import (
	"fmt"
	"time"
)

// InvalidRangeError reports a time range the engine cannot bucket.
type InvalidRangeError struct {
	Start  time.Time
	End    time.Time
	Reason string
}

func (e *InvalidRangeError) Error() string {
	if e.Start.IsZero() && e.End.IsZero() {
		return fmt.Sprintf("invalid range: %s", e.Reason)
	}
	return fmt.Sprintf("invalid range [%s, %s]: %s",
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.Reason)
}

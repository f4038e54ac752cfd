package order

import (
	"fmt"
	"time"
)

// Period is the sequence key of t, e.g. "202610".
func Period(t time.Time) string {
	return t.UTC().Format("200601")
}

// FormatNumber renders a human-readable order number, POD-202610-0042.
func FormatNumber(period string, seq int) string {
	return fmt.Sprintf("POD-%s-%04d", period, seq)
}

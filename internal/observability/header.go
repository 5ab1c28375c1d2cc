package observability

import (
	"fmt"
	"net/http"
)

// AppendServerTiming adds one metric entry to the Server-Timing header.
// Zero-duration entries without a description are dropped rather than
// emitted as bare names.
func AppendServerTiming(w http.ResponseWriter, name string, durMs float64, desc string) {
	switch {
	case durMs > 0 && desc != "":
		w.Header().Add("Server-Timing", fmt.Sprintf("%s;dur=%.2f;desc=%q", name, durMs, desc))
	case durMs > 0:
		w.Header().Add("Server-Timing", fmt.Sprintf("%s;dur=%.2f", name, durMs))
	case desc != "":
		w.Header().Add("Server-Timing", fmt.Sprintf("%s;desc=%q", name, desc))
	}
}

// SetIfPos sets a millisecond timing header, leaving it absent when the
// measurement is not positive.
func SetIfPos(w http.ResponseWriter, key string, ms float64) {
	if ms > 0 {
		w.Header().Set(key, fmt.Sprintf("%.2f", ms))
	}
}

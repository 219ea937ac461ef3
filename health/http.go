package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// SnapshotResponse is the JSON shape served by Handler.
type SnapshotResponse struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// Handler returns an HTTP handler serving the monitor's latest snapshot.
// It never issues a probe of its own; it only reports the last record,
// so it stays cheap under any request volume.
func Handler(m *Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := m.Snapshot()
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(SnapshotResponse{Status: "unknown"})
			return
		}

		resp := SnapshotResponse{
			Status:    rec.Status.String(),
			LatencyMS: rec.Latency.Milliseconds(),
			Timestamp: rec.Timestamp.UTC().Format(time.RFC3339),
		}
		if rec.Err != nil {
			resp.Error = rec.Err.Error()
		}

		w.Header().Set("Content-Type", "application/json")
		if rec.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Package health serves the /healthz report for the hookline binaries.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger is the slice of the pgx pool the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is the /healthz response body. Checks maps a dependency name to "ok"
// or a short failure description.
type Status struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Dependency checks get a short deadline so a wedged database cannot hang the
// health endpoint past a probe timeout.
const checkTimeout = time.Second

// HTTPHandler reports process liveness and database reachability. A nil db
// skips the database check.
func HTTPHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := Status{Status: "ok"}
		code := http.StatusOK

		if db != nil {
			st.Checks = map[string]string{"database": "ok"}
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				st.Status = "degraded"
				st.Checks["database"] = "ping failed"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(st)
	}
}

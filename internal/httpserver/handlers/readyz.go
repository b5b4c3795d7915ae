package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/qrlink/internal/audit"
	"github.com/MrSnakeDoc/qrlink/internal/httpserver/deps"
)

const readyzTimeout = 2 * time.Second

type componentStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Components map[string]componentStatus `json:"components"`
	Audit      *audit.Counters            `json:"audit,omitempty"`
}

// Readyz reports 503 when the store or the cache does not answer.
// Audit counters are informational and never fail readiness.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyzTimeout)
		defer cancel()

		components := map[string]componentStatus{
			"store": check(ctx, d.Store),
			"cache": check(ctx, d.Cache),
		}

		resp := readyzResponse{Ready: true, Components: components}
		for _, c := range components {
			if !c.OK {
				resp.Ready = false
			}
		}
		if d.Audit != nil {
			c := d.Audit.Counters()
			resp.Audit = &c
		}

		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

func check(ctx context.Context, p deps.Pinger) componentStatus {
	if p == nil {
		return componentStatus{OK: false, Error: "not configured"}
	}
	if err := p.Ping(ctx); err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	return componentStatus{OK: true}
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
	"github.com/MrSnakeDoc/qrlink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/qrlink/internal/logger"
	"github.com/MrSnakeDoc/qrlink/internal/utils"
)

// Redirect answers a scan with a 302 to the current target. Every attempt is
// audited; unknown and inactive ids get the same 404.
func Redirect(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qrID := strings.TrimSpace(r.URL.Query().Get("qr_id"))
		if qrID == "" {
			badRequest(w, "qr_id is required")
			return
		}

		res, err := d.Resolver.Resolve(r.Context(), qrID)
		ip := utils.ClientIP(r, d.TrustProxy)

		if err != nil {
			d.Audit.Record(qrID, ip, r.UserAgent(), nil)
			if !errors.Is(err, domain.ErrNotFound) {
				writeError(w, r, d.Logger, err)
				return
			}
			d.Logger.Debug("redirect miss", logger.String("qr_id", qrID))
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
			return
		}

		target := res.TargetURL
		d.Audit.Record(res.QrID, ip, r.UserAgent(), &target)

		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// Info returns the resolution of an active qrId without redirecting or auditing.
func Info(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qrID := strings.TrimSpace(r.URL.Query().Get("qr_id"))
		if qrID == "" {
			badRequest(w, "qr_id is required")
			return
		}

		res, err := d.Resolver.Resolve(r.Context(), qrID)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

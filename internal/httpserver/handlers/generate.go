package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/qrlink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/qrlink/internal/logger"
	"github.com/MrSnakeDoc/qrlink/internal/management"
)

type generateRequest struct {
	TargetURL     string `json:"targetUrl"`
	Description   string `json:"description"`
	Prefix        string `json:"prefix"`
	ApplicationID *int64 `json:"applicationId"`
	CreatedBy     string `json:"createdBy"`
}

type generateResponse struct {
	ID          int64     `json:"id"`
	QrID        string    `json:"qrId"`
	TargetURL   string    `json:"targetUrl"`
	RedirectURL string    `json:"redirectUrl"`
	ImageURL    string    `json:"imageUrl"`
	DownloadURL string    `json:"downloadUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Generate issues a new qrId for a target URL.
func Generate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		m, err := d.Management.Create(r.Context(), management.CreateRequest{
			TargetURL:     req.TargetURL,
			Description:   req.Description,
			Prefix:        req.Prefix,
			CreatedBy:     req.CreatedBy,
			ApplicationID: req.ApplicationID,
		})
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}

		d.Logger.Info("qr code generated",
			logger.String("qr_id", m.QrID),
			logger.String("created_by", m.CreatedBy))

		l := linksFor(d.BaseURL, m.QrID)
		w.Header().Set("Location", l.Image)
		writeJSON(w, http.StatusCreated, generateResponse{
			ID:          m.ID,
			QrID:        m.QrID,
			TargetURL:   m.TargetURL,
			RedirectURL: l.Redirect,
			ImageURL:    l.Image,
			DownloadURL: l.Download,
			CreatedAt:   m.CreatedAt,
		})
	}
}

type deactivateQrResponse struct {
	QrID        string `json:"qrId"`
	Deactivated bool   `json:"deactivated"`
}

// DeactivateQr soft-deletes by public identifier. Repeating it is harmless.
func DeactivateQr(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qrID := chi.URLParam(r, "qrId")

		changed, err := d.Management.DeactivateByQrID(r.Context(), qrID)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, deactivateQrResponse{QrID: qrID, Deactivated: changed})
	}
}

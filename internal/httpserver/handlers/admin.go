package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
	"github.com/MrSnakeDoc/qrlink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/qrlink/internal/logger"
)

// AdminList pages through mappings.
func AdminList(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, ok := searchQueryFrom(w, r)
		if !ok {
			return
		}
		q.Text = ""
		q.CreatedBy = ""
		respondPage(w, r, d, q)
	}
}

// AdminSearch matches q against qrId and description, optionally filtered by creator.
func AdminSearch(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, ok := searchQueryFrom(w, r)
		if !ok {
			return
		}
		respondPage(w, r, d, q)
	}
}

func respondPage(w http.ResponseWriter, r *http.Request, d deps.Deps, q domain.SearchQuery) {
	page, err := d.Management.Search(r.Context(), q)
	if err != nil {
		writeError(w, r, d.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(d.BaseURL, page))
}

func searchQueryFrom(w http.ResponseWriter, r *http.Request) (domain.SearchQuery, bool) {
	page, ok := queryInt(r, "page", 0)
	if !ok {
		badRequest(w, "page must be an integer")
		return domain.SearchQuery{}, false
	}
	size, ok := queryInt(r, "size", domain.DefaultPageSize)
	if !ok {
		badRequest(w, "size must be an integer")
		return domain.SearchQuery{}, false
	}

	v := r.URL.Query()
	return domain.SearchQuery{
		Text:            strings.TrimSpace(v.Get("q")),
		CreatedBy:       strings.TrimSpace(v.Get("createdBy")),
		IncludeInactive: queryBool(r, "includeInactive"),
		Page:            page,
		Size:            size,
		SortBy:          v.Get("sort"),
		SortDesc:        !strings.EqualFold(v.Get("dir"), "asc"),
	}, true
}

// AdminRecent lists the newest active mappings.
func AdminRecent(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := queryInt(r, "limit", 10)
		if !ok {
			badRequest(w, "limit must be an integer")
			return
		}
		items, err := d.Management.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toMappingResponses(d.BaseURL, items))
	}
}

// AdminStats returns the global counters.
func AdminStats(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := d.Stats.Summary(r.Context())
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// AdminTop ranks qrIds by successful redirects.
func AdminTop(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, ok := queryInt(r, "n", 0)
		if !ok {
			badRequest(w, "n must be an integer")
			return
		}
		top, err := d.Stats.Top(r.Context(), n)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, top)
	}
}

// AdminGet returns a mapping by surrogate id, active or not.
func AdminGet(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		m, err := d.Management.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toMappingResponse(d.BaseURL, m))
	}
}

// AdminGetByQrID returns an active mapping by public identifier.
func AdminGetByQrID(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := d.Management.GetByQrID(r.Context(), chi.URLParam(r, "qrId"))
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toMappingResponse(d.BaseURL, m))
	}
}

type eventsResponse struct {
	QrID      string          `json:"qrId"`
	Redirects int64           `json:"redirects"`
	Events    []eventResponse `json:"events"`
}

// AdminEvents lists the latest audit records of a qrId with its successful redirect count.
func AdminEvents(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qrID := chi.URLParam(r, "qrId")
		limit, ok := queryInt(r, "limit", 0)
		if !ok {
			badRequest(w, "limit must be an integer")
			return
		}

		count, err := d.Stats.RedirectCount(r.Context(), qrID)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		events, err := d.Stats.RecentEvents(r.Context(), qrID, limit)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, eventsResponse{
			QrID:      qrID,
			Redirects: count,
			Events:    toEventResponses(events),
		})
	}
}

type updateRequest struct {
	TargetURL     *string `json:"targetUrl"`
	Description   *string `json:"description"`
	ApplicationID *int64  `json:"applicationId"`
	IsActive      *bool   `json:"isActive"`
}

// AdminUpdate applies a partial update. Inactive mappings answer 409 unless reactivated.
func AdminUpdate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req updateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		m, err := d.Management.Update(r.Context(), id, domain.MappingPatch{
			TargetURL:     req.TargetURL,
			Description:   req.Description,
			ApplicationID: req.ApplicationID,
			IsActive:      req.IsActive,
		})
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toMappingResponse(d.BaseURL, m))
	}
}

type statusChangeResponse struct {
	ID          int64 `json:"id"`
	Deactivated *bool `json:"deactivated,omitempty"`
	Reactivated *bool `json:"reactivated,omitempty"`
}

// AdminDelete soft-deletes by surrogate id.
func AdminDelete(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		changed, err := d.Management.Deactivate(r.Context(), id)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, statusChangeResponse{ID: id, Deactivated: &changed})
	}
}

// AdminReactivate undoes a soft delete.
func AdminReactivate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		changed, err := d.Management.Reactivate(r.Context(), id)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, statusChangeResponse{ID: id, Reactivated: &changed})
	}
}

// AdminWarmCache asks the background warmer for an immediate pass.
func AdminWarmCache(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.WarmTrigger == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "warmer_disabled"})
			return
		}
		select {
		case d.WarmTrigger <- struct{}{}:
			d.Logger.Info("manual cache warm triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, map[string]bool{"triggered": true})
		default:
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "warm_in_progress"})
		}
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

package handlers

import (
	"net/url"
	"time"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
)

type mappingResponse struct {
	ID            int64     `json:"id"`
	QrID          string    `json:"qrId"`
	TargetURL     string    `json:"targetUrl"`
	Description   string    `json:"description,omitempty"`
	ApplicationID *int64    `json:"applicationId,omitempty"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	IsActive      bool      `json:"isActive"`
	RedirectURL   string    `json:"redirectUrl"`
	ImageURL      string    `json:"imageUrl"`
	DownloadURL   string    `json:"downloadUrl"`
}

type pageResponse struct {
	Items       []mappingResponse `json:"items"`
	Page        int               `json:"page"`
	Size        int               `json:"size"`
	Total       int64             `json:"total"`
	TotalPages  int               `json:"totalPages"`
	HasNext     bool              `json:"hasNext"`
	HasPrevious bool              `json:"hasPrevious"`
}

type eventResponse struct {
	ID           int64     `json:"id"`
	QrID         string    `json:"qrId"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty"`
	TargetURL    *string   `json:"targetUrl,omitempty"`
	Success      bool      `json:"success"`
	RedirectTime time.Time `json:"redirectTime"`
}

// links builds the public URLs of qrID under baseURL.
type links struct {
	Redirect string
	Image    string
	Download string
}

func linksFor(baseURL, qrID string) links {
	esc := url.PathEscape(qrID)
	return links{
		Redirect: baseURL + "/redirect?qr_id=" + url.QueryEscape(qrID),
		Image:    baseURL + "/api/qr/" + esc + "/image",
		Download: baseURL + "/api/qr/" + esc + "/download",
	}
}

func toMappingResponse(baseURL string, m *domain.Mapping) mappingResponse {
	l := linksFor(baseURL, m.QrID)
	return mappingResponse{
		ID:            m.ID,
		QrID:          m.QrID,
		TargetURL:     m.TargetURL,
		Description:   m.Description,
		ApplicationID: m.ApplicationID,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		IsActive:      m.IsActive,
		RedirectURL:   l.Redirect,
		ImageURL:      l.Image,
		DownloadURL:   l.Download,
	}
}

func toMappingResponses(baseURL string, ms []*domain.Mapping) []mappingResponse {
	out := make([]mappingResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMappingResponse(baseURL, m))
	}
	return out
}

func toPageResponse(baseURL string, p *domain.Page) pageResponse {
	return pageResponse{
		Items:       toMappingResponses(baseURL, p.Items),
		Page:        p.Page,
		Size:        p.Size,
		Total:       p.Total,
		TotalPages:  p.TotalPages,
		HasNext:     p.HasNext,
		HasPrevious: p.HasPrevious,
	}
}

func toEventResponses(events []*domain.RedirectEvent) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			ID:           e.ID,
			QrID:         e.QrID,
			IPAddress:    e.IPAddress,
			UserAgent:    e.UserAgent,
			TargetURL:    e.TargetURL,
			Success:      e.Success,
			RedirectTime: e.RedirectTime,
		})
	}
	return out
}

package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/qrlink/internal/domain"
	"github.com/MrSnakeDoc/qrlink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/qrlink/internal/qrimage"
)

const imageCacheControl = "public, max-age=3600"

// Image renders the code of an active qrId inline.
func Image(d deps.Deps) http.HandlerFunc {
	return serveImage(d, false)
}

// Download renders the code as an attachment named after the qrId.
func Download(d deps.Deps) http.HandlerFunc {
	return serveImage(d, true)
}

func serveImage(d deps.Deps, attachment bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qrID := chi.URLParam(r, "qrId")

		style, err := styleFromQuery(r)
		if err != nil {
			// An unknown id is reported before a malformed style.
			if _, rerr := d.Resolver.Resolve(r.Context(), qrID); rerr != nil {
				err = rerr
			}
			writeError(w, r, d.Logger, err)
			return
		}

		img, err := d.Images.Render(r.Context(), qrID, style)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}

		w.Header().Set("ETag", img.ETag)
		w.Header().Set("Cache-Control", imageCacheControl)
		if attachment {
			w.Header().Set("Content-Disposition",
				fmt.Sprintf(`attachment; filename="%s.%s"`, qrID, img.Extension))
		}

		if etagMatches(r.Header.Get("If-None-Match"), img.ETag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("Content-Type", img.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write(img.Data)
		}
	}
}

// styleFromQuery starts from the named preset and applies explicit overrides.
func styleFromQuery(r *http.Request) (qrimage.Style, error) {
	q := r.URL.Query()

	style := qrimage.Style{}
	if name := q.Get("preset"); name != "" {
		p, ok := qrimage.Preset(name)
		if !ok {
			return style, fmt.Errorf("%w: unknown preset %q", domain.ErrInvalidStyle, name)
		}
		style = p
	}

	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return style, fmt.Errorf("%w: size %q", domain.ErrInvalidStyle, v)
		}
		style.Size = n
	}
	if v := q.Get("margin"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return style, fmt.Errorf("%w: margin %q", domain.ErrInvalidStyle, v)
		}
		style.Margin = &n
	}
	if v := q.Get("format"); v != "" {
		style.Format = v
	}
	if v := q.Get("ec"); v != "" {
		style.ErrorCorrection = v
	}
	if v := q.Get("fg"); v != "" {
		style.Foreground = hexColor(v)
	}
	if v := q.Get("bg"); v != "" {
		style.Background = hexColor(v)
	}
	if v := q.Get("logo"); v != "" {
		style.Logo = v
	}
	return style, nil
}

// hexColor lets callers omit the '#', which is awkward in query strings.
func hexColor(v string) string {
	if strings.HasPrefix(v, "#") {
		return v
	}
	return "#" + v
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		c := strings.TrimSpace(candidate)
		if c == "*" || c == etag || strings.TrimPrefix(c, "W/") == etag {
			return true
		}
	}
	return false
}

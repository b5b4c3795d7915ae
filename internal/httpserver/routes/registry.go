package routes

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/qrlink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/qrlink/internal/logger"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type group struct {
	name string
	reg  Registrar
	mws  []Middleware
}

var groups []group

// Register adds a named route group, optionally wrapped in middlewares.
// Names must be unique; registering the same name twice panics.
func Register(name string, reg Registrar, mws ...Middleware) {
	for _, g := range groups {
		if g.name == name {
			panic("routes: group registered twice: " + name)
		}
	}
	groups = append(groups, group{name: name, reg: reg, mws: mws})
}

// Groups lists registered group names in mount order.
func Groups() []string {
	names := make([]string, 0, len(groups))
	for _, g := range ordered() {
		names = append(names, g.name)
	}
	return names
}

// RegisterAll mounts every group on r, sorted by name so the route table
// does not depend on file init order.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, g := range ordered() {
		sub := r
		if len(g.mws) > 0 {
			sub = r.With(g.mws...)
		}
		g.reg(sub, d)
		if d.Logger != nil {
			d.Logger.Debug("route group mounted", logger.String("group", g.name))
		}
	}
}

func ordered() []group {
	out := append([]group(nil), groups...)
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

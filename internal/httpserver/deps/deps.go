package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/qrlink/internal/audit"
	"github.com/MrSnakeDoc/qrlink/internal/cache"
	"github.com/MrSnakeDoc/qrlink/internal/logger"
	"github.com/MrSnakeDoc/qrlink/internal/management"
	"github.com/MrSnakeDoc/qrlink/internal/qrimage"
	"github.com/MrSnakeDoc/qrlink/internal/resolver"
	"github.com/MrSnakeDoc/qrlink/internal/stats"
)

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	TimeNow   func() time.Time // for testing, defaults to time.Now

	BaseURL         string   // public origin used to build redirect/image links
	AllowedHosts    []string // Host headers allowed on public routes
	AdminCIDRS      []string // networks allowed on /api/admin and /readyz
	TrustProxy      bool     // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateLimitBurst  int
	RateLimitPerMin int // 0 disables rate limiting

	Resolver   *resolver.Resolver
	Images     *qrimage.Encoder
	Audit      *audit.Logger
	Stats      *stats.Aggregator
	Management *management.Service
	Store      Pinger
	Cache      cache.Cache

	WarmTrigger chan struct{} // manual cache warm, nil when the warmer is disabled
}

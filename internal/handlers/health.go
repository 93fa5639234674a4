package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandler answers 200 when every dependency responds.
func HealthHandler(w http.ResponseWriter, r *http.Request, deps map[string]Pinger) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	out := healthResponse{Status: "ok"}
	status := http.StatusOK
	for name, p := range deps {
		if out.Checks == nil {
			out.Checks = make(map[string]string, len(deps))
		}
		if err := p.Ping(ctx); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("dependency", name).Msg("health check failed")
			out.Checks[name] = "unreachable"
			out.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		out.Checks[name] = "ok"
	}
	writeJSON(w, status, out)
}

type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

package httpapi

import (
	"context"
	"net/http"
)

// Pinger reports backend reachability. Implemented by *sql.DB (PingContext
// via an adapter) and cache.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to [Pinger].
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true
	for name, p := range map[string]Pinger{"database": a.db, "cache": a.cache} {
		if p == nil {
			continue
		}
		if err := p.Ping(r.Context()); err != nil {
			checks[name] = "unreachable"
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	status := http.StatusOK
	message := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		message = "degraded"
	}
	writeJSON(w, status, Envelope{Success: healthy, Message: message, Data: checks})
}

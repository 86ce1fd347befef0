// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/brewpass/brewpass/internal/http/helpers"
)

// Pinger is what readiness checks against; the store satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Controller struct {
	Store   Pinger
	Version string
}

// Live answers liveness: the process is up and serving.
func (c *Controller) Live(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": c.Version})
}

// Ready answers readiness: the datastore is reachable.
func (c *Controller) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if c.Store != nil {
		if err := c.Store.Ping(ctx); err != nil {
			helpers.WriteError(w, helpers.ErrStoreUnavailable.WithErr(err))
			return
		}
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

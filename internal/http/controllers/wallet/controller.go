// Package wallet implements the provider-facing pass protocol surface.
// One Controller instance serves one pass kind; the loyalty and gift-card
// surfaces are the same controller mounted twice with different sources.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brewpass/brewpass/internal/http/helpers"
	"github.com/brewpass/brewpass/internal/observability/logger"
	"github.com/brewpass/brewpass/internal/passkit"
	"github.com/brewpass/brewpass/internal/registry"
	"github.com/brewpass/brewpass/internal/store/core"
)

// Controller handles the wallet provider callbacks for one pass kind.
type Controller struct {
	PassTypeID string
	AuthSecret string
	Registry   *registry.Registry
	Source     Source
	Builder    *passkit.Builder
	Logs       core.WalletLogRepository
}

// Source resolves a serial number to the pass state it renders from.
// Unknown serials return core.ErrNotFound.
type Source interface {
	Snapshot(ctx context.Context, serial string) (passkit.Snapshot, error)
}

// Routes mounts the protocol endpoints on r. The provider drives these paths
// verbatim; they are not free to change shape.
func (c *Controller) Routes(r chi.Router) {
	r.Post("/v1/devices/{deviceID}/registrations/{passTypeID}/{serial}", c.Register)
	r.Delete("/v1/devices/{deviceID}/registrations/{passTypeID}/{serial}", c.Unregister)
	r.Get("/v1/devices/{deviceID}/registrations/{passTypeID}", c.ListSerials)
	r.Get("/v1/passes/{passTypeID}/{serial}", c.FetchPass)
	r.Post("/v1/log", c.Log)
}

// authorized checks the bearer-style auth header against the per-serial
// derived token. The scheme word ("ApplePass") is not validated, only the
// token itself.
func (c *Controller) authorized(r *http.Request, serial string) bool {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return false
	}
	parts := strings.Fields(raw)
	token := parts[len(parts)-1]
	return passkit.VerifyAuthToken(c.AuthSecret, serial, token)
}

// pushTokenFrom accepts both body shapes providers send: a JSON envelope
// {"pushToken": "..."} or the bare token string.
func pushTokenFrom(r *http.Request) string {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		return ""
	}
	var envelope struct {
		PushToken string `json:"pushToken"`
	}
	if jsonErr := json.Unmarshal(body, &envelope); jsonErr == nil && envelope.PushToken != "" {
		return envelope.PushToken
	}
	return strings.Trim(strings.TrimSpace(string(body)), `"`)
}

// Register stores the device/pass association. A store failure is logged and
// still acknowledged: the provider treats anything but 201 as fatal for the
// installation, and losing one push is the cheaper failure.
func (c *Controller) Register(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")
	if !c.authorized(r, serial) {
		helpers.WriteError(w, helpers.ErrUnauthorized)
		return
	}
	deviceID := chi.URLParam(r, "deviceID")
	passTypeID := chi.URLParam(r, "passTypeID")

	c.Registry.Register(r.Context(), deviceID, passTypeID, serial, pushTokenFrom(r))
	w.WriteHeader(http.StatusCreated)
}

// Unregister drops the association. Internal delete errors are logged but
// still answered 200: the caller's view must stay idempotent.
func (c *Controller) Unregister(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")
	if !c.authorized(r, serial) {
		helpers.WriteError(w, helpers.ErrUnauthorized)
		return
	}
	deviceID := chi.URLParam(r, "deviceID")
	passTypeID := chi.URLParam(r, "passTypeID")

	if err := c.Registry.Unregister(r.Context(), deviceID, passTypeID, serial); err != nil {
		logger.From(r.Context()).Warn("unregister failed, acknowledging anyway",
			logger.DeviceID(deviceID), logger.Serial(serial), logger.Err(err))
	}
	w.WriteHeader(http.StatusOK)
}

// ListSerials returns the serials a device holds. Auth is best effort here:
// some providers omit the header on this call, so absence is tolerated.
// The wire shape is protocol-mandated: a JSON array of serials, or a bare
// empty object when the device holds nothing.
func (c *Controller) ListSerials(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	passTypeID := chi.URLParam(r, "passTypeID")

	serials, err := c.Registry.SerialsForDevice(r.Context(), deviceID, passTypeID, updatedSince(r))
	if err != nil {
		helpers.WriteError(w, helpers.ErrInternal.WithErr(err))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if len(serials) == 0 {
		_, _ = w.Write([]byte("{}"))
		return
	}
	_ = json.NewEncoder(w).Encode(serials)
}

// updatedSince parses the passesUpdatedSince query parameter, accepting both
// an RFC 3339 timestamp and a unix-seconds integer. Unparseable values are
// ignored rather than rejected.
func updatedSince(r *http.Request) *time.Time {
	raw := strings.TrimSpace(r.URL.Query().Get("passesUpdatedSince"))
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		ts := time.Unix(secs, 0).UTC()
		return &ts
	}
	return nil
}

// FetchPass rebuilds and returns the signed artifact, honoring conditional
// fetch: when the record is not strictly newer than If-Modified-Since, the
// provider's installed copy is already current.
func (c *Controller) FetchPass(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")
	if !c.authorized(r, serial) {
		helpers.WriteError(w, helpers.ErrUnauthorized)
		return
	}

	snap, err := c.Source.Snapshot(r.Context(), serial)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			helpers.WriteError(w, helpers.ErrNotFound)
			return
		}
		helpers.WriteError(w, helpers.ErrInternal.WithErr(err))
		return
	}

	// HTTP dates have second precision; compare at that granularity so a
	// same-second re-fetch does not flap between 200 and 304.
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if since, parseErr := http.ParseTime(ims); parseErr == nil {
			if !snap.UpdatedAt.Truncate(time.Second).After(since.Truncate(time.Second)) {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	artifact, err := c.Builder.Build(r.Context(), snap)
	if err != nil {
		if errors.Is(err, passkit.ErrSigningNotConfigured) {
			helpers.WriteError(w, helpers.ErrNotConfigured.WithDetail("pass signing credentials missing").WithErr(err))
			return
		}
		helpers.WriteError(w, helpers.ErrInternal.WithErr(err))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.pkpass")
	w.Header().Set("Last-Modified", snap.UpdatedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact)
}

// Log receives provider diagnostics. It always answers 200: this endpoint
// exists for passive visibility and must never trigger provider retries.
func (c *Controller) Log(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(io.LimitReader(r.Body, 64<<10))

	var payload struct {
		Logs []string `json:"logs"`
	}
	lines := []string{strings.TrimSpace(string(body))}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Logs) > 0 {
		lines = payload.Logs
	}
	for _, line := range lines {
		if line == "" {
			continue
		}
		logger.From(r.Context()).Warn("wallet provider log", logger.PassType(c.PassTypeID), logger.String("entry", line))
		if c.Logs != nil {
			if err := c.Logs.Append(r.Context(), line); err != nil {
				logger.From(r.Context()).Warn("wallet log not persisted", logger.Err(err))
			}
		}
	}
	w.WriteHeader(http.StatusOK)
}

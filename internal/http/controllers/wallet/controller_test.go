package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewpass/brewpass/internal/http/services/loyalty"
	"github.com/brewpass/brewpass/internal/passkit"
	"github.com/brewpass/brewpass/internal/registry"
	"github.com/brewpass/brewpass/internal/store/core"
	"github.com/brewpass/brewpass/internal/store/memory"
)

const (
	testSecret   = "test-secret"
	testPassType = "pass.com.example.loyalty"
)

type stubSigner struct{}

func (stubSigner) Sign(manifest []byte) ([]byte, error) { return []byte("sig"), nil }

func newFixture(t *testing.T) (*memory.Store, http.Handler) {
	t.Helper()
	st := memory.New()
	svc := loyalty.New(loyalty.Deps{Customers: st.Customers(), PassTypeID: testPassType})
	ctrl := &Controller{
		PassTypeID: testPassType,
		AuthSecret: testSecret,
		Registry:   registry.New(st.Registrations()),
		Source:     svc,
		Builder: passkit.NewBuilder(passkit.Issuer{
			TeamID:           "TEAM123456",
			OrganizationName: "Brewpass Coffee",
			Description:      "Coffee loyalty card",
			BaseURL:          "https://passes.example.com",
			AuthSecret:       testSecret,
		}, stubSigner{}, passkit.NewLibrary("", nil, nil, 0)),
		Logs: st.WalletLogs(),
	}
	r := chi.NewRouter()
	ctrl.Routes(r)
	return st, r
}

func seedCustomer(t *testing.T, st *memory.Store, serial string, balance int) {
	t.Helper()
	c := &core.Customer{SerialNumber: serial, DisplayName: "Ada"}
	require.NoError(t, st.Customers().Create(context.Background(), c))
	if balance > 0 {
		_, err := st.Customers().UpdateBalanceAndRedemptions(context.Background(), serial, balance, nil, nil)
		require.NoError(t, err)
	}
}

func authHeader(serial string) string {
	return "ApplePass " + passkit.AuthToken(testSecret, serial)
}

func do(h http.Handler, method, path, auth string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRegister(t *testing.T) {
	st, h := newFixture(t)
	seedCustomer(t, st, "serial-1", 0)
	path := "/v1/devices/dev-1/registrations/" + testPassType + "/serial-1"

	t.Run("rejects missing auth", func(t *testing.T) {
		rec := do(h, http.MethodPost, path, "", []byte(`{"pushToken":"tok"}`))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects wrong token", func(t *testing.T) {
		rec := do(h, http.MethodPost, path, "ApplePass nope", []byte(`{"pushToken":"tok"}`))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("accepts enveloped token", func(t *testing.T) {
		rec := do(h, http.MethodPost, path, authHeader("serial-1"), []byte(`{"pushToken":"tok-json"}`))
		require.Equal(t, http.StatusCreated, rec.Code)

		tokens, err := registry.New(st.Registrations()).PushTargets(context.Background(), "serial-1", testPassType)
		require.NoError(t, err)
		assert.Equal(t, []string{"tok-json"}, tokens)
	})

	t.Run("accepts bare token body", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/v1/devices/dev-2/registrations/"+testPassType+"/serial-1",
			authHeader("serial-1"), []byte("tok-raw"))
		require.Equal(t, http.StatusCreated, rec.Code)

		tokens, err := registry.New(st.Registrations()).PushTargets(context.Background(), "serial-1", testPassType)
		require.NoError(t, err)
		assert.Contains(t, tokens, "tok-raw")
	})

	t.Run("re-registration is an upsert", func(t *testing.T) {
		rec := do(h, http.MethodPost, path, authHeader("serial-1"), []byte(`{"pushToken":"tok-new"}`))
		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestUnregister(t *testing.T) {
	st, h := newFixture(t)
	seedCustomer(t, st, "serial-1", 0)
	path := "/v1/devices/dev-1/registrations/" + testPassType + "/serial-1"

	do(h, http.MethodPost, path, authHeader("serial-1"), []byte(`{"pushToken":"tok"}`))

	rec := do(h, http.MethodDelete, path, authHeader("serial-1"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// deleting again stays 200
	rec = do(h, http.MethodDelete, path, authHeader("serial-1"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodDelete, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListSerials(t *testing.T) {
	st, h := newFixture(t)
	seedCustomer(t, st, "serial-1", 0)
	seedCustomer(t, st, "serial-2", 0)
	listPath := "/v1/devices/dev-1/registrations/" + testPassType

	t.Run("empty is a bare object, no auth required", func(t *testing.T) {
		rec := do(h, http.MethodGet, listPath, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "{}", strings.TrimSpace(rec.Body.String()))
	})

	for _, serial := range []string{"serial-1", "serial-2"} {
		do(h, http.MethodPost, "/v1/devices/dev-1/registrations/"+testPassType+"/"+serial,
			authHeader(serial), []byte(`{"pushToken":"tok"}`))
	}

	t.Run("non-empty is a plain array", func(t *testing.T) {
		rec := do(h, http.MethodGet, listPath, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var serials []string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &serials))
		assert.ElementsMatch(t, []string{"serial-1", "serial-2"}, serials)
	})

	t.Run("passesUpdatedSince filters unchanged passes", func(t *testing.T) {
		future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
		rec := do(h, http.MethodGet, listPath+"?passesUpdatedSince="+future, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "{}", strings.TrimSpace(rec.Body.String()))
	})

	t.Run("garbage passesUpdatedSince is ignored", func(t *testing.T) {
		rec := do(h, http.MethodGet, listPath+"?passesUpdatedSince=banana", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var serials []string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &serials))
		assert.Len(t, serials, 2)
	})
}

func TestFetchPass(t *testing.T) {
	st, h := newFixture(t)
	seedCustomer(t, st, "serial-1", 12)
	path := "/v1/passes/" + testPassType + "/serial-1"

	t.Run("unauthorized", func(t *testing.T) {
		rec := do(h, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown serial", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/v1/passes/"+testPassType+"/ghost", authHeader("ghost"), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("fresh fetch returns the artifact", func(t *testing.T) {
		rec := do(h, http.MethodGet, path, authHeader("serial-1"), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/vnd.apple.pkpass", rec.Header().Get("Content-Type"))
		assert.NotEmpty(t, rec.Header().Get("Last-Modified"))
		assert.NotEmpty(t, rec.Body.Bytes())
	})

	t.Run("unchanged record yields 304", func(t *testing.T) {
		rec := do(h, http.MethodGet, path, authHeader("serial-1"), nil)
		lastMod := rec.Header().Get("Last-Modified")
		require.NotEmpty(t, lastMod)

		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", authHeader("serial-1"))
		req.Header.Set("If-Modified-Since", lastMod)
		rec2 := httptest.NewRecorder()
		h.ServeHTTP(rec2, req)
		assert.Equal(t, http.StatusNotModified, rec2.Code)
		assert.Empty(t, rec2.Body.Bytes())
	})

	t.Run("stale comparison timestamp yields 200", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", authHeader("serial-1"))
		req.Header.Set("If-Modified-Since", time.Now().Add(-24*time.Hour).UTC().Format(http.TimeFormat))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestFetchPass_SigningMissing(t *testing.T) {
	st := memory.New()
	seedCustomer(t, st, "serial-1", 0)
	svc := loyalty.New(loyalty.Deps{Customers: st.Customers(), PassTypeID: testPassType})
	ctrl := &Controller{
		PassTypeID: testPassType,
		AuthSecret: testSecret,
		Registry:   registry.New(st.Registrations()),
		Source:     svc,
		Builder:    passkit.NewBuilder(passkit.Issuer{AuthSecret: testSecret}, nil, passkit.NewLibrary("", nil, nil, 0)),
		Logs:       st.WalletLogs(),
	}
	r := chi.NewRouter()
	ctrl.Routes(r)

	rec := do(r, http.MethodGet, "/v1/passes/"+testPassType+"/serial-1", authHeader("serial-1"), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_configured")
}

func TestLog(t *testing.T) {
	st, h := newFixture(t)

	rec := do(h, http.MethodPost, "/v1/log", "", []byte(`{"logs":["pass render failed","retrying"]}`))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodPost, "/v1/log", "", []byte("plain text complaint"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodPost, "/v1/log", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	entries := st.Logs()
	require.Len(t, entries, 3)
	assert.Equal(t, "pass render failed", entries[0].Message)
	assert.Equal(t, "plain text complaint", entries[2].Message)
}

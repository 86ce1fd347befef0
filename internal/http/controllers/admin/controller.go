// Package admin exposes the operator API: customer and gift-card management,
// point mutations, and direct pass downloads for QA. Gated by the admin key
// middleware at the router.
package admin

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brewpass/brewpass/internal/http/controllers/wallet"
	"github.com/brewpass/brewpass/internal/http/helpers"
	"github.com/brewpass/brewpass/internal/http/services/giftcard"
	"github.com/brewpass/brewpass/internal/http/services/loyalty"
	"github.com/brewpass/brewpass/internal/passkit"
	"github.com/brewpass/brewpass/internal/rewards"
	"github.com/brewpass/brewpass/internal/store/core"
)

type Controller struct {
	Customers core.CustomerRepository
	Loyalty   *loyalty.Service
	GiftCards *giftcard.Service
	Builder   *passkit.Builder
}

func (c *Controller) Routes(r chi.Router) {
	r.Post("/customers", c.CreateCustomer)
	r.Get("/customers", c.ListCustomers)
	r.Get("/customers/{serial}", c.GetCustomer)
	r.Post("/customers/{serial}/purchase", c.RecordPurchase)
	r.Post("/customers/{serial}/redeem", c.Redeem)
	r.Get("/customers/{serial}/pass", c.DownloadPass(passkit.KindLoyalty))

	r.Post("/giftcards", c.CreateGiftCard)
	r.Get("/giftcards/{serial}", c.GetGiftCard)
	r.Post("/giftcards/{serial}/adjust", c.AdjustGiftCard)
	r.Get("/giftcards/{serial}/pass", c.DownloadPass(passkit.KindGiftCard))
}

// ─── Customers ───

type createCustomerRequest struct {
	SerialNumber string `json:"serial_number"`
	DisplayName  string `json:"display_name"`
}

func (c *Controller) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	serial := strings.TrimSpace(req.SerialNumber)
	if serial == "" {
		serial = uuid.NewString()
	}

	customer := &core.Customer{
		SerialNumber: serial,
		DisplayName:  strings.TrimSpace(req.DisplayName),
	}
	if err := c.Customers.Create(r.Context(), customer); err != nil {
		helpers.WriteError(w, helpers.FromDomain(err))
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, customer)
}

func (c *Controller) ListCustomers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	customers, err := c.Customers.List(r.Context(), limit, offset)
	if err != nil {
		helpers.WriteError(w, helpers.FromDomain(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"customers": customers,
		"limit":     limit,
		"offset":    offset,
	})
}

func (c *Controller) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := c.Customers.GetBySerial(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		helpers.WriteError(w, helpers.FromDomain(err))
		return
	}
	tiers := rewards.AvailableTiers(customer.PointsBalance, rewards.Redeemed{
		Coffees: customer.RedeemedCoffees,
		Meals:   customer.RedeemedMeals,
	})
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"customer":        customer,
		"available_tiers": tiers,
	})
}

func (c *Controller) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	res, err := c.Loyalty.RecordPurchase(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		helpers.WriteError(w, helpers.FromDomain(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"customer":   res.Customer,
		"evaluation": res.Evaluation,
	})
}

type redeemRequest struct {
	RewardType string `json:"reward_type"`
	Threshold  int    `json:"threshold"`
}

func (c *Controller) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	customer, err := c.Loyalty.Redeem(r.Context(), chi.URLParam(r, "serial"), req.RewardType, req.Threshold)
	if err != nil {
		helpers.WriteError(w, helpers.FromDomain(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

// ─── Gift cards ───

type createGiftCardRequest struct {
	DisplayName  string `json:"display_name"`
	InitialCents int    `json:"initial_cents"`
}

func (c *Controller) CreateGiftCard(w http.ResponseWriter, r *http.Request) {
	var req createGiftCardRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	card, err := c.GiftCards.Issue(r.Context(), strings.TrimSpace(req.DisplayName), req.InitialCents)
	if err != nil {
		helpers.WriteError(w, helpers.FromDomain(err))
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, card)
}

func (c *Controller) GetGiftCard(w http.ResponseWriter, r *http.Request) {
	card, err := c.GiftCards.Get(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		helpers.WriteError(w, helpers.FromDomain(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, card)
}

type adjustRequest struct {
	DeltaCents int `json:"delta_cents"`
}

func (c *Controller) AdjustGiftCard(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	card, err := c.GiftCards.Adjust(r.Context(), chi.URLParam(r, "serial"), req.DeltaCents)
	if err != nil {
		helpers.WriteError(w, helpers.FromDomain(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, card)
}

// ─── Pass downloads ───

// DownloadPass serves the signed artifact directly, bypassing the provider
// protocol. Useful for QA and for handing a pass to a customer by link.
func (c *Controller) DownloadPass(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serial := chi.URLParam(r, "serial")

		var source wallet.Source
		if kind == passkit.KindGiftCard {
			source = c.GiftCards
		} else {
			source = c.Loyalty
		}

		snap, err := source.Snapshot(r.Context(), serial)
		if err != nil {
			helpers.WriteError(w, helpers.FromDomain(err))
			return
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
		w.Header().Set("Content-Disposition", `attachment; filename="`+serial+`.pkpass"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(artifact)
	}
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parcrypto/starshop/pkg/models"
	"github.com/parcrypto/starshop/pkg/purchase"
)

// Purchaser is the slice of the purchase engine the HTTP layer depends on.
type Purchaser interface {
	PurchaseStars(ctx context.Context, buyer string, quantity, hideSender int) (*models.PurchaseOutcome, error)
	PurchaseGift(ctx context.Context, buyer string, months, hideSender int) (*models.PurchaseOutcome, error)
}

// Make sure the engine conforms to the interface.
var _ Purchaser = (*purchase.Engine)(nil)

// PurchaseHandler exposes the purchase engine over HTTP.
// It holds our application's dependencies.
type PurchaseHandler struct {
	Engine Purchaser
}

// NewPurchaseHandler creates a new PurchaseHandler with an engine dependency.
func NewPurchaseHandler(engine Purchaser) *PurchaseHandler {
	return &PurchaseHandler{Engine: engine}
}

// Register mounts the purchase routes on the given router.
func (h *PurchaseHandler) Register(r chi.Router) {
	r.Post("/buy", h.BuyStars)
	r.Post("/buy_premium", h.BuyPremium)
}

type buyStarsRequest struct {
	Login      string `json:"login"`
	Quantity   int    `json:"quantity"`
	HideSender int    `json:"hide_sender"`
}

type buyPremiumRequest struct {
	Login      string `json:"login"`
	Months     int    `json:"months"`
	HideSender int    `json:"hide_sender"`
}

// BuyStars handles the logic for a stars purchase.
func (h *PurchaseHandler) BuyStars(w http.ResponseWriter, r *http.Request) {
	// Decode the request body.
	var req buyStarsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	// Run the purchase. External failures come back inside the outcome;
	// an error here means the request itself was invalid.
	outcome, err := h.Engine.PurchaseStars(r.Context(), req.Login, req.Quantity, req.HideSender)
	if err != nil {
		if errors.Is(err, purchase.ErrInvalidBuyer) || errors.Is(err, purchase.ErrInvalidQuantity) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			http.Error(w, fmt.Sprintf("Failed to purchase stars: %v", err), http.StatusInternalServerError)
		}
		return
	}

	writeOutcome(w, outcome)
}

// BuyPremium handles the logic for a gift subscription purchase.
func (h *PurchaseHandler) BuyPremium(w http.ResponseWriter, r *http.Request) {
	// Decode the request body.
	var req buyPremiumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	outcome, err := h.Engine.PurchaseGift(r.Context(), req.Login, req.Months, req.HideSender)
	if err != nil {
		if errors.Is(err, purchase.ErrInvalidBuyer) || errors.Is(err, purchase.ErrInvalidMonths) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			http.Error(w, fmt.Sprintf("Failed to purchase premium: %v", err), http.StatusInternalServerError)
		}
		return
	}

	writeOutcome(w, outcome)
}

func writeOutcome(w http.ResponseWriter, outcome *models.PurchaseOutcome) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(outcome); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}

package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/cardbinder/internal/auth"
	"github.com/sakif/cardbinder/internal/service"
)

// CardHandler exposes card CRUD, the batch move operation, and the CSV
// export of the whole inventory.
type CardHandler struct {
	svc    *service.CardService
	export *service.ExportService
	logger *slog.Logger
}

func NewCardHandler(svc *service.CardService, export *service.ExportService, logger *slog.Logger) *CardHandler {
	return &CardHandler{svc: svc, export: export, logger: logger}
}

type cardRequest struct {
	CollectionID   string  `json:"collectionId"`
	Player         string  `json:"player"`
	Team           string  `json:"team"`
	Year           int     `json:"year"`
	Brand          string  `json:"brand"`
	Category       string  `json:"category"`
	CardNumber     string  `json:"cardNumber"`
	Parallel       string  `json:"parallel"`
	Condition      string  `json:"condition"`
	GradingCompany string  `json:"gradingCompany"`
	PurchasePrice  float64 `json:"purchasePrice"`
	PurchaseDate   string  `json:"purchaseDate"`
	CurrentValue   float64 `json:"currentValue"`
	SellPrice      float64 `json:"sellPrice"`
	SellDate       string  `json:"sellDate"`
	Notes          string  `json:"notes"`
}

func (req cardRequest) toInput() service.CardInput {
	return service.CardInput{
		CollectionID:   req.CollectionID,
		Player:         req.Player,
		Team:           req.Team,
		Year:           req.Year,
		Brand:          req.Brand,
		Category:       req.Category,
		CardNumber:     req.CardNumber,
		Parallel:       req.Parallel,
		Condition:      req.Condition,
		GradingCompany: req.GradingCompany,
		PurchasePrice:  req.PurchasePrice,
		PurchaseDate:   req.PurchaseDate,
		CurrentValue:   req.CurrentValue,
		SellPrice:      req.SellPrice,
		SellDate:       req.SellDate,
		Notes:          req.Notes,
	}
}

// HandleCreate adds a card. An empty collectionId lands the card in the
// default collection.
//
// HTTP: POST /api/cards
func (h *CardHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req cardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	card, err := h.svc.Create(r.Context(), userID, req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, card)
}

// HandleList returns all of the user's cards.
//
// HTTP: GET /api/cards
func (h *CardHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	cards, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cards)
}

// HandleGet returns one card by ID.
//
// HTTP: GET /api/cards/{id}
func (h *CardHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	card, err := h.svc.GetByID(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, card)
}

// HandleUpdate replaces a card's editable fields.
//
// HTTP: PUT /api/cards/{id}
func (h *CardHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req cardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	card, err := h.svc.Update(r.Context(), userID, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, card)
}

// HandleDelete removes a card.
//
// HTTP: DELETE /api/cards/{id}
func (h *CardHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type moveRequest struct {
	CardIDs            []string `json:"cardIds"`
	TargetCollectionID string   `json:"targetCollectionId"`
}

// HandleMove moves a batch of cards into another collection. The move is
// best effort per card: a bad target fails the whole request, but a card
// that is missing or someone else's just lands in the errors list while
// the rest proceed. The response always reports moved and failed counts.
//
// HTTP: POST /api/cards/move
func (h *CardHandler) HandleMove(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Move(r.Context(), userID, req.CardIDs, req.TargetCollectionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleExportCSV streams the full inventory as a CSV download.
//
// HTTP: GET /api/cards/export/csv
func (h *CardHandler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	data, err := h.export.CardsCSV(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	filename := fmt.Sprintf("cards-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

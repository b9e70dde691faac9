package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/cardbinder/internal/auth"
	"github.com/sakif/cardbinder/internal/model"
	"github.com/sakif/cardbinder/internal/service"
)

// CollectionHandler exposes collection CRUD plus the default-collection
// operations. Every route is behind RequireAuth; the userID always comes
// from the request context, never from the body, so one user can never
// act on another's collections.
type CollectionHandler struct {
	svc    *service.CollectionService
	logger *slog.Logger
}

func NewCollectionHandler(svc *service.CollectionService, logger *slog.Logger) *CollectionHandler {
	return &CollectionHandler{svc: svc, logger: logger}
}

type collectionRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Color       string   `json:"color"`
	Icon        string   `json:"icon"`
	Visibility  string   `json:"visibility"`
	Tags        []string `json:"tags"`
}

// HandleCreate creates a collection.
//
// HTTP: POST /api/collections
func (h *CollectionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req collectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	col, err := h.svc.Create(r.Context(), userID, service.CollectionInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
		Visibility:  model.Visibility(req.Visibility),
		Tags:        req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, col)
}

// HandleList returns all of the user's collections, oldest first.
//
// HTTP: GET /api/collections
func (h *CollectionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	cols, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cols)
}

// HandleGet returns one collection by ID.
//
// HTTP: GET /api/collections/{id}
func (h *CollectionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	col, err := h.svc.GetByID(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, col)
}

// HandleGetDefault returns the user's default collection, creating one if
// the account somehow has none.
//
// HTTP: GET /api/collections/default
func (h *CollectionHandler) HandleGetDefault(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	col, err := h.svc.EnsureDefault(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, col)
}

type collectionPatchRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Color       *string   `json:"color"`
	Icon        *string   `json:"icon"`
	Visibility  *string   `json:"visibility"`
	Tags        *[]string `json:"tags"`
	IsDefault   *bool     `json:"isDefault"`
}

// HandleUpdate applies a partial update. Absent fields are left alone;
// setting isDefault=true promotes the collection atomically, while
// isDefault=false is rejected (use the dedicated unset-default endpoint,
// which picks a replacement).
//
// HTTP: PATCH /api/collections/{id}
func (h *CollectionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req collectionPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	patch := model.CollectionPatch{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
		Tags:        req.Tags,
		IsDefault:   req.IsDefault,
	}
	if req.Visibility != nil {
		v := model.Visibility(*req.Visibility)
		patch.Visibility = &v
	}

	col, err := h.svc.Update(r.Context(), userID, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, col)
}

// HandleSetDefault makes the collection the user's default.
//
// HTTP: POST /api/collections/{id}/default
func (h *CollectionHandler) HandleSetDefault(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	col, err := h.svc.SetDefault(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, col)
}

// HandleUnsetDefault demotes the collection and promotes the oldest other
// one. Fails with 409 when it is the user's only collection.
//
// HTTP: DELETE /api/collections/{id}/default
func (h *CollectionHandler) HandleUnsetDefault(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	col, err := h.svc.UnsetDefault(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, col)
}

// HandleDelete removes an empty, non-default collection.
//
// HTTP: DELETE /api/collections/{id}
func (h *CollectionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

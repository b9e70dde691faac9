package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/cardbinder/internal/auth"
	"github.com/sakif/cardbinder/internal/service"
)

// SeedHandler exposes the starter-dataset import. The import normally
// runs automatically on first sign-in; these endpoints let the client
// check the state and re-trigger it, which stays safe because the
// service is idempotent per user and dataset version.
type SeedHandler struct {
	svc    *service.SeedService
	logger *slog.Logger
}

func NewSeedHandler(svc *service.SeedService, logger *slog.Logger) *SeedHandler {
	return &SeedHandler{svc: svc, logger: logger}
}

// HandleStatus reports whether an import would run for this user.
//
// HTTP: GET /api/seed
func (h *SeedHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	pending, err := h.svc.ShouldImport(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"pending": pending})
}

// HandleImport runs the starter import. Responds 200 with skipped=true
// when the user already has the current dataset.
//
// HTTP: POST /api/seed/import
func (h *SeedHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	result, err := h.svc.Import(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleReset clears the user's import marker so the next import runs
// again. Cards are left alone.
//
// HTTP: POST /api/seed/reset
func (h *SeedHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.svc.Reset(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/cardbinder/internal/apperror"
	"github.com/sakif/cardbinder/internal/auth"
	"github.com/sakif/cardbinder/internal/model"
	"github.com/sakif/cardbinder/internal/service"
)

// maxSnapshotBytes caps uploaded backup files. A collection big enough to
// exceed this is not something this app serves.
const maxSnapshotBytes = 32 << 20 // 32 MiB

// BackupHandler exposes snapshot export/import and the stored backup
// records. Validation of uploaded snapshots happens in the service; the
// handler's job is body plumbing and status codes.
type BackupHandler struct {
	svc    *service.BackupService
	logger *slog.Logger
}

func NewBackupHandler(svc *service.BackupService, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{svc: svc, logger: logger}
}

type createBackupRequest struct {
	Type string `json:"type"` // "auto" or "manual"; empty means manual
}

// HandleCreate snapshots the user's cards into a stored backup record.
// Creating an auto backup replaces any previous auto backup.
//
// HTTP: POST /api/backups
func (h *BackupHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req createBackupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Type == "" {
		req.Type = string(model.BackupManual)
	}

	rec, err := h.svc.Persist(r.Context(), userID, model.AppName, model.BackupType(req.Type))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// HandleList returns the user's backup records newest first, metadata
// only. The card payloads stay out of the listing; fetch a single backup
// to get its snapshot.
//
// HTTP: GET /api/backups
func (h *BackupHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	entries, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// HandleGet returns one backup record including its full snapshot.
//
// HTTP: GET /api/backups/{id}
func (h *BackupHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	rec, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// HandleDelete removes one stored backup.
//
// HTTP: DELETE /api/backups/{id}
func (h *BackupHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleClear deletes stored backups in bulk. ?type=auto clears only the
// automatic backup; anything else clears all of them.
//
// HTTP: DELETE /api/backups
func (h *BackupHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var (
		deleted int
		err     error
	)
	if r.URL.Query().Get("type") == string(model.BackupAuto) {
		deleted, err = h.svc.ClearAuto(r.Context(), userID)
	} else {
		deleted, err = h.svc.ClearAll(r.Context(), userID)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// HandleExport downloads the user's current cards as a snapshot file
// without storing a backup record.
//
// HTTP: GET /api/backups/export
func (h *BackupHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	snapshot, err := h.svc.Build(r.Context(), userID, model.AppName)
	if err != nil {
		writeError(w, err)
		return
	}

	filename := fmt.Sprintf("%s-backup-%s.json", model.AppName, time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	writeJSON(w, http.StatusOK, snapshot)
}

type restoreFromBackupRequest struct {
	ClearExisting  bool `json:"clearExisting"`
	SkipDuplicates bool `json:"skipDuplicates"`
}

// HandleRestore restores the user's cards from a stored backup record.
//
// HTTP: POST /api/backups/{id}/restore
func (h *BackupHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req restoreFromBackupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	rec, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	h.restore(w, r, userID, &rec.Snapshot, req.ClearExisting, req.SkipDuplicates)
}

// HandleImport validates an uploaded snapshot file and restores from it.
// Options arrive as query parameters since the body is the snapshot
// itself: ?clearExisting=true&skipDuplicates=true.
//
// HTTP: POST /api/backups/import
func (h *BackupHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxSnapshotBytes+1))
	if err != nil {
		writeError(w, apperror.ValidationFailed("body", "could not read request body"))
		return
	}
	if len(raw) > maxSnapshotBytes {
		writeError(w, apperror.ValidationFailed("body", "backup file is too large"))
		return
	}

	snapshot, err := h.svc.Validate(raw)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	h.restore(w, r, userID, snapshot,
		q.Get("clearExisting") == "true",
		q.Get("skipDuplicates") == "true",
	)
}

func (h *BackupHandler) restore(w http.ResponseWriter, r *http.Request, userID string, snapshot *model.BackupSnapshot, clearExisting, skipDuplicates bool) {
	result, err := h.svc.Restore(r.Context(), userID, snapshot, service.RestoreOptions{
		ClearExisting:  clearExisting,
		SkipDuplicates: skipDuplicates,
	})
	if err != nil {
		// A partial import still carries a result worth returning.
		if result != nil {
			h.logger.Warn("restore aborted part-way",
				slog.String("userID", userID),
				slog.Int("imported", result.Imported),
				slog.String("error", err.Error()),
			)
			writeJSON(w, http.StatusMultiStatus, map[string]any{
				"error":  "partial_import",
				"result": result,
			})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/cardbinder/internal/apperror"
	"github.com/sakif/cardbinder/internal/model"
	"github.com/sakif/cardbinder/internal/repository"
)

// RestoreOptions is the merge policy for a restore.
//
//   - ClearExisting: delete all of the user's cards first, then import
//     everything. SkipDuplicates is irrelevant in this mode — after the
//     clear, every incoming card is new.
//   - SkipDuplicates: leave existing cards alone and skip any incoming card
//     whose id is already present, counting it as skipped.
//   - OnProgress: called synchronously after each successful import, in
//     ascending index order, so the caller can render a progress bar.
type RestoreOptions struct {
	ClearExisting  bool
	SkipDuplicates bool
	OnProgress     func(current, total int)
}

// RestoreResult reports what a restore actually did. On a mid-restore abort
// it rides alongside the PartialImport error — "some cards imported" is the
// expected outcome of a failure half-way through, not a total failure.
type RestoreResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// BackupService builds, persists, validates, and restores backup snapshots,
// and enforces the retention rule: at most one automatic backup per user.
type BackupService struct {
	cards       repository.CardRepository
	backups     repository.BackupRepository
	collections repository.CollectionRepository
	users       repository.UserRepository
	locks       *userLocker
	logger      *slog.Logger
	now         func() time.Time // injected in tests
}

// NewBackupService creates a BackupService. The userLocker should be the same
// instance the CollectionService uses so a clearing restore can't interleave
// with a default swap for the same user.
func NewBackupService(
	cards repository.CardRepository,
	backups repository.BackupRepository,
	collections repository.CollectionRepository,
	users repository.UserRepository,
	locks *userLocker,
	logger *slog.Logger,
) *BackupService {
	if locks == nil {
		locks = newUserLocker()
	}
	return &BackupService{
		cards:       cards,
		backups:     backups,
		collections: collections,
		users:       users,
		locks:       locks,
		logger:      logger,
		now:         time.Now,
	}
}

// Build serializes the user's full card set into a snapshot: every card, the
// computed totals, the current format version, and an RFC 3339 timestamp.
// Pure read — nothing is written.
func (s *BackupService) Build(ctx context.Context, userID, exportedBy string) (*model.BackupSnapshot, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required")
	}

	cards, err := s.cards.List(ctx, userID)
	if err != nil {
		return nil, apperror.Store("building snapshot", err)
	}
	if cards == nil {
		cards = []model.Card{}
	}

	var totalValue float64
	for i := range cards {
		totalValue += cards[i].CurrentValue
	}

	snapshot := &model.BackupSnapshot{
		Version:   model.SnapshotVersion,
		Timestamp: s.now().UTC().Format(time.RFC3339),
		AppName:   model.AppName,
		UserID:    userID,
		Cards:     cards,
		Metadata: model.SnapshotMetadata{
			TotalCards: len(cards),
			TotalValue: totalValue,
			ExportedBy: exportedBy,
		},
	}

	// UserName is cosmetic metadata; a lookup failure shouldn't fail the build.
	if user, err := s.users.GetByID(ctx, userID); err == nil {
		snapshot.Metadata.UserName = user.Login
	}

	return snapshot, nil
}

// Persist builds a snapshot and stores it as a backup record. For automatic
// backups the retention rule runs first: every other auto record for the user
// is deleted before the new one is inserted, so at most one auto backup
// exists at any time. Manual backups are never pruned.
func (s *BackupService) Persist(ctx context.Context, userID, exportedBy string, t model.BackupType) (*model.BackupRecord, error) {
	if t != model.BackupAuto && t != model.BackupManual {
		return nil, apperror.ValidationFailed("type", "backup type must be auto or manual")
	}

	snapshot, err := s.Build(ctx, userID, exportedBy)
	if err != nil {
		return nil, err
	}

	if t == model.BackupAuto {
		if _, err := s.backups.DeleteByType(ctx, userID, model.BackupAuto); err != nil {
			return nil, apperror.Store("pruning automatic backups", err)
		}
	}

	rec := &model.BackupRecord{
		UserID:   userID,
		Type:     t,
		Snapshot: *snapshot,
	}
	if err := s.backups.Create(ctx, rec); err != nil {
		return nil, apperror.Store("storing backup", err)
	}

	s.logger.Info("backup persisted",
		slog.String("id", rec.ID),
		slog.String("userID", userID),
		slog.String("type", string(t)),
		slog.Int("cards", snapshot.Metadata.TotalCards),
		slog.Int64("sizeBytes", rec.SizeBytes),
	)
	return rec, nil
}

// Validate parses raw bytes into a snapshot and checks its structure.
//
// Required for every version: version, timestamp, appName, a cards array, and
// a metadata object. Files with version >= 2.0 must additionally carry a
// non-empty userId on the snapshot and on every card; 1.x files predate that
// field and are accepted without it.
//
// Validation fails fast on the first structural violation — a malformed file
// never reaches the import loop.
func (s *BackupService) Validate(raw []byte) (*model.BackupSnapshot, error) {
	// Decode into a shadow struct with RawMessages so we can tell "field
	// absent" apart from "field has a zero value".
	var probe struct {
		Version   string           `json:"version"`
		Timestamp string           `json:"timestamp"`
		AppName   string           `json:"appName"`
		UserID    string           `json:"userId"`
		Cards     *json.RawMessage `json:"cards"`
		Metadata  *json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, apperror.ValidationFailed("file", fmt.Sprintf("not a valid backup file: %v", err))
	}

	if probe.Version == "" {
		return nil, apperror.ValidationFailed("version", "backup file is missing its version")
	}
	if probe.Timestamp == "" {
		return nil, apperror.ValidationFailed("timestamp", "backup file is missing its timestamp")
	}
	if probe.AppName == "" {
		return nil, apperror.ValidationFailed("appName", "backup file is missing the application name")
	}
	if probe.Cards == nil {
		return nil, apperror.ValidationFailed("cards", "backup file has no cards array")
	}
	if probe.Metadata == nil {
		return nil, apperror.ValidationFailed("metadata", "backup file has no metadata")
	}

	var snapshot model.BackupSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, apperror.ValidationFailed("file", fmt.Sprintf("malformed backup contents: %v", err))
	}
	if snapshot.Cards == nil {
		return nil, apperror.ValidationFailed("cards", "cards must be an array")
	}

	if snapshotVersionAtLeast2(snapshot.Version) {
		if snapshot.UserID == "" {
			return nil, apperror.ValidationFailed("userId",
				fmt.Sprintf("backup version %s requires a userId", snapshot.Version))
		}
		for i := range snapshot.Cards {
			if snapshot.Cards[i].UserID == "" {
				return nil, apperror.ValidationFailed("cards",
					fmt.Sprintf("card %d is missing its userId (required for backup version %s)",
						i, snapshot.Version))
			}
		}
	}

	return &snapshot, nil
}

// snapshotVersionAtLeast2 reports whether a version string like "2.0" or
// "2.1.3" has major version >= 2. Unparseable versions are treated as 1.x —
// the lenient branch — since old exports are exactly the files most likely to
// have odd version strings.
func snapshotVersionAtLeast2(version string) bool {
	major, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(strings.TrimSpace(major))
	if err != nil {
		return false
	}
	return n >= 2
}

// Restore applies a validated snapshot to the acting user's inventory under
// the given merge policy.
//
// The import loop is best-effort: a single card's failure is recorded in the
// result's Errors and the loop continues. Two things abort the loop early and
// return PartialImport alongside the partial result: cancellation of ctx
// (checked before every card write) and a store-level failure that means
// further writes cannot succeed.
//
// Every imported card is rewritten to belong to userID — never to whatever
// user id the snapshot recorded. A card keeps its original collectionId when
// that collection (still) belongs to the user, so an export-then-reimport
// reproduces the cards field-for-field; cards whose collection no longer
// exists land in the user's default collection.
func (s *BackupService) Restore(ctx context.Context, userID string, snapshot *model.BackupSnapshot, opts RestoreOptions) (*RestoreResult, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required")
	}
	if snapshot == nil {
		return nil, apperror.ValidationFailed("snapshot", "snapshot is required")
	}

	// One restore at a time per user: a clear-then-import must not interleave
	// with another restore (or a default swap) for the same user.
	unlock := s.locks.lock(userID)
	defer unlock()

	result := &RestoreResult{}

	// Resolve the user's collections once, up front. The default is the
	// fallback destination for cards whose collection the user no longer has.
	owned, err := s.collections.List(ctx, userID)
	if err != nil {
		return result, apperror.Store("listing collections", err)
	}
	ownedIDs := make(map[string]struct{}, len(owned))
	var fallbackID string
	for i := range owned {
		ownedIDs[owned[i].ID] = struct{}{}
		if owned[i].IsDefault {
			fallbackID = owned[i].ID
		}
	}
	if fallbackID == "" {
		return result, apperror.ValidationFailed("collection",
			"no default collection exists to receive restored cards")
	}

	if opts.ClearExisting {
		if err := s.cards.DeleteAll(ctx, userID); err != nil {
			return result, apperror.Store("clearing existing cards", err)
		}
		s.logger.Info("existing cards cleared for restore", slog.String("userID", userID))
	}

	// With ClearExisting the duplicate set is empty by construction, so the
	// id scan is skipped entirely.
	var existing map[string]struct{}
	if opts.SkipDuplicates && !opts.ClearExisting {
		ids, err := s.cards.ListIDs(ctx, userID)
		if err != nil {
			return result, apperror.Store("reading existing card ids", err)
		}
		existing = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			existing[id] = struct{}{}
		}
	}

	total := len(snapshot.Cards)
	for i := range snapshot.Cards {
		// Cancellation is checked before each write so a cancelled restore
		// returns what it managed to do instead of raising.
		if err := ctx.Err(); err != nil {
			return result, apperror.PartialImport(result.Imported, result.Skipped, err)
		}

		incoming := snapshot.Cards[i]

		if existing != nil {
			if _, dup := existing[incoming.ID]; dup {
				result.Skipped++
				continue
			}
		}

		card := incoming
		card.UserID = userID // always the acting user, never the snapshot's
		if _, ok := ownedIDs[card.CollectionID]; !ok {
			card.CollectionID = fallbackID
		}
		// Ids are preserved only for the user's own cards. A snapshot
		// exported by another account keeps its ids in that account, and
		// card ids are unique across the whole store, so reusing them here
		// would collide with the exporter's still-existing rows.
		if card.ID == "" || (incoming.UserID != "" && incoming.UserID != userID) {
			card.ID = xid.New().String()
		}
		// Normalize date-like fields to the store's representation: zero
		// times become "now" on insert, free-form date strings are kept as-is.
		card.UpdatedAt = time.Time{}

		if err := s.cards.Create(ctx, &card); err != nil {
			if restoreAborted(err) {
				result.Errors = append(result.Errors, importErrorMessage(&incoming, err))
				return result, apperror.PartialImport(result.Imported, result.Skipped, err)
			}
			// Per-card failure: record and keep going.
			result.Errors = append(result.Errors, importErrorMessage(&incoming, err))
			continue
		}

		result.Imported++
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, total)
		}
	}

	s.logger.Info("restore completed",
		slog.String("userID", userID),
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// restoreAborted reports whether an import error means the store is gone and
// continuing is pointless, as opposed to one card being unwritable.
func restoreAborted(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, apperror.ErrStore)
}

// importErrorMessage builds the human-readable per-card error, including the
// player and year so the user can find the card in their file.
func importErrorMessage(card *model.Card, err error) string {
	label := card.Player
	if label == "" {
		label = card.ID
	}
	if card.Year != 0 {
		return fmt.Sprintf("failed to import %s (%d): %v", label, card.Year, err)
	}
	return fmt.Sprintf("failed to import %s: %v", label, err)
}

// List returns the user's backup records, newest first, without payloads.
func (s *BackupService) List(ctx context.Context, userID string) ([]model.BackupListEntry, error) {
	entries, err := s.backups.List(ctx, userID)
	if err != nil {
		return nil, apperror.Store("listing backups", err)
	}
	if entries == nil {
		entries = []model.BackupListEntry{}
	}
	return entries, nil
}

// Get loads one backup record with its snapshot.
func (s *BackupService) Get(ctx context.Context, userID, id string) (*model.BackupRecord, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, apperror.ValidationFailed("id", "backup ID is required")
	}
	return s.backups.GetByID(ctx, userID, id)
}

// Delete removes one backup record.
func (s *BackupService) Delete(ctx context.Context, userID, id string) error {
	if id = strings.TrimSpace(id); id == "" {
		return apperror.ValidationFailed("id", "backup ID is required")
	}
	return s.backups.Delete(ctx, userID, id)
}

// ClearAuto removes the user's automatic backup, if any. Idempotent.
func (s *BackupService) ClearAuto(ctx context.Context, userID string) (int, error) {
	n, err := s.backups.DeleteByType(ctx, userID, model.BackupAuto)
	if err != nil {
		return 0, apperror.Store("clearing automatic backups", err)
	}
	return n, nil
}

// ClearAll removes every backup record for the user. Idempotent.
func (s *BackupService) ClearAll(ctx context.Context, userID string) (int, error) {
	n, err := s.backups.DeleteAll(ctx, userID)
	if err != nil {
		return 0, apperror.Store("clearing backups", err)
	}
	return n, nil
}

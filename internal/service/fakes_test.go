package service

// In-memory fakes for the repository interfaces. Hand-written (no mock
// framework) so each test reads as plain Go; error hooks simulate store
// failures where a test needs one.

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sakif/cardbinder/internal/apperror"
	"github.com/sakif/cardbinder/internal/model"
)

// ---------------------------------------------------------------------------
// fakeCollectionRepo

type fakeCollectionRepo struct {
	collections []model.Collection
	nextID      int
	clock       time.Time

	createErr error
	swapErr   error
}

func newFakeCollectionRepo() *fakeCollectionRepo {
	return &fakeCollectionRepo{clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeCollectionRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeCollectionRepo) Create(ctx context.Context, c *model.Collection) error {
	if f.createErr != nil {
		return f.createErr
	}
	for i := range f.collections {
		if f.collections[i].UserID == c.UserID && f.collections[i].Name == c.Name {
			return apperror.DuplicateName(c.Name)
		}
	}
	f.nextID++
	c.ID = fmt.Sprintf("col-%03d", f.nextID)
	c.CreatedAt = f.tick()
	c.UpdatedAt = c.CreatedAt
	f.collections = append(f.collections, *c)
	return nil
}

func (f *fakeCollectionRepo) GetByID(ctx context.Context, userID, id string) (*model.Collection, error) {
	for i := range f.collections {
		if f.collections[i].UserID == userID && f.collections[i].ID == id {
			c := f.collections[i]
			return &c, nil
		}
	}
	return nil, apperror.NotFound("collection", id)
}

func (f *fakeCollectionRepo) GetByName(ctx context.Context, userID, name string) (*model.Collection, error) {
	for i := range f.collections {
		if f.collections[i].UserID == userID && f.collections[i].Name == name {
			c := f.collections[i]
			return &c, nil
		}
	}
	return nil, apperror.NotFound("collection", name)
}

func (f *fakeCollectionRepo) GetDefault(ctx context.Context, userID string) (*model.Collection, error) {
	for i := range f.collections {
		if f.collections[i].UserID == userID && f.collections[i].IsDefault {
			c := f.collections[i]
			return &c, nil
		}
	}
	return nil, apperror.NotFound("default collection", userID)
}

func (f *fakeCollectionRepo) List(ctx context.Context, userID string) ([]model.Collection, error) {
	var out []model.Collection
	for i := range f.collections {
		if f.collections[i].UserID == userID {
			out = append(out, f.collections[i])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeCollectionRepo) Update(ctx context.Context, c *model.Collection) error {
	for i := range f.collections {
		if f.collections[i].UserID == c.UserID && f.collections[i].ID == c.ID {
			c.UpdatedAt = f.tick()
			c.CreatedAt = f.collections[i].CreatedAt
			f.collections[i] = *c
			return nil
		}
	}
	return apperror.NotFound("collection", c.ID)
}

func (f *fakeCollectionRepo) Delete(ctx context.Context, userID, id string) error {
	for i := range f.collections {
		if f.collections[i].UserID == userID && f.collections[i].ID == id {
			f.collections = append(f.collections[:i], f.collections[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("collection", id)
}

func (f *fakeCollectionRepo) SwapDefault(ctx context.Context, userID, newDefaultID string) error {
	if f.swapErr != nil {
		return f.swapErr
	}
	found := false
	for i := range f.collections {
		if f.collections[i].UserID == userID && f.collections[i].ID == newDefaultID {
			found = true
		}
	}
	if !found {
		return apperror.NotFound("collection", newDefaultID)
	}
	for i := range f.collections {
		if f.collections[i].UserID == userID {
			f.collections[i].IsDefault = f.collections[i].ID == newDefaultID
		}
	}
	return nil
}

// defaultCount reports how many of the user's collections carry the flag —
// the invariant every collection test checks at the end.
func (f *fakeCollectionRepo) defaultCount(userID string) int {
	n := 0
	for i := range f.collections {
		if f.collections[i].UserID == userID && f.collections[i].IsDefault {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// fakeCardRepo

type fakeCardRepo struct {
	cards  map[string]model.Card
	order  []string // insertion order of ids
	nextID int
	clock  time.Time

	createErr    error            // returned by every Create when set
	failCreateID map[string]error // per-card Create failures, keyed by incoming id
	createdCount int              // total successful Creates, for cancellation tests
	onCreate     func(card *model.Card) error
}

func newFakeCardRepo() *fakeCardRepo {
	return &fakeCardRepo{
		cards: make(map[string]model.Card),
		clock: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeCardRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeCardRepo) Create(ctx context.Context, card *model.Card) error {
	if f.createErr != nil {
		return f.createErr
	}
	if err, ok := f.failCreateID[card.ID]; ok {
		return err
	}
	if f.onCreate != nil {
		if err := f.onCreate(card); err != nil {
			return err
		}
	}
	if card.ID == "" {
		f.nextID++
		card.ID = fmt.Sprintf("card-%03d", f.nextID)
	}
	if _, exists := f.cards[card.ID]; exists {
		// A duplicate id condemns only this row, like a real constraint
		// failure; it must not read as a store outage.
		return fmt.Errorf("inserting card %s: duplicate id", card.ID)
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = f.tick()
	}
	card.UpdatedAt = f.tick()
	f.cards[card.ID] = *card
	f.order = append(f.order, card.ID)
	f.createdCount++
	return nil
}

func (f *fakeCardRepo) GetByID(ctx context.Context, userID, id string) (*model.Card, error) {
	c, ok := f.cards[id]
	if !ok || c.UserID != userID {
		return nil, apperror.NotFound("card", id)
	}
	return &c, nil
}

func (f *fakeCardRepo) List(ctx context.Context, userID string) ([]model.Card, error) {
	var out []model.Card
	for _, id := range f.order {
		if c, ok := f.cards[id]; ok && c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCardRepo) ListIDs(ctx context.Context, userID string) ([]string, error) {
	var out []string
	for _, id := range f.order {
		if c, ok := f.cards[id]; ok && c.UserID == userID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeCardRepo) ListByCollection(ctx context.Context, userID, collectionID string) ([]model.Card, error) {
	var out []model.Card
	for _, id := range f.order {
		if c, ok := f.cards[id]; ok && c.UserID == userID && c.CollectionID == collectionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCardRepo) CountByCollection(ctx context.Context, userID, collectionID string) (int, error) {
	cards, _ := f.ListByCollection(ctx, userID, collectionID)
	return len(cards), nil
}

func (f *fakeCardRepo) Count(ctx context.Context, userID string) (int, error) {
	cards, _ := f.List(ctx, userID)
	return len(cards), nil
}

func (f *fakeCardRepo) Update(ctx context.Context, card *model.Card) error {
	existing, ok := f.cards[card.ID]
	if !ok || existing.UserID != card.UserID {
		return apperror.NotFound("card", card.ID)
	}
	card.CreatedAt = existing.CreatedAt
	card.UpdatedAt = f.tick()
	f.cards[card.ID] = *card
	return nil
}

func (f *fakeCardRepo) Delete(ctx context.Context, userID, id string) error {
	c, ok := f.cards[id]
	if !ok || c.UserID != userID {
		return apperror.NotFound("card", id)
	}
	delete(f.cards, id)
	f.dropFromOrder(id)
	return nil
}

func (f *fakeCardRepo) DeleteAll(ctx context.Context, userID string) error {
	for id, c := range f.cards {
		if c.UserID == userID {
			delete(f.cards, id)
			f.dropFromOrder(id)
		}
	}
	return nil
}

// dropFromOrder keeps the insertion-order index in sync with the map, so a
// deleted id can be re-created without being listed twice.
func (f *fakeCardRepo) dropFromOrder(id string) {
	for i, existing := range f.order {
		if existing == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			return
		}
	}
}

func (f *fakeCardRepo) SetCollection(ctx context.Context, userID, cardID, collectionID string) error {
	c, ok := f.cards[cardID]
	if !ok || c.UserID != userID {
		return apperror.NotFound("card", cardID)
	}
	c.CollectionID = collectionID
	c.UpdatedAt = f.tick()
	f.cards[cardID] = c
	return nil
}

// ---------------------------------------------------------------------------
// fakeBackupRepo

type fakeBackupRepo struct {
	records []model.BackupRecord
	nextID  int
	clock   time.Time
}

func newFakeBackupRepo() *fakeBackupRepo {
	return &fakeBackupRepo{clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeBackupRepo) Create(ctx context.Context, rec *model.BackupRecord) error {
	f.nextID++
	rec.ID = fmt.Sprintf("bak-%03d", f.nextID)
	f.clock = f.clock.Add(time.Minute)
	rec.CreatedAt = f.clock
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeBackupRepo) GetByID(ctx context.Context, userID, id string) (*model.BackupRecord, error) {
	for i := range f.records {
		if f.records[i].UserID == userID && f.records[i].ID == id {
			r := f.records[i]
			return &r, nil
		}
	}
	return nil, apperror.NotFound("backup", id)
}

func (f *fakeBackupRepo) List(ctx context.Context, userID string) ([]model.BackupListEntry, error) {
	var out []model.BackupListEntry
	for i := len(f.records) - 1; i >= 0; i-- { // newest first
		r := f.records[i]
		if r.UserID != userID {
			continue
		}
		out = append(out, model.BackupListEntry{
			ID:         r.ID,
			Type:       r.Type,
			SizeBytes:  r.SizeBytes,
			CreatedAt:  r.CreatedAt,
			Metadata:   r.Snapshot.Metadata,
			CardsTotal: len(r.Snapshot.Cards),
		})
	}
	return out, nil
}

func (f *fakeBackupRepo) Delete(ctx context.Context, userID, id string) error {
	for i := range f.records {
		if f.records[i].UserID == userID && f.records[i].ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("backup", id)
}

func (f *fakeBackupRepo) DeleteByType(ctx context.Context, userID string, t model.BackupType) (int, error) {
	deleted := 0
	kept := f.records[:0]
	for _, r := range f.records {
		if r.UserID == userID && r.Type == t {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	f.records = kept
	return deleted, nil
}

func (f *fakeBackupRepo) DeleteAll(ctx context.Context, userID string) (int, error) {
	deleted := 0
	kept := f.records[:0]
	for _, r := range f.records {
		if r.UserID == userID {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	f.records = kept
	return deleted, nil
}

func (f *fakeBackupRepo) countByType(userID string, t model.BackupType) int {
	n := 0
	for i := range f.records {
		if f.records[i].UserID == userID && f.records[i].Type == t {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// fakeMarkerRepo

type fakeMarkerRepo struct {
	markers map[string]model.SeedMarker
	putErr  error
}

func newFakeMarkerRepo() *fakeMarkerRepo {
	return &fakeMarkerRepo{markers: make(map[string]model.SeedMarker)}
}

func (f *fakeMarkerRepo) Get(ctx context.Context, userID string) (*model.SeedMarker, error) {
	m, ok := f.markers[userID]
	if !ok {
		return nil, apperror.NotFound("seed marker", userID)
	}
	return &m, nil
}

func (f *fakeMarkerRepo) Put(ctx context.Context, marker *model.SeedMarker) error {
	if f.putErr != nil {
		return f.putErr
	}
	if marker.ImportedAt.IsZero() {
		marker.ImportedAt = time.Now()
	}
	f.markers[marker.UserID] = *marker
	return nil
}

func (f *fakeMarkerRepo) Delete(ctx context.Context, userID string) error {
	delete(f.markers, userID)
	return nil
}

// ---------------------------------------------------------------------------
// fakeUserRepo

type fakeUserRepo struct {
	users  map[string]model.User // by internal id
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]model.User)}
}

func (f *fakeUserRepo) UpsertGitHub(ctx context.Context, user *model.User) (bool, error) {
	for id, u := range f.users {
		if u.GitHubID != 0 && u.GitHubID == user.GitHubID {
			u.Login = user.Login
			u.Email = user.Email
			u.AvatarURL = user.AvatarURL
			f.users[id] = u
			*user = u
			return false, nil
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%03d", f.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = *user
	return true, nil
}

func (f *fakeUserRepo) CreateWithPassword(ctx context.Context, user *model.User) error {
	for _, u := range f.users {
		if u.Email != "" && u.Email == user.Email {
			return apperror.ValidationFailed("email", "an account with this email already exists")
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%03d", f.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email != "" && u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

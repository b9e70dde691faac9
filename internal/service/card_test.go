package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sakif/cardbinder/internal/apperror"
	"github.com/sakif/cardbinder/internal/model"
)

func newTestCardService(t *testing.T) (*CardService, *fakeCollectionRepo, *fakeCardRepo) {
	t.Helper()
	collections := newFakeCollectionRepo()
	cards := newFakeCardRepo()
	svc := NewCardService(cards, collections, discardLogger())
	return svc, collections, cards
}

// seedCollection inserts a collection directly into the fake.
func seedCollection(t *testing.T, repo *fakeCollectionRepo, userID, name string, isDefault bool) *model.Collection {
	t.Helper()
	c := &model.Collection{UserID: userID, Name: name, IsDefault: isDefault, Visibility: model.VisibilityPrivate}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("seeding collection: %v", err)
	}
	return c
}

func TestCardCreate_DefaultCollectionFallback(t *testing.T) {
	svc, collections, _ := newTestCardService(t)
	ctx := context.Background()

	def := seedCollection(t, collections, "u1", "My Collection", true)

	card, err := svc.Create(ctx, "u1", CardInput{Player: "Ken Griffey Jr."})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if card.CollectionID != def.ID {
		t.Errorf("collectionID = %s, want default %s", card.CollectionID, def.ID)
	}
}

func TestCardCreate_RejectsForeignCollection(t *testing.T) {
	svc, collections, _ := newTestCardService(t)
	ctx := context.Background()

	seedCollection(t, collections, "u1", "My Collection", true)
	other := seedCollection(t, collections, "u2", "Theirs", true)

	_, err := svc.Create(ctx, "u1", CardInput{Player: "P", CollectionID: other.ID})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestCardCreate_Validation(t *testing.T) {
	svc, collections, _ := newTestCardService(t)
	ctx := context.Background()
	seedCollection(t, collections, "u1", "My Collection", true)

	if _, err := svc.Create(ctx, "u1", CardInput{Player: "  "}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("empty player: error = %v, want ErrValidation", err)
	}
	if _, err := svc.Create(ctx, "u1", CardInput{
		Player: "P",
		Notes:  strings.Repeat("x", MaxNotesLength+1),
	}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("long notes: error = %v, want ErrValidation", err)
	}
}

func TestCardUpdate_MoveToOwnedCollection(t *testing.T) {
	svc, collections, _ := newTestCardService(t)
	ctx := context.Background()

	seedCollection(t, collections, "u1", "My Collection", true)
	target := seedCollection(t, collections, "u1", "Vintage", false)

	card, err := svc.Create(ctx, "u1", CardInput{Player: "P"})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.Update(ctx, "u1", card.ID, CardInput{Player: "P", CollectionID: target.ID})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.CollectionID != target.ID {
		t.Errorf("collectionID = %s, want %s", updated.CollectionID, target.ID)
	}
}

func TestCardMove_BestEffortBatch(t *testing.T) {
	svc, collections, cards := newTestCardService(t)
	ctx := context.Background()

	seedCollection(t, collections, "u1", "My Collection", true)
	target := seedCollection(t, collections, "u1", "Vintage", false)

	var ids []string
	for i := 0; i < 3; i++ {
		card, err := svc.Create(ctx, "u1", CardInput{Player: fmt.Sprintf("Player %d", i)})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, card.ID)
	}

	// One missing id and one card owned by someone else in the middle of
	// the batch; the rest must still move.
	foreign := &model.Card{UserID: "u2", CollectionID: "elsewhere", Player: "Foreign"}
	cards.Create(ctx, foreign)
	batch := []string{ids[0], "missing-id", foreign.ID, ids[1], ids[2]}

	result, err := svc.Move(ctx, "u1", batch, target.ID)
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if result.Moved != 3 {
		t.Errorf("Moved = %d, want 3", result.Moved)
	}
	if result.Failed != 2 {
		t.Errorf("Failed = %d, want 2", result.Failed)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("Errors = %v, want 2 entries", result.Errors)
	}
	if !strings.Contains(result.Errors[0], "missing-id") {
		t.Errorf("first error %q should name the missing card", result.Errors[0])
	}

	for _, id := range ids {
		card, err := cards.GetByID(ctx, "u1", id)
		if err != nil {
			t.Fatal(err)
		}
		if card.CollectionID != target.ID {
			t.Errorf("card %s in %s, want %s", id, card.CollectionID, target.ID)
		}
	}
	// The foreign card is untouched.
	if got, _ := cards.GetByID(ctx, "u2", foreign.ID); got.CollectionID != "elsewhere" {
		t.Error("another user's card must not be moved")
	}
}

func TestCardMove_BadTargetFailsWholeCall(t *testing.T) {
	svc, collections, cards := newTestCardService(t)
	ctx := context.Background()

	def := seedCollection(t, collections, "u1", "My Collection", true)
	card, _ := svc.Create(ctx, "u1", CardInput{Player: "P"})

	_, err := svc.Move(ctx, "u1", []string{card.ID}, "no-such-collection")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	// Nothing moved.
	got, _ := cards.GetByID(ctx, "u1", card.ID)
	if got.CollectionID != def.ID {
		t.Error("cards must not move when the target is invalid")
	}
}

func TestCardMove_Validation(t *testing.T) {
	svc, collections, _ := newTestCardService(t)
	ctx := context.Background()
	target := seedCollection(t, collections, "u1", "Vintage", true)

	if _, err := svc.Move(ctx, "u1", nil, target.ID); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("empty batch: error = %v, want ErrValidation", err)
	}
	if _, err := svc.Move(ctx, "u1", make([]string, MaxMoveBatchSize+1), target.ID); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("oversize batch: error = %v, want ErrValidation", err)
	}
	if _, err := svc.Move(ctx, "u1", []string{"a"}, "  "); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("empty target: error = %v, want ErrValidation", err)
	}
}

func TestCardDelete_OtherUsersCard(t *testing.T) {
	svc, collections, _ := newTestCardService(t)
	ctx := context.Background()

	seedCollection(t, collections, "u1", "My Collection", true)
	card, _ := svc.Create(ctx, "u1", CardInput{Player: "P"})

	if err := svc.Delete(ctx, "u2", card.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/sakif/cardbinder/internal/apperror"
	"github.com/sakif/cardbinder/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCollectionService(t *testing.T) (*CollectionService, *fakeCollectionRepo, *fakeCardRepo) {
	t.Helper()
	repo := newFakeCollectionRepo()
	cards := newFakeCardRepo()
	svc := NewCollectionService(repo, cards, nil, discardLogger())
	return svc, repo, cards
}

func TestCollectionCreate_FirstBecomesDefault(t *testing.T) {
	svc, repo, _ := newTestCollectionService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "u1", CollectionInput{Name: "Rookies"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !first.IsDefault {
		t.Error("first collection should be the default")
	}

	second, err := svc.Create(ctx, "u1", CollectionInput{Name: "Vintage"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if second.IsDefault {
		t.Error("second collection must not be created as default")
	}

	if n := repo.defaultCount("u1"); n != 1 {
		t.Errorf("default count = %d, want 1", n)
	}
}

func TestCollectionCreate_FirstPerUser(t *testing.T) {
	svc, repo, _ := newTestCollectionService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "u1", CollectionInput{Name: "Mine"}); err != nil {
		t.Fatal(err)
	}
	other, err := svc.Create(ctx, "u2", CollectionInput{Name: "Mine"})
	if err != nil {
		t.Fatalf("same name for a different user should be allowed: %v", err)
	}
	if !other.IsDefault {
		t.Error("u2's first collection should be their default")
	}
	if repo.defaultCount("u1") != 1 || repo.defaultCount("u2") != 1 {
		t.Error("each user should have exactly one default")
	}
}

func TestCollectionCreate_DuplicateName(t *testing.T) {
	svc, _, _ := newTestCollectionService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "u1", CollectionInput{Name: "Rookies"}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Create(ctx, "u1", CollectionInput{Name: "Rookies"})
	if !errors.Is(err, apperror.ErrDuplicateName) {
		t.Errorf("error = %v, want ErrDuplicateName", err)
	}
}

func TestCollectionCreate_Validation(t *testing.T) {
	svc, _, _ := newTestCollectionService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CollectionInput
	}{
		{"empty name", CollectionInput{Name: "   "}},
		{"name too long", CollectionInput{Name: strings.Repeat("x", MaxCollectionNameLength+1)}},
		{"description too long", CollectionInput{Name: "ok", Description: strings.Repeat("x", MaxDescriptionLength+1)}},
		{"too many tags", CollectionInput{Name: "ok", Tags: make([]string, MaxTags+1)}},
		{"bad visibility", CollectionInput{Name: "ok", Visibility: "friends-only"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, "u1", tt.in); !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCollectionCreate_NormalizesTags(t *testing.T) {
	svc, _, _ := newTestCollectionService(t)

	col, err := svc.Create(context.Background(), "u1", CollectionInput{
		Name: "Rookies",
		Tags: []string{" baseball ", "baseball", "", "vintage"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"baseball", "vintage"}
	if len(col.Tags) != len(want) {
		t.Fatalf("tags = %v, want %v", col.Tags, want)
	}
	for i := range want {
		if col.Tags[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, col.Tags[i], want[i])
		}
	}
}

func TestEnsureDefault_CreatesSentinel(t *testing.T) {
	svc, repo, _ := newTestCollectionService(t)
	ctx := context.Background()

	def, err := svc.EnsureDefault(ctx, "u1")
	if err != nil {
		t.Fatalf("EnsureDefault() error = %v", err)
	}
	if def.Name != model.DefaultCollectionName {
		t.Errorf("name = %q, want %q", def.Name, model.DefaultCollectionName)
	}
	if !def.IsDefault {
		t.Error("sentinel collection should carry the default flag")
	}

	// Idempotent: a second call returns the same collection.
	again, err := svc.EnsureDefault(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != def.ID {
		t.Errorf("second EnsureDefault returned %s, want %s", again.ID, def.ID)
	}
	if n := repo.defaultCount("u1"); n != 1 {
		t.Errorf("default count = %d, want 1", n)
	}
}

func TestEnsureDefault_PromotesEarliestWhenFlagLost(t *testing.T) {
	svc, repo, _ := newTestCollectionService(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, "u1", CollectionInput{Name: "A"})
	if _, err := svc.Create(ctx, "u1", CollectionInput{Name: "B"}); err != nil {
		t.Fatal(err)
	}

	// Simulate a store that lost the flag entirely.
	for i := range repo.collections {
		repo.collections[i].IsDefault = false
	}

	def, err := svc.EnsureDefault(ctx, "u1")
	if err != nil {
		t.Fatalf("EnsureDefault() error = %v", err)
	}
	if def.ID != a.ID {
		t.Errorf("promoted %s, want earliest collection %s", def.ID, a.ID)
	}
	if n := repo.defaultCount("u1"); n != 1 {
		t.Errorf("default count = %d, want 1", n)
	}
}

func TestEnsureDefault_Concurrent(t *testing.T) {
	svc, repo, _ := newTestCollectionService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.EnsureDefault(ctx, "u1"); err != nil {
				t.Errorf("EnsureDefault() error = %v", err)
			}
		}()
	}
	wg.Wait()

	cols, _ := repo.List(ctx, "u1")
	if len(cols) != 1 {
		t.Errorf("got %d collections after concurrent EnsureDefault, want 1", len(cols))
	}
	if n := repo.defaultCount("u1"); n != 1 {
		t.Errorf("default count = %d, want 1", n)
	}
}

func TestSetDefault_SwapsAtomically(t *testing.T) {
	svc, repo, _ := newTestCollectionService(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, "u1", CollectionInput{Name: "A"})
	b, _ := svc.Create(ctx, "u1", CollectionInput{Name: "B"})

	got, err := svc.SetDefault(ctx, "u1", b.ID)
	if err != nil {
		t.Fatalf("SetDefault() error = %v", err)
	}
	if !got.IsDefault {
		t.Error("SetDefault should return the collection with the flag set")
	}

	oldDefault, _ := repo.GetByID(ctx, "u1", a.ID)
	if oldDefault.IsDefault {
		t.Error("previous default should have lost the flag")
	}
	if n := repo.defaultCount("u1"); n != 1 {
		t.Errorf("default count = %d, want 1", n)
	}
}

func TestSetDefault_NoOpWhenAlreadyDefault(t *testing.T) {
	svc, repo, _ := newTestCollectionService(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, "u1", CollectionInput{Name: "A"})
	got, err := svc.SetDefault(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("SetDefault() error = %v", err)
	}
	if !got.IsDefault {
		t.Error("collection should stay default")
	}
	if n := repo.defaultCount("u1"); n != 1 {
		t.Errorf("default count = %d, want 1", n)
	}
}

func TestUnsetDefault_PromotesEarliestOther(t *testing.T) {
	svc, repo, _ := newTestCollectionService(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, "u1", CollectionInput{Name: "A"}) // default
	b, _ := svc.Create(ctx, "u1", CollectionInput{Name: "B"})
	if _, err := svc.Create(ctx, "u1", CollectionInput{Name: "C"}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.UnsetDefault(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("UnsetDefault() error = %v", err)
	}
	if got.IsDefault {
		t.Error("unset collection should no longer be default")
	}

	def, err := repo.GetDefault(ctx, "u1")
	if err != nil {
		t.Fatalf("no default after UnsetDefault: %v", err)
	}
	// B was created before C, so B is the deterministic replacement.
	if def.ID != b.ID {
		t.Errorf("promoted %s, want earliest remaining %s", def.ID, b.ID)
	}
}

func TestUnsetDefault_LastCollection(t *testing.T) {
	svc, _, _ := newTestCollectionService(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, "u1", CollectionInput{Name: "Only"})
	_, err := svc.UnsetDefault(ctx, "u1", a.ID)
	if !errors.Is(err, apperror.ErrLastCollection) {
		t.Errorf("error = %v, want ErrLastCollection", err)
	}
}

func TestUnsetDefault_NonDefaultIsNoOp(t *testing.T) {
	svc, repo, _ := newTestCollectionService(t)
	ctx := context.Background()

	svc.Create(ctx, "u1", CollectionInput{Name: "A"})
	b, _ := svc.Create(ctx, "u1", CollectionInput{Name: "B"})

	got, err := svc.UnsetDefault(ctx, "u1", b.ID)
	if err != nil {
		t.Fatalf("UnsetDefault() on non-default error = %v", err)
	}
	if got.IsDefault {
		t.Error("non-default collection should stay non-default")
	}
	if n := repo.defaultCount("u1"); n != 1 {
		t.Errorf("default count = %d, want 1", n)
	}
}

func TestCollectionUpdate_CannotUnsetDefaultViaPatch(t *testing.T) {
	svc, _, _ := newTestCollectionService(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, "u1", CollectionInput{Name: "A"})
	svc.Create(ctx, "u1", CollectionInput{Name: "B"})

	off := false
	_, err := svc.Update(ctx, "u1", a.ID, model.CollectionPatch{IsDefault: &off})
	if !errors.Is(err, apperror.ErrCannotUnsetDefault) {
		t.Errorf("error = %v, want ErrCannotUnsetDefault", err)
	}
}

func TestCollectionUpdate_PromoteViaPatch(t *testing.T) {
	svc, repo, _ := newTestCollectionService(t)
	ctx := context.Background()

	svc.Create(ctx, "u1", CollectionInput{Name: "A"})
	b, _ := svc.Create(ctx, "u1", CollectionInput{Name: "B"})

	on := true
	got, err := svc.Update(ctx, "u1", b.ID, model.CollectionPatch{IsDefault: &on})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !got.IsDefault {
		t.Error("patched collection should be default")
	}
	if n := repo.defaultCount("u1"); n != 1 {
		t.Errorf("default count = %d, want 1", n)
	}
}

func TestCollectionUpdate_RejectedPatchLeavesDefaultAlone(t *testing.T) {
	svc, repo, _ := newTestCollectionService(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, "u1", CollectionInput{Name: "A"})
	b, _ := svc.Create(ctx, "u1", CollectionInput{Name: "B"})

	on := true
	blank := "   "
	_, err := svc.Update(ctx, "u1", b.ID, model.CollectionPatch{IsDefault: &on, Name: &blank})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}

	def, err := repo.GetDefault(ctx, "u1")
	if err != nil {
		t.Fatalf("GetDefault() error = %v", err)
	}
	if def.ID != a.ID {
		t.Errorf("default = %s, want %s: a rejected patch must not move it", def.ID, a.ID)
	}
}

func TestCollectionUpdate_RenameCollision(t *testing.T) {
	svc, _, _ := newTestCollectionService(t)
	ctx := context.Background()

	svc.Create(ctx, "u1", CollectionInput{Name: "A"})
	b, _ := svc.Create(ctx, "u1", CollectionInput{Name: "B"})

	name := "A"
	_, err := svc.Update(ctx, "u1", b.ID, model.CollectionPatch{Name: &name})
	if !errors.Is(err, apperror.ErrDuplicateName) {
		t.Errorf("error = %v, want ErrDuplicateName", err)
	}

	// Renaming to its own name is fine.
	same := "B"
	if _, err := svc.Update(ctx, "u1", b.ID, model.CollectionPatch{Name: &same}); err != nil {
		t.Errorf("self-rename error = %v", err)
	}
}

func TestCollectionDelete_DefaultUndeletable(t *testing.T) {
	svc, _, _ := newTestCollectionService(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, "u1", CollectionInput{Name: "A"})
	err := svc.Delete(ctx, "u1", a.ID)
	if !errors.Is(err, apperror.ErrDefaultUndeletable) {
		t.Errorf("error = %v, want ErrDefaultUndeletable", err)
	}
}

func TestCollectionDelete_NonEmptyReportsCount(t *testing.T) {
	svc, _, cards := newTestCollectionService(t)
	ctx := context.Background()

	svc.Create(ctx, "u1", CollectionInput{Name: "A"})
	b, _ := svc.Create(ctx, "u1", CollectionInput{Name: "B"})

	for i := 0; i < 3; i++ {
		cards.Create(ctx, &model.Card{UserID: "u1", CollectionID: b.ID, Player: "P"})
	}

	err := svc.Delete(ctx, "u1", b.ID)
	if !errors.Is(err, apperror.ErrNonEmptyCollection) {
		t.Fatalf("error = %v, want ErrNonEmptyCollection", err)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatal("error should be an *AppError")
	}
	if appErr.Count != 3 {
		t.Errorf("Count = %d, want 3", appErr.Count)
	}
}

func TestCollectionDelete_EmptyNonDefault(t *testing.T) {
	svc, repo, _ := newTestCollectionService(t)
	ctx := context.Background()

	svc.Create(ctx, "u1", CollectionInput{Name: "A"})
	b, _ := svc.Create(ctx, "u1", CollectionInput{Name: "B"})

	if err := svc.Delete(ctx, "u1", b.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, "u1", b.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Error("collection should be gone")
	}
}

func TestCollectionDelete_OtherUsersCollection(t *testing.T) {
	svc, _, _ := newTestCollectionService(t)
	ctx := context.Background()

	svc.Create(ctx, "u1", CollectionInput{Name: "A"})
	b, _ := svc.Create(ctx, "u1", CollectionInput{Name: "B"})

	// u2 cannot see, let alone delete, u1's collection.
	err := svc.Delete(ctx, "u2", b.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestCollectionList_EmptyIsNotNil(t *testing.T) {
	svc, _, _ := newTestCollectionService(t)

	cols, err := svc.List(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if cols == nil {
		t.Error("List() should return an empty slice, not nil")
	}
	if len(cols) != 0 {
		t.Errorf("len = %d, want 0", len(cols))
	}
}

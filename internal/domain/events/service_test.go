package events_test

import (
	"context"
	"testing"
	"time"

	"pet-care-sync/internal/adapters/storage/memory"
	"pet-care-sync/internal/domain/events"
	"pet-care-sync/internal/domain/pets"
)

func seedPet(t *testing.T, cache *memory.Store) pets.Pet {
	t.Helper()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := pets.Pet{ID: "pet-1", OwnerID: "acct-a", DisplayName: "Luna", LastModified: now, CreatedAt: now}
	if _, err := cache.UpsertPet(context.Background(), p); err != nil {
		t.Fatalf("seed pet: %v", err)
	}
	return p
}

func TestService_Create_RequiresLocalParent(t *testing.T) {
	cache := memory.NewStore()
	svc := events.NewService(cache)

	_, err := svc.Create(context.Background(), events.CreateInput{
		PetRef: "ghost", Kind: events.KindWalk, OccurredAt: time.Now(),
	})
	if err != events.ErrNotFound {
		t.Fatalf("expected ErrNotFound without parent, got %v", err)
	}
}

func TestService_Create_ValidatesKind(t *testing.T) {
	cache := memory.NewStore()
	svc := events.NewService(cache)
	seedPet(t, cache)

	_, err := svc.Create(context.Background(), events.CreateInput{
		PetRef: "pet-1", Kind: events.Kind("juggling"), OccurredAt: time.Now(),
	})
	if err != events.ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput for unknown kind, got %v", err)
	}
}

func TestService_Create_QueuesForPush(t *testing.T) {
	cache := memory.NewStore()
	svc := events.NewService(cache)
	seedPet(t, cache)

	e, err := svc.Create(context.Background(), events.CreateInput{
		PetRef: "pet-1", Kind: events.KindVetVisit, OccurredAt: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	list, err := svc.ListByPet(context.Background(), "pet-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 event listed, got %v (%v)", list, err)
	}
	pending, _ := cache.ListPendingEvents(context.Background())
	if len(pending) != 1 || pending[0].ID != e.ID {
		t.Fatalf("expected event queued for push, got %+v", pending)
	}
}

package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"pet-care-sync/internal/domain/events"
	"pet-care-sync/internal/domain/pets"
	"pet-care-sync/internal/ports/cache"
)

// Store implementa cache.Store en memoria (dev/tests).
type Store struct {
	mu            sync.RWMutex
	petsByID      map[string]pets.Pet
	eventsByID    map[string]events.Event
	pendingPets   map[string]struct{}
	pendingEvents map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		petsByID:      make(map[string]pets.Pet),
		eventsByID:    make(map[string]events.Event),
		pendingPets:   make(map[string]struct{}),
		pendingEvents: make(map[string]struct{}),
	}
}

var _ cache.Store = (*Store)(nil)

func (s *Store) UpsertPet(ctx context.Context, p pets.Pet) (bool, error) {
	if strings.TrimSpace(p.ID) == "" {
		return false, errors.New("pet id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.petsByID[p.ID]; ok {
		// Idempotente: igual-o-menor LastModified es no-op.
		if !p.LastModified.After(prev.LastModified) {
			return false, nil
		}
		// RemoteRef se asigna una sola vez; nunca se pisa con otro valor.
		if prev.RemoteRef != "" && p.RemoteRef == "" {
			p.RemoteRef = prev.RemoteRef
		}
	}
	s.petsByID[p.ID] = p
	return true, nil
}

func (s *Store) GetPet(ctx context.Context, id string) (pets.Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.petsByID[id]
	if !ok {
		return pets.Pet{}, cache.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListPets(ctx context.Context) ([]pets.Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]pets.Pet, 0, len(s.petsByID))
	for _, p := range s.petsByID {
		out = append(out, p)
	}

	// Orden estable por created_at asc (consistencia en dev)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeletePet(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.petsByID, id)
	delete(s.pendingPets, id)

	for eid, e := range s.eventsByID {
		if e.PetRef == id {
			delete(s.eventsByID, eid)
			delete(s.pendingEvents, eid)
		}
	}
	return nil
}

func (s *Store) UpsertEvent(ctx context.Context, e events.Event) (bool, error) {
	if strings.TrimSpace(e.ID) == "" {
		return false, errors.New("event id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.eventsByID[e.ID]; ok {
		if !e.LastModified.After(prev.LastModified) {
			return false, nil
		}
		if prev.RemoteRef != "" && e.RemoteRef == "" {
			e.RemoteRef = prev.RemoteRef
		}
	}
	s.eventsByID[e.ID] = e
	return true, nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.eventsByID[id]
	if !ok {
		return events.Event{}, cache.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListEventsByPet(ctx context.Context, petID string) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]events.Event, 0)
	for _, e := range s.eventsByID {
		if e.PetRef == petID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.eventsByID, id)
	delete(s.pendingEvents, id)
	return nil
}

func (s *Store) SetPetRemoteRef(ctx context.Context, id, remoteRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.petsByID[id]
	if !ok {
		return cache.ErrNotFound
	}
	if p.RemoteRef == "" {
		p.RemoteRef = remoteRef
		s.petsByID[id] = p
	}
	return nil
}

func (s *Store) SetPetImageRef(ctx context.Context, id, imageRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.petsByID[id]
	if !ok {
		return cache.ErrNotFound
	}
	p.ImageRef = imageRef
	s.petsByID[id] = p
	return nil
}

func (s *Store) SetEventRemoteRef(ctx context.Context, id, remoteRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.eventsByID[id]
	if !ok {
		return cache.ErrNotFound
	}
	if e.RemoteRef == "" {
		e.RemoteRef = remoteRef
		s.eventsByID[id] = e
	}
	return nil
}

func (s *Store) MarkPetPending(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.petsByID[id]; !ok {
		return cache.ErrNotFound
	}
	s.pendingPets[id] = struct{}{}
	return nil
}

func (s *Store) ClearPetPending(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pendingPets, id)
	return nil
}

func (s *Store) ListPendingPets(ctx context.Context) ([]pets.Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]pets.Pet, 0, len(s.pendingPets))
	for id := range s.pendingPets {
		if p, ok := s.petsByID[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) MarkEventPending(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.eventsByID[id]; !ok {
		return cache.ErrNotFound
	}
	s.pendingEvents[id] = struct{}{}
	return nil
}

func (s *Store) ClearEventPending(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pendingEvents, id)
	return nil
}

func (s *Store) ListPendingEvents(ctx context.Context) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]events.Event, 0, len(s.pendingEvents))
	for id := range s.pendingEvents {
		if e, ok := s.eventsByID[id]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

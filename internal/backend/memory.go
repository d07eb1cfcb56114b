package backend

import (
	"context"
	"sync"

	"pet-care-sync/internal/contracts"
)

// MemoryStore es el DocStore in-memory (dev y tests), espejo del
// esquema del de Postgres.
type MemoryStore struct {
	mu     sync.RWMutex
	pets   map[string]contracts.PetDocument
	events map[string]contracts.EventDocument
	shares map[string]contracts.ShareDocument
	blobs  map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pets:   map[string]contracts.PetDocument{},
		events: map[string]contracts.EventDocument{},
		shares: map[string]contracts.ShareDocument{},
		blobs:  map[string][]byte{},
	}
}

var _ DocStore = (*MemoryStore)(nil)

func (s *MemoryStore) CreatePet(ctx context.Context, doc contracts.PetDocument) (contracts.PetDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pets[doc.ID]; ok {
		return contracts.PetDocument{}, ErrAlreadyExists
	}
	doc.RemoteRef = "doc-pet-" + doc.ID
	s.pets[doc.ID] = doc
	return doc, nil
}

func (s *MemoryStore) UpdatePet(ctx context.Context, doc contracts.PetDocument) (contracts.PetDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.pets[doc.ID]
	if !ok {
		return contracts.PetDocument{}, ErrNotFound
	}
	if doc.LastModified.Before(stored.LastModified) {
		return contracts.PetDocument{}, ErrStale
	}
	// El remote_ref lo manda el store, no el cliente.
	doc.RemoteRef = stored.RemoteRef
	s.pets[doc.ID] = doc
	return doc, nil
}

func (s *MemoryStore) DeletePet(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pets[id]; !ok {
		return ErrNotFound
	}
	delete(s.pets, id)
	for eid, e := range s.events {
		if e.PetID == id {
			delete(s.events, eid)
		}
	}
	return nil
}

func (s *MemoryStore) GetPet(ctx context.Context, id string) (contracts.PetDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.pets[id]
	if !ok {
		return contracts.PetDocument{}, ErrNotFound
	}
	return doc, nil
}

func (s *MemoryStore) ListPetsByOwner(ctx context.Context, ownerID string) ([]contracts.PetDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.PetDocument, 0)
	for _, doc := range s.pets {
		if doc.OwnerID == ownerID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateEvent(ctx context.Context, doc contracts.EventDocument) (contracts.EventDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[doc.ID]; ok {
		return contracts.EventDocument{}, ErrAlreadyExists
	}
	doc.RemoteRef = "doc-event-" + doc.ID
	s.events[doc.ID] = doc
	return doc, nil
}

func (s *MemoryStore) UpdateEvent(ctx context.Context, doc contracts.EventDocument) (contracts.EventDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.events[doc.ID]
	if !ok {
		return contracts.EventDocument{}, ErrNotFound
	}
	if doc.LastModified.Before(stored.LastModified) {
		return contracts.EventDocument{}, ErrStale
	}
	doc.RemoteRef = stored.RemoteRef
	s.events[doc.ID] = doc
	return doc, nil
}

func (s *MemoryStore) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return ErrNotFound
	}
	delete(s.events, id)
	return nil
}

func (s *MemoryStore) ListEventsByPet(ctx context.Context, petID string) ([]contracts.EventDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.EventDocument, 0)
	for _, doc := range s.events {
		if doc.PetID == petID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateShare(ctx context.Context, doc contracts.ShareDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shares[doc.ID]; ok {
		return ErrAlreadyExists
	}
	s.shares[doc.ID] = doc
	return nil
}

func (s *MemoryStore) UpdateShare(ctx context.Context, doc contracts.ShareDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shares[doc.ID]; !ok {
		return ErrNotFound
	}
	s.shares[doc.ID] = doc
	return nil
}

func (s *MemoryStore) GetShare(ctx context.Context, id string) (contracts.ShareDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.shares[id]
	if !ok {
		return contracts.ShareDocument{}, ErrNotFound
	}
	return doc, nil
}

func (s *MemoryStore) FindShareBySubject(ctx context.Context, subjectID string) (contracts.ShareDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.shares {
		if doc.SubjectID == subjectID {
			return doc, nil
		}
	}
	return contracts.ShareDocument{}, ErrNotFound
}

func (s *MemoryStore) ListAcceptedShares(ctx context.Context, accountID string) ([]contracts.ShareDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.ShareDocument, 0)
	for _, doc := range s.shares {
		if doc.Accepted && doc.AcceptedBy == accountID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *MemoryStore) PutBlob(ctx context.Context, id string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)
	ref := "blob-" + id
	s.blobs[ref] = cp
	return ref, nil
}

func (s *MemoryStore) GetBlob(ctx context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("events: invalid input")
	ErrNotFound     = errors.New("events: not found")
)

// Service cubre los writes locales de la UI: create optimista +
// encolado para push remoto, igual que pets.Service.
type Service struct {
	cache Store
	now   func() time.Time
}

func NewService(c Store) *Service {
	return &Service{
		cache: c,
		now:   time.Now,
	}
}

type CreateInput struct {
	PetRef     string
	Kind       Kind
	OccurredAt time.Time
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Event, error) {
	petRef := strings.TrimSpace(in.PetRef)
	if petRef == "" || !ValidKind(in.Kind) || in.OccurredAt.IsZero() {
		return Event{}, ErrInvalidInput
	}

	// El padre tiene que existir localmente; un event huérfano solo
	// puede venir del merge remoto, nunca de la UI.
	if _, err := s.cache.GetPet(ctx, petRef); err != nil {
		return Event{}, ErrNotFound
	}

	e := Event{
		ID:           uuid.NewString(),
		PetRef:       petRef,
		Kind:         in.Kind,
		OccurredAt:   in.OccurredAt,
		LastModified: s.now(),
	}

	if _, err := s.cache.UpsertEvent(ctx, e); err != nil {
		return Event{}, err
	}
	if err := s.cache.MarkEventPending(ctx, e.ID); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (s *Service) ListByPet(ctx context.Context, petID string) ([]Event, error) {
	petID = strings.TrimSpace(petID)
	if petID == "" {
		return nil, ErrInvalidInput
	}
	return s.cache.ListEventsByPet(ctx, petID)
}

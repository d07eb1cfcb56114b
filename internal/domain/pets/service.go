package pets

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("pets: invalid input")
	ErrNotFound     = errors.New("pets: not found")
)

// Service cubre los writes que origina la UI: create/update optimista
// contra el cache local, encolando la escritura remota (dos fases
// explícitas: primero cache, después pending; nunca fire-and-forget).
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
	DisplayName string
	ImageBlob   []byte
}

func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (Pet, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" || strings.TrimSpace(in.DisplayName) == "" {
		return Pet{}, ErrInvalidInput
	}

	now := s.now()
	p := Pet{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		ImageBlob:    in.ImageBlob,
		LastModified: now,
		CreatedAt:    now,
	}

	if _, err := s.cache.UpsertPet(ctx, p); err != nil {
		return Pet{}, err
	}
	if err := s.cache.MarkPetPending(ctx, p.ID); err != nil {
		return Pet{}, err
	}
	return p, nil
}

type UpdateInput struct {
	// Punteros para update parcial: nil = no tocar.
	DisplayName *string
	ImageBlob   *[]byte
}

func (s *Service) Update(ctx context.Context, petID, accountID string, in UpdateInput) (Pet, error) {
	petID = strings.TrimSpace(petID)
	if petID == "" || strings.TrimSpace(accountID) == "" {
		return Pet{}, ErrInvalidInput
	}

	p, err := s.cache.GetPet(ctx, petID)
	if err != nil {
		return Pet{}, ErrNotFound
	}
	if !p.CanEdit(accountID, PermissionWrite) {
		return Pet{}, ErrInvalidInput
	}

	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" {
			return Pet{}, ErrInvalidInput
		}
		p.DisplayName = name
	}
	if in.ImageBlob != nil {
		p.ImageBlob = *in.ImageBlob
		// Blob nuevo: la referencia remota queda vacía hasta que el
		// próximo upload tenga éxito.
		p.ImageRef = ""
	}
	p.Touch(s.now())

	if _, err := s.cache.UpsertPet(ctx, p); err != nil {
		return Pet{}, err
	}
	if err := s.cache.MarkPetPending(ctx, petID); err != nil {
		return Pet{}, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, petID string) (Pet, error) {
	p, err := s.cache.GetPet(ctx, petID)
	if err != nil {
		return Pet{}, ErrNotFound
	}
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]Pet, error) {
	return s.cache.ListPets(ctx)
}

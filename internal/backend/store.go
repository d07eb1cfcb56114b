package backend

import (
	"context"
	"errors"

	"pet-care-sync/internal/contracts"
)

// Backend de referencia del servicio de documentos: la contraparte
// servidor del sync client. Guarda documentos tal como viajan
// (contracts), no el modelo de dominio del cliente.

var (
	ErrNotFound      = errors.New("backend: not found")
	ErrAlreadyExists = errors.New("backend: already exists")
	// ErrStale: el documento entrante es más viejo que el guardado.
	ErrStale = errors.New("backend: stale document")
)

type DocStore interface {
	// Pets
	CreatePet(ctx context.Context, doc contracts.PetDocument) (contracts.PetDocument, error)
	UpdatePet(ctx context.Context, doc contracts.PetDocument) (contracts.PetDocument, error)
	DeletePet(ctx context.Context, id string) error
	GetPet(ctx context.Context, id string) (contracts.PetDocument, error)
	ListPetsByOwner(ctx context.Context, ownerID string) ([]contracts.PetDocument, error)

	// Events
	CreateEvent(ctx context.Context, doc contracts.EventDocument) (contracts.EventDocument, error)
	UpdateEvent(ctx context.Context, doc contracts.EventDocument) (contracts.EventDocument, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEventsByPet(ctx context.Context, petID string) ([]contracts.EventDocument, error)

	// Shares
	CreateShare(ctx context.Context, doc contracts.ShareDocument) error
	UpdateShare(ctx context.Context, doc contracts.ShareDocument) error
	GetShare(ctx context.Context, id string) (contracts.ShareDocument, error)
	FindShareBySubject(ctx context.Context, subjectID string) (contracts.ShareDocument, error)
	ListAcceptedShares(ctx context.Context, accountID string) ([]contracts.ShareDocument, error)

	// Blobs
	PutBlob(ctx context.Context, id string, data []byte) (ref string, err error)
	GetBlob(ctx context.Context, ref string) ([]byte, error)
}

package remote

import (
	"context"

	"pet-care-sync/internal/domain/events"
	"pet-care-sync/internal/domain/pets"
)

// Store es el sync client contra el backend de documentos.
//
// Los creates son idempotentes: si ya existe un documento con el mismo
// ID local, un retry se comporta como update en vez de duplicar.
// Timeouts por llamada; un timeout se reporta como ErrNetworkUnavailable.
type Store interface {
	// Pets
	CreatePet(ctx context.Context, part Partition, p pets.Pet) (remoteRef string, err error)
	UpdatePet(ctx context.Context, part Partition, p pets.Pet) error
	DeletePet(ctx context.Context, part Partition, petID string) error
	GetPet(ctx context.Context, part Partition, petID string) (pets.Pet, error)
	// ListPets devuelve las mascotas propias de la cuenta.
	ListPets(ctx context.Context, ownerID string) ([]pets.Pet, error)
	// ListSharedPets devuelve las visibles vía shares aceptados.
	ListSharedPets(ctx context.Context, accountID string) ([]pets.Pet, error)

	// Events
	CreateEvent(ctx context.Context, part Partition, e events.Event) (remoteRef string, err error)
	UpdateEvent(ctx context.Context, part Partition, e events.Event) error
	DeleteEvent(ctx context.Context, part Partition, eventID string) error
	ListEvents(ctx context.Context, part Partition, petID string) ([]events.Event, error)
}

// Authenticator repara credenciales vencidas. El fallback policy lo
// invoca exactamente una vez por operación fallida con
// ErrUnauthenticated, seguido de exactamente un retry.
type Authenticator interface {
	Reauthenticate(ctx context.Context) error
}

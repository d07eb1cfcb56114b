package events

import (
	"context"

	"pet-care-sync/internal/domain/pets"
)

// Store es la porción del cache local que consume el servicio
// (interface del lado consumidor; el contrato completo vive en
// ports/cache). GetPet valida que el padre exista localmente.
type Store interface {
	GetPet(ctx context.Context, id string) (pets.Pet, error)
	UpsertEvent(ctx context.Context, e Event) (bool, error)
	ListEventsByPet(ctx context.Context, petID string) ([]Event, error)
	MarkEventPending(ctx context.Context, id string) error
}

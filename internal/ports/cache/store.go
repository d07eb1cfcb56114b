package cache

import (
	"context"
	"errors"

	"pet-care-sync/internal/domain/events"
	"pet-care-sync/internal/domain/pets"
)

var (
	ErrNotFound = errors.New("not found")
)

// Store es el cache local on-device: fuente de verdad cuando no hay red.
//
// Contrato de upsert: idempotente por ID. Gana el write con LastModified
// mayor; un write con LastModified igual o menor que lo almacenado es un
// no-op (retorna false, nil). Eso hace seguro el replay at-least-once
// del push remoto.
//
// Los errores de storage son fatales para la operación individual pero
// nunca corrompen otras entidades (aislamiento por entidad).
type Store interface {
	// Pets
	UpsertPet(ctx context.Context, p pets.Pet) (bool, error)
	GetPet(ctx context.Context, id string) (pets.Pet, error)
	ListPets(ctx context.Context) ([]pets.Pet, error)
	// DeletePet borra también los events de la mascota.
	DeletePet(ctx context.Context, id string) error

	// Events
	UpsertEvent(ctx context.Context, e events.Event) (bool, error)
	GetEvent(ctx context.Context, id string) (events.Event, error)
	ListEventsByPet(ctx context.Context, petID string) ([]events.Event, error)
	DeleteEvent(ctx context.Context, id string) error

	// Bookkeeping de sync: campos asignados por el backend. Se graban
	// sin tocar LastModified (no son writes de usuario y no deben
	// perder contra la regla de no-op por timestamp). RemoteRef se
	// asigna una sola vez; un segundo valor distinto es error del
	// caller y se ignora.
	SetPetRemoteRef(ctx context.Context, id, remoteRef string) error
	SetPetImageRef(ctx context.Context, id, imageRef string) error
	SetEventRemoteRef(ctx context.Context, id, remoteRef string) error

	// Pendientes de escritura remota. El flag sobrevive a upserts
	// posteriores; solo ClearXxxPending lo apaga.
	MarkPetPending(ctx context.Context, id string) error
	ClearPetPending(ctx context.Context, id string) error
	ListPendingPets(ctx context.Context) ([]pets.Pet, error)

	MarkEventPending(ctx context.Context, id string) error
	ClearEventPending(ctx context.Context, id string) error
	ListPendingEvents(ctx context.Context) ([]events.Event, error)
}

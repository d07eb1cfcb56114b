package pets

import "context"

// Store es la porción del cache local que consume el servicio
// (interface del lado consumidor; el contrato completo vive en
// ports/cache y lo satisfacen los adapters de storage).
type Store interface {
	UpsertPet(ctx context.Context, p Pet) (bool, error)
	GetPet(ctx context.Context, id string) (Pet, error)
	ListPets(ctx context.Context) ([]Pet, error)
	MarkPetPending(ctx context.Context, id string) error
}

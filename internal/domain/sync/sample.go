package sync

import (
	"time"

	"pet-care-sync/internal/domain/pets"
)

// Placeholder determinista para Permanent-ShowSample: dos mascotas con
// identificadores sintéticos estables. Nunca se marcan pending (jamás
// se pushean) y el primer pull real las reemplaza por completo.
const (
	samplePetLunaID  = "sample-pet-luna"
	samplePetRockyID = "sample-pet-rocky"
)

func samplePets(ownerID string, now time.Time) []pets.Pet {
	return []pets.Pet{
		{
			ID:           samplePetLunaID,
			OwnerID:      ownerID,
			DisplayName:  "Luna",
			LastModified: now,
			CreatedAt:    now,
		},
		{
			ID:           samplePetRockyID,
			OwnerID:      ownerID,
			DisplayName:  "Rocky",
			LastModified: now,
			CreatedAt:    now,
		},
	}
}

func isSamplePetID(id string) bool {
	return id == samplePetLunaID || id == samplePetRockyID
}

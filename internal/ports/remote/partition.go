package remote

import "pet-care-sync/internal/domain/pets"

// Partition es el namespace lógico que debe apuntar una operación
// remota: la partición del owner (direccionada por el OwnerID del Pet)
// o la partición compartida (la misma identidad del owner original,
// pero accedida por el co-owner tras aceptar el share).
//
// Escribir a la partición equivocada debe fallar rápido en el backend
// (ErrPermissionDenied), nunca crear un duplicado silencioso.
type Partition struct {
	OwnerID string
	Shared  bool
}

// PartitionFor centraliza la resolución de partición. Era la parte más
// propensa a bugs del diseño original (namespaces cruzados entre owner
// y co-owner), así que vive en una única función pura.
//
// Regla: partición compartida sii el share está aceptado Y la cuenta
// que actúa no es la owner. En cualquier otro caso, partición del owner.
func PartitionFor(p pets.Pet, actingAccountID string) Partition {
	if p.IsShareAccepted && actingAccountID != p.OwnerID {
		return Partition{OwnerID: p.OwnerID, Shared: true}
	}
	return Partition{OwnerID: p.OwnerID, Shared: false}
}

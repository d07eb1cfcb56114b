package pets

import "time"

// Permission define qué puede hacer una cuenta sobre una mascota compartida.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// Pet es el sujeto compartible del sistema.
//
// Vive a la vez en el cache local y en el backend remoto de documentos:
// ID lo genera el cliente y es inmutable; RemoteRef lo asigna el backend
// en el primer write exitoso y no se sobreescribe después.
type Pet struct {
	ID        string
	RemoteRef string // vacío hasta el primer create remoto exitoso

	OwnerID     string
	DisplayName string

	// Imagen: el blob es opaco y viaja a un blob store aparte.
	// ImageRef queda vacío hasta que el upload del blob tenga éxito.
	ImageBlob []byte
	ImageRef  string

	// Estado de compartición.
	IsShared             bool
	IsShareAccepted      bool
	ShareRef             string // id del Share activo; vacío si no hay
	ShareCounterpartName string // identidad de la otra parte, solo tras accept

	LastModified time.Time // única señal de resolución de conflictos
	CreatedAt    time.Time
}

// IsOwnedBy indica si la cuenta es la dueña original.
func (p Pet) IsOwnedBy(accountID string) bool {
	return p.OwnerID == accountID
}

// CanEdit decide si una cuenta puede escribir sobre la mascota.
// El owner siempre puede; un co-owner solo si el permiso otorgado
// incluye escritura y el share está aceptado.
func (p Pet) CanEdit(accountID string, granted Permission) bool {
	if p.IsOwnedBy(accountID) {
		return true
	}
	return p.IsShareAccepted && granted == PermissionWrite
}

// Touch avanza LastModified sin permitir regresiones.
func (p *Pet) Touch(now time.Time) {
	if now.After(p.LastModified) {
		p.LastModified = now
	}
}

package contracts

import "time"

// Shapes de documento del backend remoto. Los comparten el sync client
// (adapters/remote/httpdoc) y el backend de referencia; son el wire
// format, no el modelo de dominio.

// PetDocument es el documento remoto de una mascota.
// Los campos de estado local (share aceptado, blob en memoria) no viajan.
type PetDocument struct {
	ID           string    `json:"id"`
	RemoteRef    string    `json:"remote_ref,omitempty"` // asignado por el backend
	OwnerID      string    `json:"owner_id"`
	DisplayName  string    `json:"display_name"`
	ImageRef     string    `json:"image_ref,omitempty"`
	IsShared     bool      `json:"is_shared"`
	ShareRef     string    `json:"share_ref,omitempty"`
	LastModified time.Time `json:"last_modified"`
	CreatedAt    time.Time `json:"created_at"`
}

// EventDocument es el documento remoto de una entrada de actividad.
type EventDocument struct {
	ID           string    `json:"id"`
	RemoteRef    string    `json:"remote_ref,omitempty"`
	PetID        string    `json:"pet_id"`
	Kind         string    `json:"kind"`
	OccurredAt   time.Time `json:"occurred_at"`
	LastModified time.Time `json:"last_modified"`
}

// ShareDocument es el registro efímero de un grant de compartición.
type ShareDocument struct {
	ID           string     `json:"id"`
	SubjectID    string     `json:"subject_id"`
	IssuerID     string     `json:"issuer_id"`
	IssuerName   string     `json:"issuer_name"`
	TargetHint   string     `json:"target_hint,omitempty"`
	Accepted     bool       `json:"accepted"`
	AcceptedBy   string     `json:"accepted_by,omitempty"`
	AcceptedName string     `json:"accepted_name,omitempty"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
}

// CreateResponse es la respuesta de un create remoto.
type CreateResponse struct {
	RemoteRef string `json:"remote_ref"`
}

// BlobResponse es la respuesta de un upload de blob.
type BlobResponse struct {
	Ref string `json:"ref"`
}

// Prioridades de notificación.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high" // entidad de una mascota compartida
)

// NotificationPayload es lo que entrega el colaborador de push; al
// recibirlo, el core agenda un sync para la cuenta dueña. priority=high
// acorta el delay de scheduling pero no cambia la corrección.
type NotificationPayload struct {
	Type       string `json:"type"` // "entity_update"
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	Priority   string `json:"priority"`
}

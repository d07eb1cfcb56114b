package events

import "time"

// Kind define las categorías soportadas de actividad.
type Kind string

const (
	KindWalk       Kind = "walk"
	KindMeal       Kind = "meal"
	KindMedication Kind = "medication"
	KindGrooming   Kind = "grooming"
	KindVetVisit   Kind = "vet_visit"
	KindPlay       Kind = "play"
)

// ValidKind valida contra el set cerrado de categorías.
func ValidKind(k Kind) bool {
	switch k {
	case KindWalk, KindMeal, KindMedication, KindGrooming, KindVetVisit, KindPlay:
		return true
	}
	return false
}

// Event es una entrada de actividad con timestamp que pertenece a
// exactamente una mascota. No tiene access-control propio: hereda la
// ownership del Pet padre (PetRef).
type Event struct {
	ID        string
	RemoteRef string // vacío hasta el primer create remoto exitoso

	PetRef string // foreign key a Pet.ID
	Kind   Kind

	OccurredAt   time.Time
	LastModified time.Time
}

// Touch avanza LastModified sin permitir regresiones.
func (e *Event) Touch(now time.Time) {
	if now.After(e.LastModified) {
		e.LastModified = now
	}
}

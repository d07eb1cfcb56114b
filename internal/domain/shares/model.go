package shares

import "time"

// State del ciclo de compartición de una mascota. No hay transición de
// vuelta a Private una vez emitido el share (revocación queda como
// punto de extensión futuro).
type State string

const (
	StatePrivate  State = "private"
	StateIssued   State = "issued"
	StateAccepted State = "accepted"
)

// Share es el grant efímero: lo crea el owner, lo consume exactamente
// una vez la aceptación, y después solo muta el flag Accepted.
type Share struct {
	ID              string
	SubjectRef      string // Pet.ID
	IssuedByAccount string
	IssuerName      string
	TargetHint      string // email o equivalente, opcional

	Accepted     bool
	AcceptedBy   string
	AcceptedName string // label humano de quien aceptó; el owner lo usa como counterpart
	AcceptedAt   *time.Time
}

// Handle es lo que se entrega a la capa externa (QR, link) tras issue.
type Handle struct {
	ShareID    string
	SubjectRef string
}

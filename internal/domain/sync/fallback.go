package sync

import (
	"errors"

	"pet-care-sync/internal/ports/remote"
)

// Classification es la decisión del fallback policy frente a un fallo
// remoto. Solo las Permanent-* llegan como fallo visible al usuario;
// las Recoverable-* se reintentan de forma transparente y acotada.
type Classification int

const (
	RecoverableRetry Classification = iota
	RecoverableReauth
	PermanentShowSample
	PermanentFatal
)

func (c Classification) String() string {
	switch c {
	case RecoverableRetry:
		return "recoverable-retry"
	case RecoverableReauth:
		return "recoverable-reauth"
	case PermanentShowSample:
		return "permanent-show-sample"
	default:
		return "permanent-fatal"
	}
}

// Classify mapea la taxonomía remota a una decisión. Conflict no pasa
// por acá: el engine lo resuelve re-pulleando, nunca escala.
func Classify(err error) Classification {
	switch {
	case errors.Is(err, remote.ErrNetworkUnavailable):
		return RecoverableRetry
	case errors.Is(err, remote.ErrUnauthenticated):
		return RecoverableReauth
	case errors.Is(err, remote.ErrPermissionDenied):
		return PermanentShowSample
	default:
		return PermanentFatal
	}
}

// UserMessage devuelve el único mensaje human-readable por entrada de
// la taxonomía. Nunca se expone el error crudo del backend.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, remote.ErrUnauthenticated):
		return "Your session expired. Please sign in again."
	case errors.Is(err, remote.ErrPermissionDenied):
		return "You don't have access to this pet's records."
	case errors.Is(err, remote.ErrNetworkUnavailable):
		return "Can't reach the server. Your changes are saved and will sync later."
	case errors.Is(err, remote.ErrNotFound):
		return "This record no longer exists."
	case errors.Is(err, remote.ErrConflict):
		return "This record was updated elsewhere. The latest version was kept."
	default:
		return "Something went wrong. Please try again."
	}
}

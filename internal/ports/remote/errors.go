package remote

import "errors"

// Taxonomía de errores del backend remoto. Todos los adapters deben
// mapear sus fallos de transporte/backend a uno de estos sentinelas;
// el resto del engine clasifica solo contra ellos (nunca contra el
// error crudo del transporte).
var (
	ErrUnauthenticated    = errors.New("remote: unauthenticated")
	ErrPermissionDenied   = errors.New("remote: permission denied")
	ErrNetworkUnavailable = errors.New("remote: network unavailable")
	ErrNotFound           = errors.New("remote: not found")
	// ErrConflict: el backend rechazó un update por version mismatch
	// detectado de su lado. Se resuelve re-pulleando, nunca escala.
	ErrConflict = errors.New("remote: conflict")
)

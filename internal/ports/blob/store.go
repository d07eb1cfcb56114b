package blob

import "context"

// Store es el blob store remoto para payloads de imagen.
//
// Los blobs viajan aparte del documento: el documento se escribe
// primero con referencia vacía y se repara cuando un Put tiene éxito.
// Un fallo de upload nunca bloquea la creación del documento.
type Store interface {
	Put(ctx context.Context, id string, data []byte) (ref string, err error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

package shares

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
)

// El share viaja como una URI pequeña con scheme fijo y un único query
// param con el identificador opaco: petcare://share?id=<token>.
// El QR / deep link son colaboradores externos; acá solo está el codec.

const (
	urlScheme = "petcare"
	urlHost   = "share"
	urlParam  = "id"
)

var ErrInvalidPayload = errors.New("shares: invalid payload")

// EncodeURL codifica el share id en la URL de handoff. Determinista y
// reversible: DecodeURL(EncodeURL(h)) == h.ShareID.
func EncodeURL(h Handle) string {
	token := base64.RawURLEncoding.EncodeToString([]byte(h.ShareID))
	u := url.URL{
		Scheme:   urlScheme,
		Host:     urlHost,
		RawQuery: url.Values{urlParam: []string{token}}.Encode(),
	}
	return u.String()
}

// DecodeURL extrae el share id de una URL de handoff. Valida scheme y
// host antes de tocar el payload; cualquier malformación falla cerrado
// con ErrInvalidPayload (nunca un panic hacia la capa de UI).
func DecodeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPayload
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidPayload
	}
	if u.Scheme != urlScheme || u.Host != urlHost {
		return "", ErrInvalidPayload
	}

	token := u.Query().Get(urlParam)
	if token == "" {
		return "", ErrInvalidPayload
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(decoded) == 0 {
		return "", ErrInvalidPayload
	}
	return string(decoded), nil
}

package httpdoc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"pet-care-sync/internal/contracts"
	"pet-care-sync/internal/domain/events"
	"pet-care-sync/internal/domain/pets"
	"pet-care-sync/internal/domain/shares"
	"pet-care-sync/internal/platform/httpclient"
	"pet-care-sync/internal/ports/remote"
)

// TokenSource entrega el token vigente por request, así la re-auth
// puede rotarlo sin reconstruir el cliente.
type TokenSource interface {
	Token() string
}

// StaticToken es un TokenSource fijo (dev/tests).
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

type Config struct {
	BaseURL   string
	AccountID string // identidad que actúa; viaja en cada request
	Tokens    TokenSource
	Timeout   time.Duration
}

// Client habla con el backend de documentos y mapea entidades ⇄ docs.
// Implementa remote.Store, shares.RemoteStore y blob.Store.
type Client struct {
	http      *httpclient.Client
	accountID string
	tokens    TokenSource
}

func NewClient(cfg Config) (*Client, error) {
	hc, err := httpclient.NewWithBaseURL(cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	if cfg.AccountID == "" {
		return nil, errors.New("httpdoc: account id required")
	}
	return &Client{
		http:      hc,
		accountID: cfg.AccountID,
		tokens:    cfg.Tokens,
	}, nil
}

var _ remote.Store = (*Client)(nil)

func (c *Client) headers() map[string]string {
	h := map[string]string{
		"X-Account-ID": c.accountID,
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			h["Authorization"] = "Bearer " + tok
		}
	}
	return h
}

// mapError traduce fallos de transporte/HTTP a la taxonomía remota.
// Nada fuera de esta función inspecciona el error crudo.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %d", remote.ErrUnauthenticated, httpErr.StatusCode)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %d", remote.ErrPermissionDenied, httpErr.StatusCode)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %d", remote.ErrNotFound, httpErr.StatusCode)
		case http.StatusConflict:
			return fmt.Errorf("%w: %d", remote.ErrConflict, httpErr.StatusCode)
		default:
			return fmt.Errorf("%w: status %d", remote.ErrNetworkUnavailable, httpErr.StatusCode)
		}
	}

	// Timeouts y fallos de red quedan como NetworkUnavailable.
	return fmt.Errorf("%w: %v", remote.ErrNetworkUnavailable, err)
}

func partPath(part remote.Partition) string {
	return "/v1/partitions/" + url.PathEscape(part.OwnerID)
}

// ---- Pets ----

func (c *Client) CreatePet(ctx context.Context, part remote.Partition, p pets.Pet) (string, error) {
	var out contracts.CreateResponse
	err := c.http.DoJSON(ctx, http.MethodPost, partPath(part)+"/pets", c.headers(), toPetDocument(p), &out)
	if err != nil {
		// Create idempotente: si el doc ya existe con el mismo id,
		// un retry se comporta como update en vez de duplicar.
		if errors.Is(mapError(err), remote.ErrConflict) {
			existing, gerr := c.GetPet(ctx, part, p.ID)
			if gerr != nil {
				return "", gerr
			}
			if uerr := c.UpdatePet(ctx, part, p); uerr != nil {
				return "", uerr
			}
			return existing.RemoteRef, nil
		}
		return "", mapError(err)
	}
	return out.RemoteRef, nil
}

func (c *Client) UpdatePet(ctx context.Context, part remote.Partition, p pets.Pet) error {
	path := partPath(part) + "/pets/" + url.PathEscape(p.ID)
	return mapError(c.http.DoJSON(ctx, http.MethodPut, path, c.headers(), toPetDocument(p), nil))
}

func (c *Client) DeletePet(ctx context.Context, part remote.Partition, petID string) error {
	path := partPath(part) + "/pets/" + url.PathEscape(petID)
	return mapError(c.http.DoJSON(ctx, http.MethodDelete, path, c.headers(), nil, nil))
}

func (c *Client) GetPet(ctx context.Context, part remote.Partition, petID string) (pets.Pet, error) {
	var doc contracts.PetDocument
	path := partPath(part) + "/pets/" + url.PathEscape(petID)
	if err := c.http.DoJSON(ctx, http.MethodGet, path, c.headers(), nil, &doc); err != nil {
		return pets.Pet{}, mapError(err)
	}
	return fromPetDocument(doc), nil
}

func (c *Client) ListPets(ctx context.Context, ownerID string) ([]pets.Pet, error) {
	var docs []contracts.PetDocument
	path := "/v1/partitions/" + url.PathEscape(ownerID) + "/pets"
	if err := c.http.DoJSON(ctx, http.MethodGet, path, c.headers(), nil, &docs); err != nil {
		return nil, mapError(err)
	}
	out := make([]pets.Pet, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromPetDocument(d))
	}
	return out, nil
}

func (c *Client) ListSharedPets(ctx context.Context, accountID string) ([]pets.Pet, error) {
	var docs []contracts.PetDocument
	path := "/v1/accounts/" + url.PathEscape(accountID) + "/shared-pets"
	if err := c.http.DoJSON(ctx, http.MethodGet, path, c.headers(), nil, &docs); err != nil {
		return nil, mapError(err)
	}
	out := make([]pets.Pet, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromPetDocument(d))
	}
	return out, nil
}

// ---- Events ----

func (c *Client) CreateEvent(ctx context.Context, part remote.Partition, e events.Event) (string, error) {
	var out contracts.CreateResponse
	err := c.http.DoJSON(ctx, http.MethodPost, partPath(part)+"/events", c.headers(), toEventDocument(e), &out)
	if err != nil {
		if errors.Is(mapError(err), remote.ErrConflict) {
			if uerr := c.UpdateEvent(ctx, part, e); uerr != nil {
				return "", uerr
			}
			return e.ID, nil
		}
		return "", mapError(err)
	}
	return out.RemoteRef, nil
}

func (c *Client) UpdateEvent(ctx context.Context, part remote.Partition, e events.Event) error {
	path := partPath(part) + "/events/" + url.PathEscape(e.ID)
	return mapError(c.http.DoJSON(ctx, http.MethodPut, path, c.headers(), toEventDocument(e), nil))
}

func (c *Client) DeleteEvent(ctx context.Context, part remote.Partition, eventID string) error {
	path := partPath(part) + "/events/" + url.PathEscape(eventID)
	return mapError(c.http.DoJSON(ctx, http.MethodDelete, path, c.headers(), nil, nil))
}

func (c *Client) ListEvents(ctx context.Context, part remote.Partition, petID string) ([]events.Event, error) {
	var docs []contracts.EventDocument
	path := partPath(part) + "/pets/" + url.PathEscape(petID) + "/events"
	if err := c.http.DoJSON(ctx, http.MethodGet, path, c.headers(), nil, &docs); err != nil {
		return nil, mapError(err)
	}
	out := make([]events.Event, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromEventDocument(d))
	}
	return out, nil
}

// ---- Shares ----

func (c *Client) CreateShare(ctx context.Context, s shares.Share) error {
	return mapError(c.http.DoJSON(ctx, http.MethodPost, "/v1/shares", c.headers(), toShareDocument(s), nil))
}

func (c *Client) GetShare(ctx context.Context, id string) (shares.Share, error) {
	var doc contracts.ShareDocument
	path := "/v1/shares/" + url.PathEscape(id)
	if err := c.http.DoJSON(ctx, http.MethodGet, path, c.headers(), nil, &doc); err != nil {
		return shares.Share{}, mapError(err)
	}
	return fromShareDocument(doc), nil
}

func (c *Client) UpdateShare(ctx context.Context, s shares.Share) error {
	path := "/v1/shares/" + url.PathEscape(s.ID)
	return mapError(c.http.DoJSON(ctx, http.MethodPut, path, c.headers(), toShareDocument(s), nil))
}

func (c *Client) FindShareBySubject(ctx context.Context, subjectRef string) (shares.Share, error) {
	var doc contracts.ShareDocument
	path := "/v1/shares?subject=" + url.QueryEscape(subjectRef)
	if err := c.http.DoJSON(ctx, http.MethodGet, path, c.headers(), nil, &doc); err != nil {
		return shares.Share{}, mapError(err)
	}
	return fromShareDocument(doc), nil
}

// ---- Blobs ----

type blobDocument struct {
	Data []byte `json:"data"`
}

func (c *Client) Put(ctx context.Context, id string, data []byte) (string, error) {
	var out contracts.BlobResponse
	path := "/v1/blobs/" + url.PathEscape(id)
	if err := c.http.DoJSON(ctx, http.MethodPut, path, c.headers(), blobDocument{Data: data}, &out); err != nil {
		return "", mapError(err)
	}
	return out.Ref, nil
}

func (c *Client) Get(ctx context.Context, ref string) ([]byte, error) {
	var doc blobDocument
	path := "/v1/blobs/" + url.PathEscape(ref)
	if err := c.http.DoJSON(ctx, http.MethodGet, path, c.headers(), nil, &doc); err != nil {
		return nil, mapError(err)
	}
	return doc.Data, nil
}

package httpdoc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pet-care-sync/internal/contracts"
	"pet-care-sync/internal/domain/pets"
	"pet-care-sync/internal/ports/remote"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL:   srv.URL,
		AccountID: "acct-a",
		Tokens:    StaticToken("tok-1"),
		Timeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	return c, srv
}

func TestClient_SendsIdentityHeaders(t *testing.T) {
	var gotAccount, gotAuth string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccount = r.Header.Get("X-Account-ID")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([]contracts.PetDocument{})
	}))

	if _, err := c.ListPets(context.Background(), "acct-a"); err != nil {
		t.Fatalf("ListPets error: %v", err)
	}
	if gotAccount != "acct-a" {
		t.Fatalf("expected account header, got %q", gotAccount)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
}

func TestClient_MapsStatusCodesToTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, remote.ErrUnauthenticated},
		{http.StatusForbidden, remote.ErrPermissionDenied},
		{http.StatusNotFound, remote.ErrNotFound},
		{http.StatusConflict, remote.ErrConflict},
		{http.StatusInternalServerError, remote.ErrNetworkUnavailable},
		{http.StatusBadGateway, remote.ErrNetworkUnavailable},
	}

	for _, tc := range cases {
		status := tc.status
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", status)
		}))
		_, err := c.GetPet(context.Background(), remote.Partition{OwnerID: "acct-a"}, "pet-1")
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestClient_TransportFailureIsNetworkUnavailable(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := c.ListPets(context.Background(), "acct-a")
	if !errors.Is(err, remote.ErrNetworkUnavailable) {
		t.Fatalf("expected ErrNetworkUnavailable, got %v", err)
	}
}

func TestClient_CreatePet_RetryBehavesAsUpdate(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var updates int

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/partitions/acct-a/pets", func(w http.ResponseWriter, r *http.Request) {
		// El doc ya existe: el retry no debe duplicar.
		http.Error(w, "exists", http.StatusConflict)
	})
	mux.HandleFunc("GET /v1/partitions/acct-a/pets/pet-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(contracts.PetDocument{
			ID: "pet-1", RemoteRef: "remote-pet-1", OwnerID: "acct-a",
			DisplayName: "Luna", LastModified: base, CreatedAt: base,
		})
	})
	mux.HandleFunc("PUT /v1/partitions/acct-a/pets/pet-1", func(w http.ResponseWriter, r *http.Request) {
		updates++
		w.WriteHeader(http.StatusNoContent)
	})

	c, _ := newTestClient(t, mux)

	ref, err := c.CreatePet(context.Background(), remote.Partition{OwnerID: "acct-a"}, pets.Pet{
		ID: "pet-1", OwnerID: "acct-a", DisplayName: "Luna", LastModified: base, CreatedAt: base,
	})
	if err != nil {
		t.Fatalf("CreatePet error: %v", err)
	}
	if ref != "remote-pet-1" {
		t.Fatalf("expected existing remote ref, got %q", ref)
	}
	if updates != 1 {
		t.Fatalf("expected exactly 1 update, got %d", updates)
	}
}

func TestClient_PutBlobReturnsRef(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var doc blobDocument
		_ = json.NewDecoder(r.Body).Decode(&doc)
		if len(doc.Data) == 0 {
			http.Error(w, "empty", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(contracts.BlobResponse{Ref: "blob-pet-1"})
	}))

	ref, err := c.Put(context.Background(), "pet-1", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if ref != "blob-pet-1" {
		t.Fatalf("expected blob ref, got %q", ref)
	}
}

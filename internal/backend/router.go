package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"pet-care-sync/internal/contracts"
	"pet-care-sync/internal/platform/logger"
)

// Notifier avisa a una cuenta que una entidad suya (o compartida con
// ella) cambió, para que agende un sync. Best-effort.
type Notifier interface {
	NotifyAccount(accountID string, p contracts.NotificationPayload)
}

type noopNotifier struct{}

func (noopNotifier) NotifyAccount(string, contracts.NotificationPayload) {}

type Options struct {
	Store    DocStore // default: in-memory
	Notifier Notifier // puede ser nil
	Log      logger.Logger
}

type server struct {
	store  DocStore
	notify Notifier
	log    logger.Logger
}

func NewRouter(opts Options) http.Handler {
	s := &server{
		store:  opts.Store,
		notify: opts.Notifier,
		log:    opts.Log,
	}
	if s.store == nil {
		s.store = NewMemoryStore()
	}
	if s.notify == nil {
		s.notify = noopNotifier{}
	}
	if s.log == nil {
		s.log = logger.NewFromEnv()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(accountContext)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/partitions/{ownerID}", func(r chi.Router) {
			r.Post("/pets", s.createPet)
			r.Get("/pets", s.listPets)
			r.Get("/pets/{petID}", s.getPet)
			r.Put("/pets/{petID}", s.updatePet)
			r.Delete("/pets/{petID}", s.deletePet)
			r.Get("/pets/{petID}/events", s.listEvents)

			r.Post("/events", s.createEvent)
			r.Put("/events/{eventID}", s.updateEvent)
			r.Delete("/events/{eventID}", s.deleteEvent)
		})

		r.Get("/accounts/{accountID}/shared-pets", s.listSharedPets)

		r.Post("/shares", s.createShare)
		r.Get("/shares", s.findShareBySubject)
		r.Get("/shares/{shareID}", s.getShare)
		r.Put("/shares/{shareID}", s.updateShare)

		r.Put("/blobs/{blobID}", s.putBlob)
		r.Get("/blobs/{blobID}", s.getBlob)
	})

	return r
}

// ---- identidad ----

type ctxKey string

const accountKey ctxKey = "account"

// accountContext extrae la identidad que actúa. Sin ella el request es
// anónimo y toda ruta de datos responde 401.
func accountContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get("X-Account-ID")); id != "" {
			r = r.WithContext(context.WithValue(r.Context(), accountKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

func actingAccount(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(accountKey).(string)
	return v, ok && v != ""
}

// canAccessPet decide si la cuenta puede tocar la mascota de otra
// partición: solo el counterpart de un share aceptado.
func (s *server) canAccessPet(ctx context.Context, acting, ownerID, petID string) bool {
	if acting == ownerID {
		return true
	}
	share, err := s.store.FindShareBySubject(ctx, petID)
	if err != nil {
		return false
	}
	return share.Accepted && share.AcceptedBy == acting && share.IssuerID == ownerID
}

// ---- pets ----

func (s *server) createPet(w http.ResponseWriter, r *http.Request) {
	acting, ok := actingAccount(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ownerID := chi.URLParam(r, "ownerID")
	if acting != ownerID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var doc contracts.PetDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(doc.ID) == "" || doc.OwnerID != ownerID {
		http.Error(w, "invalid document", http.StatusBadRequest)
		return
	}

	stored, err := s.store.CreatePet(r.Context(), doc)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.notifyPetChange(r.Context(), stored)
	writeJSON(w, http.StatusCreated, contracts.CreateResponse{RemoteRef: stored.RemoteRef})
}

func (s *server) listPets(w http.ResponseWriter, r *http.Request) {
	acting, ok := actingAccount(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ownerID := chi.URLParam(r, "ownerID")
	if acting != ownerID {
		// El listado de una partición ajena nunca se expone entero.
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	docs, err := s.store.ListPetsByOwner(r.Context(), ownerID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *server) getPet(w http.ResponseWriter, r *http.Request) {
	acting, ok := actingAccount(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ownerID := chi.URLParam(r, "ownerID")
	petID := chi.URLParam(r, "petID")

	doc, err := s.store.GetPet(r.Context(), petID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if doc.OwnerID != ownerID {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	// Excepción de preview: un share emitido y aún no aceptado permite
	// leer el documento del sujeto para la pantalla de confirmación.
	if acting != ownerID && !s.canAccessPet(r.Context(), acting, ownerID, petID) {
		share, err := s.store.FindShareBySubject(r.Context(), petID)
		if err != nil || share.Accepted {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *server) updatePet(w http.ResponseWriter, r *http.Request) {
	acting, ok := actingAccount(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ownerID := chi.URLParam(r, "ownerID")
	petID := chi.URLParam(r, "petID")
	if !s.canAccessPet(r.Context(), acting, ownerID, petID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var doc contracts.PetDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	doc.ID = petID
	doc.OwnerID = ownerID

	stored, err := s.store.UpdatePet(r.Context(), doc)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.notifyPetChange(r.Context(), stored)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) deletePet(w http.ResponseWriter, r *http.Request) {
	acting, ok := actingAccount(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ownerID := chi.URLParam(r, "ownerID")
	petID := chi.URLParam(r, "petID")
	// Borrar es siempre del owner; el co-owner solo desvincula local.
	if acting != ownerID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if err := s.store.DeletePet(r.Context(), petID); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) listSharedPets(w http.ResponseWriter, r *http.Request) {
	acting, ok := actingAccount(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	accountID := chi.URLParam(r, "accountID")
	if acting != accountID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	shares, err := s.store.ListAcceptedShares(r.Context(), accountID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	out := make([]contracts.PetDocument, 0, len(shares))
	for _, sh := range shares {
		doc, err := s.store.GetPet(r.Context(), sh.SubjectID)
		if err != nil {
			// El sujeto pudo haber sido borrado por el owner.
			continue
		}
		out = append(out, doc)
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- events ----

func (s *server) createEvent(w http.ResponseWriter, r *http.Request) {
	acting, ok := actingAccount(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ownerID := chi.URLParam(r, "ownerID")

	var doc contracts.EventDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(doc.ID) == "" || strings.TrimSpace(doc.PetID) == "" {
		http.Error(w, "invalid document", http.StatusBadRequest)
		return
	}
	if !s.canAccessPet(r.Context(), acting, ownerID, doc.PetID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	stored, err := s.store.CreateEvent(r.Context(), doc)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.notifyEventChange(r.Context(), stored)
	writeJSON(w, http.StatusCreated, contracts.CreateResponse{RemoteRef: stored.RemoteRef})
}

func (s *server) updateEvent(w http.ResponseWriter, r *http.Request) {
	acting, ok := actingAccount(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ownerID := chi.URLParam(r, "ownerID")
	eventID := chi.URLParam(r, "eventID")

	var doc contracts.EventDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	doc.ID = eventID
	if !s.canAccessPet(r.Context(), acting, ownerID, doc.PetID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	stored, err := s.store.UpdateEvent(r.Context(), doc)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.notifyEventChange(r.Context(), stored)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	acting, ok := actingAccount(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ownerID := chi.URLParam(r, "ownerID")
	if acting != ownerID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if err := s.store.DeleteEvent(r.Context(), chi.URLParam(r, "eventID")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) listEvents(w http.ResponseWriter, r *http.Request) {
	acting, ok := actingAccount(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ownerID := chi.URLParam(r, "ownerID")
	petID := chi.URLParam(r, "petID")
	if !s.canAccessPet(r.Context(), acting, ownerID, petID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	docs, err := s.store.ListEventsByPet(r.Context(), petID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// ---- shares ----

func (s *server) createShare(w http.ResponseWriter, r *http.Request) {
	acting, ok := actingAccount(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var doc contracts.ShareDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(doc.ID) == "" || strings.TrimSpace(doc.SubjectID) == "" {
		http.Error(w, "invalid document", http.StatusBadRequest)
		return
	}
	// Solo el owner del sujeto puede emitir el share.
	subject, err := s.store.GetPet(r.Context(), doc.SubjectID)
	if err != nil || subject.OwnerID != acting || doc.IssuerID != acting {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if err := s.store.CreateShare(r.Context(), doc); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *server) getShare(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingAccount(r.Context()); !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	doc, err := s.store.GetShare(r.Context(), chi.URLParam(r, "shareID"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *server) findShareBySubject(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingAccount(r.Context()); !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	subject := strings.TrimSpace(r.URL.Query().Get("subject"))
	if subject == "" {
		http.Error(w, "subject required", http.StatusBadRequest)
		return
	}
	doc, err := s.store.FindShareBySubject(r.Context(), subject)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *server) updateShare(w http.ResponseWriter, r *http.Request) {
	acting, ok := actingAccount(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	shareID := chi.URLParam(r, "shareID")

	stored, err := s.store.GetShare(r.Context(), shareID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	var doc contracts.ShareDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	doc.ID = shareID

	// Dos escrituras legítimas: el issuer ajusta su share, o una cuenta
	// cualquiera lo acepta. Un share aceptado queda inmutable para
	// terceros (consumo único, exactamente dos cuentas involucradas).
	if acting != stored.IssuerID {
		if stored.Accepted && stored.AcceptedBy != acting {
			http.Error(w, "conflict: already accepted", http.StatusConflict)
			return
		}
		if !doc.Accepted || doc.AcceptedBy != acting {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	if err := s.store.UpdateShare(r.Context(), doc); err != nil {
		s.writeStoreError(w, err)
		return
	}

	// El accept es el cambio que el issuer quiere enterarse rápido.
	if doc.Accepted && !stored.Accepted {
		s.notify.NotifyAccount(stored.IssuerID, contracts.NotificationPayload{
			Type:       "entity_update",
			EntityKind: "share",
			EntityID:   shareID,
			Priority:   contracts.PriorityHigh,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- blobs ----

type blobBody struct {
	Data []byte `json:"data"`
}

func (s *server) putBlob(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingAccount(r.Context()); !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var body blobBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	ref, err := s.store.PutBlob(r.Context(), chi.URLParam(r, "blobID"), body.Data)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contracts.BlobResponse{Ref: ref})
}

func (s *server) getBlob(w http.ResponseWriter, r *http.Request) {
	if _, ok := actingAccount(r.Context()); !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	data, err := s.store.GetBlob(r.Context(), chi.URLParam(r, "blobID"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blobBody{Data: data})
}

// ---- helpers ----

// notifyPetChange avisa al owner y, si hay share aceptado, al
// counterpart con prioridad alta.
func (s *server) notifyPetChange(ctx context.Context, doc contracts.PetDocument) {
	s.notify.NotifyAccount(doc.OwnerID, contracts.NotificationPayload{
		Type: "entity_update", EntityKind: "pet", EntityID: doc.ID, Priority: contracts.PriorityNormal,
	})
	if share, err := s.store.FindShareBySubject(ctx, doc.ID); err == nil && share.Accepted {
		s.notify.NotifyAccount(share.AcceptedBy, contracts.NotificationPayload{
			Type: "entity_update", EntityKind: "pet", EntityID: doc.ID, Priority: contracts.PriorityHigh,
		})
	}
}

func (s *server) notifyEventChange(ctx context.Context, doc contracts.EventDocument) {
	pet, err := s.store.GetPet(ctx, doc.PetID)
	if err != nil {
		return
	}
	s.notify.NotifyAccount(pet.OwnerID, contracts.NotificationPayload{
		Type: "entity_update", EntityKind: "event", EntityID: doc.ID, Priority: contracts.PriorityNormal,
	})
	if share, err := s.store.FindShareBySubject(ctx, doc.PetID); err == nil && share.Accepted {
		s.notify.NotifyAccount(share.AcceptedBy, contracts.NotificationPayload{
			Type: "entity_update", EntityKind: "event", EntityID: doc.ID, Priority: contracts.PriorityHigh,
		})
	}
}

func (s *server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrStale):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.log.Error("store failure", map[string]any{"error": err.Error()})
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package shares

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pet-care-sync/internal/domain/pets"
	"pet-care-sync/internal/platform/logger"
	"pet-care-sync/internal/ports/cache"
	"pet-care-sync/internal/ports/remote"
)

var (
	ErrInvalidInput    = errors.New("shares: invalid input")
	ErrNotOwner        = errors.New("shares: not owner")
	ErrNotFound        = errors.New("shares: not found")
	ErrShareExpired    = errors.New("shares: share expired")
	ErrAlreadyAccepted = errors.New("shares: already accepted")
	// ErrAcceptedFetchFailed: el share quedó marcado accepted pero el
	// fetch del Pet falló. El caller puede reintentar Accept sin
	// re-emitir la aceptación (no vuelve a mutar el share).
	ErrAcceptedFetchFailed = errors.New("shares: accepted but subject fetch failed")
)

// RemoteStore es lo que el share manager necesita del backend para los
// documentos de share (interface del lado consumidor, como hace el
// resto del dominio).
type RemoteStore interface {
	CreateShare(ctx context.Context, s Share) error
	GetShare(ctx context.Context, id string) (Share, error)
	UpdateShare(ctx context.Context, s Share) error
	FindShareBySubject(ctx context.Context, subjectRef string) (Share, error)
}

// AccountLocker serializa operaciones de share contra ciclos de sync en
// vuelo de la misma cuenta (un issue contra un remoteRef viejo es una
// race real).
type AccountLocker interface {
	LockAccount(accountID string) (unlock func())
}

type Service struct {
	cache  cache.Store
	remote remote.Store
	shares RemoteStore
	locks  AccountLocker
	log    logger.Logger
	now    func() time.Time
}

func NewService(c cache.Store, r remote.Store, s RemoteStore, locks AccountLocker, log logger.Logger) *Service {
	return &Service{
		cache:  c,
		remote: r,
		shares: s,
		locks:  locks,
		log:    log,
		now:    time.Now,
	}
}

// Preview es la vista read-only previa a aceptar (UI de confirmación).
type Preview struct {
	SubjectName       string
	IssuerDisplayName string
}

// Issue emite (o reutiliza) el share de una mascota y transiciona
// Private → Issued. Solo el owner puede emitir.
func (s *Service) Issue(ctx context.Context, petID, accountID, accountName string) (Handle, error) {
	petID = strings.TrimSpace(petID)
	accountID = strings.TrimSpace(accountID)
	if petID == "" || accountID == "" {
		return Handle{}, ErrInvalidInput
	}

	unlock := s.locks.LockAccount(accountID)
	defer unlock()

	p, err := s.cache.GetPet(ctx, petID)
	if err != nil {
		return Handle{}, ErrNotFound
	}
	if !p.IsOwnedBy(accountID) {
		return Handle{}, ErrNotOwner
	}

	// Reutilizar un share vigente antes de crear otro: primero el que
	// la mascota ya referencia, después lookup remoto por subjectRef.
	// Un share aceptado es terminal (no hay salida de Accepted): nunca
	// se emite un segundo share sobre el mismo subjectRef.
	if p.ShareRef != "" {
		if existing, err := s.shares.GetShare(ctx, p.ShareRef); err == nil {
			if existing.Accepted {
				return Handle{}, ErrAlreadyAccepted
			}
			return Handle{ShareID: existing.ID, SubjectRef: petID}, nil
		}
	}
	if existing, err := s.shares.FindShareBySubject(ctx, petID); err == nil {
		if existing.Accepted {
			return Handle{}, ErrAlreadyAccepted
		}
		return s.attachShare(ctx, p, existing)
	}

	share := Share{
		ID:              uuid.NewString(),
		SubjectRef:      petID,
		IssuedByAccount: accountID,
		IssuerName:      strings.TrimSpace(accountName),
	}
	if err := s.shares.CreateShare(ctx, share); err != nil {
		return Handle{}, fmt.Errorf("create share: %w", err)
	}

	s.log.Info("share issued", map[string]any{"pet_id": petID, "share_id": share.ID})
	return s.attachShare(ctx, p, share)
}

// attachShare deja el estado de compartición del Pet en el cache local
// y lo encola para push remoto.
func (s *Service) attachShare(ctx context.Context, p pets.Pet, share Share) (Handle, error) {
	p.IsShared = true
	p.ShareRef = share.ID
	p.Touch(s.now())

	if _, err := s.cache.UpsertPet(ctx, p); err != nil {
		return Handle{}, err
	}
	if err := s.cache.MarkPetPending(ctx, p.ID); err != nil {
		return Handle{}, err
	}
	return Handle{ShareID: share.ID, SubjectRef: p.ID}, nil
}

// Resolve es la preview read-only de un share aún no consumido.
func (s *Service) Resolve(ctx context.Context, shareID string) (Preview, error) {
	shareID = strings.TrimSpace(shareID)
	if shareID == "" {
		return Preview{}, ErrInvalidInput
	}

	share, err := s.shares.GetShare(ctx, shareID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return Preview{}, ErrNotFound
		}
		return Preview{}, err
	}
	// Un share ya consumido no se puede volver a aceptar; para la
	// preview cuenta como expirado.
	if share.Accepted {
		return Preview{}, ErrShareExpired
	}

	subject, err := s.remote.GetPet(ctx, remote.Partition{OwnerID: share.IssuedByAccount}, share.SubjectRef)
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		SubjectName:       subject.DisplayName,
		IssuerDisplayName: share.IssuerName,
	}, nil
}

// Accept consume el share: lo marca accepted, trae el Pet de la
// partición del owner y guarda la copia local del co-owner.
//
// Idempotencia: un segundo Accept con el mismo share devuelve
// ErrAlreadyAccepted y no duplica el Pet local. Excepción: si el accept
// anterior quedó a medias (share accepted por esta misma cuenta pero el
// Pet nunca llegó al cache), se reintenta solo el fetch.
func (s *Service) Accept(ctx context.Context, shareID, accountID, accountName string) (pets.Pet, error) {
	shareID = strings.TrimSpace(shareID)
	accountID = strings.TrimSpace(accountID)
	if shareID == "" || accountID == "" {
		return pets.Pet{}, ErrInvalidInput
	}

	unlock := s.locks.LockAccount(accountID)
	defer unlock()

	share, err := s.shares.GetShare(ctx, shareID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return pets.Pet{}, ErrNotFound
		}
		return pets.Pet{}, err
	}

	if share.Accepted {
		if share.AcceptedBy != accountID {
			return pets.Pet{}, ErrAlreadyAccepted
		}
		if _, err := s.cache.GetPet(ctx, share.SubjectRef); err == nil {
			return pets.Pet{}, ErrAlreadyAccepted
		}
		// Fallo parcial previo: el fetch quedó pendiente, retomarlo.
		return s.fetchAccepted(ctx, share, accountID)
	}

	now := s.now()
	share.Accepted = true
	share.AcceptedBy = accountID
	share.AcceptedName = strings.TrimSpace(accountName)
	share.AcceptedAt = &now
	if err := s.shares.UpdateShare(ctx, share); err != nil {
		return pets.Pet{}, fmt.Errorf("mark share accepted: %w", err)
	}

	return s.fetchAccepted(ctx, share, accountID)
}

func (s *Service) fetchAccepted(ctx context.Context, share Share, accountID string) (pets.Pet, error) {
	part := remote.Partition{OwnerID: share.IssuedByAccount, Shared: true}
	subject, err := s.remote.GetPet(ctx, part, share.SubjectRef)
	if err != nil {
		s.log.Warn("share accepted but subject fetch failed", map[string]any{
			"share_id": share.ID, "pet_id": share.SubjectRef, "error": err.Error(),
		})
		return pets.Pet{}, fmt.Errorf("%w: %v", ErrAcceptedFetchFailed, err)
	}

	// Copia local del co-owner: el counterpart es el emisor, porque
	// todas las escrituras posteriores deben resolver la partición
	// compartida a partir de su identidad.
	subject.IsShared = true
	subject.IsShareAccepted = true
	subject.ShareRef = share.ID
	subject.ShareCounterpartName = share.IssuerName

	if _, err := s.cache.UpsertPet(ctx, subject); err != nil {
		return pets.Pet{}, err
	}

	s.log.Info("share accepted", map[string]any{
		"share_id": share.ID, "pet_id": subject.ID, "account_id": accountID,
	})
	return subject, nil
}

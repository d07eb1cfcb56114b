package sync

import (
	"context"
	"errors"
	"strings"
	stdsync "sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pet-care-sync/internal/domain/events"
	"pet-care-sync/internal/domain/pets"
	"pet-care-sync/internal/domain/shares"
	"pet-care-sync/internal/platform/logger"
	"pet-care-sync/internal/ports/blob"
	"pet-care-sync/internal/ports/cache"
	"pet-care-sync/internal/ports/remote"
)

var ErrInvalidAccount = errors.New("sync: invalid account")

// Cuántos ciclos retenemos un event huérfano antes de descartarlo.
const defaultMaxOrphanCycles = 5

// ShareReader es la vista mínima del backend de shares que el engine
// necesita para propagar la aceptación al lado del owner.
type ShareReader interface {
	GetShare(ctx context.Context, id string) (shares.Share, error)
}

// Report resume un ciclo de sync. OrphansDropped > 0 es la señal de
// que se descartaron events tras agotar los reintentos (nunca se
// pierden en silencio).
type Report struct {
	PulledPets   int
	PulledEvents int
	PushedPets   int
	PushedEvents int

	Conflicts      int
	Denied         int
	PendingLeft    int
	OrphansHeld    int
	OrphansDropped int

	UsedSampleData bool
}

type orphanEvent struct {
	event  events.Event
	cycles int
}

// Engine orquesta el ciclo pull → merge → push entre el cache local y
// el backend remoto.
//
// Re-entrada: invocaciones concurrentes de Sync para la misma cuenta se
// coalescen (la segunda espera el resultado de la que está en vuelo);
// además el ciclo entero corre bajo el lock por cuenta que también usan
// las operaciones de share.
type Engine struct {
	cache  cache.Store
	remote remote.Store
	blobs  blob.Store
	shares ShareReader
	auth   remote.Authenticator // opcional; nil = sin re-auth
	log    logger.Logger

	locks   *accountLocks
	flights singleflight.Group

	orphanMu        stdsync.Mutex
	orphans         map[string]*orphanEvent
	stranded        map[string]int // pendings sin padre local, por ciclos
	maxOrphanCycles int

	now func() time.Time
}

func NewEngine(c cache.Store, r remote.Store, b blob.Store, sr ShareReader, auth remote.Authenticator, log logger.Logger) *Engine {
	return &Engine{
		cache:           c,
		remote:          r,
		blobs:           b,
		shares:          sr,
		auth:            auth,
		log:             log,
		locks:           newAccountLocks(),
		orphans:         make(map[string]*orphanEvent),
		stranded:        make(map[string]int),
		maxOrphanCycles: defaultMaxOrphanCycles,
		now:             time.Now,
	}
}

// Locker expone el lock por cuenta para que el share manager serialice
// issue/accept contra ciclos en vuelo.
func (e *Engine) Locker() shares.AccountLocker { return e.locks }

// Sync ejecuta un ciclo completo para la cuenta. Ver Report.
func (e *Engine) Sync(ctx context.Context, accountID string) (Report, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return Report{}, ErrInvalidAccount
	}

	v, err, _ := e.flights.Do(accountID, func() (any, error) {
		return e.runCycle(ctx, accountID)
	})
	rep, _ := v.(Report)
	return rep, err
}

func (e *Engine) runCycle(ctx context.Context, accountID string) (Report, error) {
	unlock := e.locks.LockAccount(accountID)
	defer unlock()

	var rep Report

	// 1) PULL
	remotePets, err := e.pullPets(ctx, accountID)
	if err != nil {
		switch Classify(err) {
		case PermanentShowSample:
			installed, ierr := e.installSampleData(ctx, accountID)
			if ierr != nil {
				return rep, ierr
			}
			rep.UsedSampleData = installed
			if !installed {
				// Hay data real en el cache: el acceso sigue denegado
				// y el ciclo no avanza. Queda visible en el Report.
				rep.Denied++
				e.log.Warn("pull denied, keeping local cache", map[string]any{"account_id": accountID})
			}
			return rep, nil
		case RecoverableRetry:
			// Sin red: los pendientes quedan para el próximo ciclo,
			// sin error visible.
			e.log.Warn("pull skipped, backend unreachable", map[string]any{"account_id": accountID})
			return rep, nil
		default:
			return rep, err
		}
	}

	// El primer pull real reemplaza el placeholder entero.
	if err := e.dropSampleData(ctx); err != nil {
		return rep, err
	}

	if err := ctx.Err(); err != nil {
		return rep, err
	}

	// 2) MERGE
	for _, rp := range remotePets {
		applied, err := e.mergePet(ctx, rp)
		if err != nil {
			return rep, err
		}
		if applied {
			rep.PulledPets++
		}
	}

	e.refreshShareStates(ctx, accountID)

	if err := e.pullEvents(ctx, accountID, &rep); err != nil {
		return rep, err
	}
	e.retryOrphans(ctx, &rep)

	if err := ctx.Err(); err != nil {
		return rep, err
	}

	// 3) PUSH
	if err := e.pushPending(ctx, accountID, &rep); err != nil {
		return rep, err
	}
	return rep, nil
}

func (e *Engine) pullPets(ctx context.Context, accountID string) ([]pets.Pet, error) {
	var owned, shared []pets.Pet

	err := e.withReauth(ctx, func(ctx context.Context) error {
		var err error
		owned, err = e.remote.ListPets(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = e.withReauth(ctx, func(ctx context.Context) error {
		var err error
		shared, err = e.remote.ListSharedPets(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return append(owned, shared...), nil
}

// mergePet aplica un doc remoto conservando los campos solo-locales.
// El cache decide por timestamp: remoto más nuevo gana, empate o más
// viejo es no-op (queda la copia local).
func (e *Engine) mergePet(ctx context.Context, rp pets.Pet) (bool, error) {
	local, err := e.cache.GetPet(ctx, rp.ID)
	if err == nil {
		rp = mergedPet(local, rp)
	} else if !errors.Is(err, cache.ErrNotFound) {
		return false, err
	}
	return e.cache.UpsertPet(ctx, rp)
}

// mergedPet combina la copia local con el documento remoto: el doc no
// transporta el estado de aceptación del co-owner ni el blob en
// memoria, así que esos sobreviven al merge.
func mergedPet(local, incoming pets.Pet) pets.Pet {
	out := incoming
	out.IsShareAccepted = local.IsShareAccepted || incoming.IsShareAccepted
	if out.ShareCounterpartName == "" {
		out.ShareCounterpartName = local.ShareCounterpartName
	}
	if len(out.ImageBlob) == 0 {
		out.ImageBlob = local.ImageBlob
	}
	if out.RemoteRef == "" {
		out.RemoteRef = local.RemoteRef
	}
	return out
}

// refreshShareStates propaga al owner la aceptación de sus shares
// emitidos (el doc de pet no la transporta; vive en el share).
// Best-effort: un fallo acá no rompe el ciclo.
func (e *Engine) refreshShareStates(ctx context.Context, accountID string) {
	if e.shares == nil {
		return
	}
	local, err := e.cache.ListPets(ctx)
	if err != nil {
		return
	}
	for _, p := range local {
		if !p.IsOwnedBy(accountID) || !p.IsShared || p.IsShareAccepted || p.ShareRef == "" {
			continue
		}
		share, err := e.shares.GetShare(ctx, p.ShareRef)
		if err != nil || !share.Accepted {
			continue
		}
		p.IsShareAccepted = true
		p.ShareCounterpartName = share.AcceptedName
		p.Touch(e.now())
		if _, err := e.cache.UpsertPet(ctx, p); err != nil {
			e.log.Warn("share state refresh failed", map[string]any{"pet_id": p.ID, "error": err.Error()})
		}
	}
}

func (e *Engine) pullEvents(ctx context.Context, accountID string, rep *Report) error {
	local, err := e.cache.ListPets(ctx)
	if err != nil {
		return err
	}
	for _, p := range local {
		if isSamplePetID(p.ID) {
			continue
		}
		part := remote.PartitionFor(p, accountID)

		var evts []events.Event
		err := e.withReauth(ctx, func(ctx context.Context) error {
			var err error
			evts, err = e.remote.ListEvents(ctx, part, p.ID)
			return err
		})
		if err != nil {
			// Por-mascota: un fallo no frena el resto del pull.
			e.log.Warn("event pull failed", map[string]any{"pet_id": p.ID, "error": err.Error()})
			continue
		}
		for _, ev := range evts {
			if err := e.mergeEvent(ctx, ev, rep); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) mergeEvent(ctx context.Context, ev events.Event, rep *Report) error {
	if _, err := e.cache.GetPet(ctx, ev.PetRef); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			e.holdOrphan(ev)
			rep.OrphansHeld++
			return nil
		}
		return err
	}
	applied, err := e.cache.UpsertEvent(ctx, ev)
	if err != nil {
		return err
	}
	if applied {
		rep.PulledEvents++
	}
	return nil
}

// strandedCycle registra un ciclo más de un pending sin padre local y
// devuelve el total acumulado.
func (e *Engine) strandedCycle(id string) int {
	e.orphanMu.Lock()
	defer e.orphanMu.Unlock()
	e.stranded[id]++
	return e.stranded[id]
}

func (e *Engine) forgetStranded(id string) {
	e.orphanMu.Lock()
	defer e.orphanMu.Unlock()
	delete(e.stranded, id)
}

func (e *Engine) holdOrphan(ev events.Event) {
	e.orphanMu.Lock()
	defer e.orphanMu.Unlock()
	if _, ok := e.orphans[ev.ID]; !ok {
		e.orphans[ev.ID] = &orphanEvent{event: ev}
	}
}

// retryOrphans reintenta el buffer de huérfanos; tras maxOrphanCycles
// ciclos sin padre, el event se descarta y se reporta.
func (e *Engine) retryOrphans(ctx context.Context, rep *Report) {
	e.orphanMu.Lock()
	defer e.orphanMu.Unlock()

	for id, o := range e.orphans {
		if _, err := e.cache.GetPet(ctx, o.event.PetRef); err == nil {
			if applied, err := e.cache.UpsertEvent(ctx, o.event); err == nil {
				if applied {
					rep.PulledEvents++
				}
				delete(e.orphans, id)
				continue
			}
		}
		o.cycles++
		if o.cycles >= e.maxOrphanCycles {
			delete(e.orphans, id)
			rep.OrphansDropped++
			e.log.Warn("orphan event dropped", map[string]any{
				"event_id": o.event.ID, "pet_ref": o.event.PetRef, "cycles": o.cycles,
			})
		}
	}
}

func (e *Engine) pushPending(ctx context.Context, accountID string, rep *Report) error {
	pendingPets, err := e.cache.ListPendingPets(ctx)
	if err != nil {
		return err
	}
	for _, p := range pendingPets {
		if isSamplePetID(p.ID) {
			// El placeholder jamás se pushea.
			_ = e.cache.ClearPetPending(ctx, p.ID)
			continue
		}
		if err := e.pushPet(ctx, accountID, p, rep); err != nil {
			if cont := e.handlePushError(ctx, err, "pet", p.ID, rep); !cont {
				return err
			}
		}
	}

	pendingEvents, err := e.cache.ListPendingEvents(ctx)
	if err != nil {
		return err
	}
	for _, ev := range pendingEvents {
		if err := e.pushEvent(ctx, accountID, ev, rep); err != nil {
			if cont := e.handlePushError(ctx, err, "event", ev.ID, rep); !cont {
				return err
			}
		}
	}
	return nil
}

// handlePushError decide si el ciclo sigue tras un fallo de push.
// Retorna false solo para fallos que deben abortar el ciclo.
func (e *Engine) handlePushError(ctx context.Context, err error, kind, id string, rep *Report) bool {
	switch Classify(err) {
	case RecoverableRetry:
		// At-least-once: queda pending para el próximo ciclo.
		rep.PendingLeft++
		return true
	case PermanentShowSample:
		// PermissionDenied en push: la entidad queda solo-local; se
		// loggea el mensaje de usuario y se desencola para no ciclar.
		rep.Denied++
		e.log.Error("push denied", map[string]any{
			"kind": kind, "id": id, "message": UserMessage(err),
		})
		if kind == "pet" {
			_ = e.cache.ClearPetPending(ctx, id)
		} else {
			_ = e.cache.ClearEventPending(ctx, id)
		}
		return true
	default:
		return false
	}
}

func (e *Engine) pushPet(ctx context.Context, accountID string, p pets.Pet, rep *Report) error {
	part := remote.PartitionFor(p, accountID)

	if p.RemoteRef == "" {
		var ref string
		err := e.withReauth(ctx, func(ctx context.Context) error {
			var err error
			ref, err = e.remote.CreatePet(ctx, part, p)
			return err
		})
		if err != nil {
			return err
		}
		if ref != "" {
			if err := e.cache.SetPetRemoteRef(ctx, p.ID, ref); err != nil {
				return err
			}
			p.RemoteRef = ref
		}
	} else {
		err := e.withReauth(ctx, func(ctx context.Context) error {
			return e.remote.UpdatePet(ctx, part, p)
		})
		if errors.Is(err, remote.ErrConflict) {
			return e.resolveConflictPet(ctx, part, p.ID, rep)
		}
		if err != nil {
			return err
		}
	}

	// Upload del blob aparte del documento: un fallo acá no bloquea
	// (el doc ya está escrito); la referencia se repara en el próximo
	// ciclo y la entidad sigue pending.
	if len(p.ImageBlob) > 0 && p.ImageRef == "" && e.blobs != nil {
		ref, err := e.blobs.Put(ctx, p.ID, p.ImageBlob)
		if err != nil {
			e.log.Warn("image upload failed, will retry", map[string]any{"pet_id": p.ID, "error": err.Error()})
			rep.PendingLeft++
			return nil
		}
		if err := e.cache.SetPetImageRef(ctx, p.ID, ref); err != nil {
			return err
		}
		p.ImageRef = ref
		uerr := e.withReauth(ctx, func(ctx context.Context) error {
			return e.remote.UpdatePet(ctx, part, p)
		})
		if uerr != nil && !errors.Is(uerr, remote.ErrConflict) {
			return uerr
		}
	}

	if err := e.cache.ClearPetPending(ctx, p.ID); err != nil {
		return err
	}
	rep.PushedPets++
	return nil
}

// resolveConflictPet: el backend detectó un version mismatch. Se
// re-pullea la entidad y gana el remoto (last-write-wins); nunca
// escala al usuario.
func (e *Engine) resolveConflictPet(ctx context.Context, part remote.Partition, petID string, rep *Report) error {
	var rp pets.Pet
	err := e.withReauth(ctx, func(ctx context.Context) error {
		var err error
		rp, err = e.remote.GetPet(ctx, part, petID)
		return err
	})
	if err != nil {
		return err
	}
	if _, err := e.mergePet(ctx, rp); err != nil {
		return err
	}
	if err := e.cache.ClearPetPending(ctx, petID); err != nil {
		return err
	}
	rep.Conflicts++
	return nil
}

func (e *Engine) pushEvent(ctx context.Context, accountID string, ev events.Event, rep *Report) error {
	parent, err := e.cache.GetPet(ctx, ev.PetRef)
	if err != nil {
		// Sin padre local no hay partición resolvible. Se reintenta el
		// mismo número acotado de ciclos que los huérfanos del pull y
		// después se descarta, reportado; nunca pending para siempre.
		if e.strandedCycle(ev.ID) >= e.maxOrphanCycles {
			if cerr := e.cache.ClearEventPending(ctx, ev.ID); cerr != nil {
				return cerr
			}
			if derr := e.cache.DeleteEvent(ctx, ev.ID); derr != nil && !errors.Is(derr, cache.ErrNotFound) {
				return derr
			}
			e.forgetStranded(ev.ID)
			rep.OrphansDropped++
			e.log.Warn("pending event dropped, local parent missing", map[string]any{
				"event_id": ev.ID, "pet_ref": ev.PetRef,
			})
			return nil
		}
		rep.PendingLeft++
		return nil
	}
	e.forgetStranded(ev.ID)
	part := remote.PartitionFor(parent, accountID)

	if ev.RemoteRef == "" {
		var ref string
		err := e.withReauth(ctx, func(ctx context.Context) error {
			var err error
			ref, err = e.remote.CreateEvent(ctx, part, ev)
			return err
		})
		if err != nil {
			return err
		}
		if ref != "" {
			if err := e.cache.SetEventRemoteRef(ctx, ev.ID, ref); err != nil {
				return err
			}
		}
	} else {
		err := e.withReauth(ctx, func(ctx context.Context) error {
			return e.remote.UpdateEvent(ctx, part, ev)
		})
		if errors.Is(err, remote.ErrConflict) {
			// Gana el remoto: el próximo pull trae la versión vigente.
			if cerr := e.cache.ClearEventPending(ctx, ev.ID); cerr != nil {
				return cerr
			}
			rep.Conflicts++
			return nil
		}
		if err != nil {
			return err
		}
	}

	if err := e.cache.ClearEventPending(ctx, ev.ID); err != nil {
		return err
	}
	rep.PushedEvents++
	return nil
}

// DeletePet borra local y remoto para el owner; un co-owner solo
// desvincula su copia local, nunca borra del lado remoto.
func (e *Engine) DeletePet(ctx context.Context, accountID, petID string) error {
	unlock := e.locks.LockAccount(accountID)
	defer unlock()

	p, err := e.cache.GetPet(ctx, petID)
	if err != nil {
		return err
	}

	if !p.IsOwnedBy(accountID) {
		return e.cache.DeletePet(ctx, petID)
	}

	if p.RemoteRef != "" {
		part := remote.PartitionFor(p, accountID)
		err := e.withReauth(ctx, func(ctx context.Context) error {
			return e.remote.DeletePet(ctx, part, p.ID)
		})
		if err != nil && !errors.Is(err, remote.ErrNotFound) {
			return err
		}
	}
	return e.cache.DeletePet(ctx, petID)
}

// withReauth aplica la política Recoverable-Reauth: ante
// ErrUnauthenticated, un único intento de re-auth seguido de
// exactamente un retry; el segundo fallo se propaga.
func (e *Engine) withReauth(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || e.auth == nil || !errors.Is(err, remote.ErrUnauthenticated) {
		return err
	}
	if rerr := e.auth.Reauthenticate(ctx); rerr != nil {
		return err
	}
	return fn(ctx)
}

func (e *Engine) installSampleData(ctx context.Context, accountID string) (bool, error) {
	existing, err := e.cache.ListPets(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		// Hay data real (o el placeholder ya instalado): no tocar.
		return false, nil
	}
	for _, sp := range samplePets(accountID, e.now()) {
		if _, err := e.cache.UpsertPet(ctx, sp); err != nil {
			return false, err
		}
	}
	e.log.Warn("permission denied on first pull, showing sample data", map[string]any{"account_id": accountID})
	return true, nil
}

func (e *Engine) dropSampleData(ctx context.Context) error {
	for _, id := range []string{samplePetLunaID, samplePetRockyID} {
		if _, err := e.cache.GetPet(ctx, id); err != nil {
			if errors.Is(err, cache.ErrNotFound) {
				continue
			}
			return err
		}
		if err := e.cache.DeletePet(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

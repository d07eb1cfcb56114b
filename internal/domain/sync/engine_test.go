package sync

import (
	"context"
	stdsync "sync"
	"testing"
	"time"

	"pet-care-sync/internal/adapters/storage/memory"
	"pet-care-sync/internal/domain/events"
	"pet-care-sync/internal/domain/pets"
	"pet-care-sync/internal/domain/shares"
	"pet-care-sync/internal/platform/logger"
	"pet-care-sync/internal/ports/remote"
)

// -------------------------
// Fakes (in-memory backend)
// -------------------------

type fakeRemote struct {
	mu     stdsync.Mutex
	pets   map[string]pets.Pet
	events map[string]events.Event
	shared map[string][]string // accountID -> pet IDs visibles por share

	pullErr   error // fuerza fallo de ListPets/ListSharedPets
	updateErr error // fuerza fallo de UpdatePet

	unauthLeft  int // próximas N llamadas devuelven ErrUnauthenticated
	deletedPets []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		pets:   map[string]pets.Pet{},
		events: map[string]events.Event{},
		shared: map[string][]string{},
	}
}

func (f *fakeRemote) gate() error {
	if f.unauthLeft > 0 {
		f.unauthLeft--
		return remote.ErrUnauthenticated
	}
	return nil
}

func (f *fakeRemote) CreatePet(ctx context.Context, part remote.Partition, p pets.Pet) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(); err != nil {
		return "", err
	}
	p.RemoteRef = "remote-" + p.ID
	f.pets[p.ID] = p
	return p.RemoteRef, nil
}

func (f *fakeRemote) UpdatePet(ctx context.Context, part remote.Partition, p pets.Pet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(); err != nil {
		return err
	}
	if f.updateErr != nil {
		return f.updateErr
	}
	f.pets[p.ID] = p
	return nil
}

func (f *fakeRemote) DeletePet(ctx context.Context, part remote.Partition, petID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(); err != nil {
		return err
	}
	delete(f.pets, petID)
	f.deletedPets = append(f.deletedPets, petID)
	return nil
}

func (f *fakeRemote) GetPet(ctx context.Context, part remote.Partition, petID string) (pets.Pet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(); err != nil {
		return pets.Pet{}, err
	}
	p, ok := f.pets[petID]
	if !ok {
		return pets.Pet{}, remote.ErrNotFound
	}
	return p, nil
}

func (f *fakeRemote) ListPets(ctx context.Context, ownerID string) ([]pets.Pet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(); err != nil {
		return nil, err
	}
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	out := make([]pets.Pet, 0)
	for _, p := range f.pets {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRemote) ListSharedPets(ctx context.Context, accountID string) ([]pets.Pet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(); err != nil {
		return nil, err
	}
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	out := make([]pets.Pet, 0)
	for _, id := range f.shared[accountID] {
		if p, ok := f.pets[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRemote) CreateEvent(ctx context.Context, part remote.Partition, e events.Event) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(); err != nil {
		return "", err
	}
	e.RemoteRef = "remote-" + e.ID
	f.events[e.ID] = e
	return e.RemoteRef, nil
}

func (f *fakeRemote) UpdateEvent(ctx context.Context, part remote.Partition, e events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(); err != nil {
		return err
	}
	f.events[e.ID] = e
	return nil
}

func (f *fakeRemote) DeleteEvent(ctx context.Context, part remote.Partition, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.events, eventID)
	return nil
}

func (f *fakeRemote) ListEvents(ctx context.Context, part remote.Partition, petID string) ([]events.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(); err != nil {
		return nil, err
	}
	out := make([]events.Event, 0)
	for _, e := range f.events {
		if e.PetRef == petID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeAuth struct {
	calls int
	err   error
}

func (f *fakeAuth) Reauthenticate(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakeShareReader struct {
	byID map[string]shares.Share
}

func (f *fakeShareReader) GetShare(ctx context.Context, id string) (shares.Share, error) {
	s, ok := f.byID[id]
	if !ok {
		return shares.Share{}, remote.ErrNotFound
	}
	return s, nil
}

type fakeBlobs struct {
	err  error
	puts int
}

func (f *fakeBlobs) Put(ctx context.Context, id string, data []byte) (string, error) {
	f.puts++
	if f.err != nil {
		return "", f.err
	}
	return "blob-" + id, nil
}

func (f *fakeBlobs) Get(ctx context.Context, ref string) ([]byte, error) {
	return nil, remote.ErrNotFound
}

func testLogger() logger.Logger {
	return logger.New(logger.Options{Level: logger.Error})
}

func newTestEngine(rem *fakeRemote) (*Engine, *memory.Store) {
	cache := memory.NewStore()
	e := NewEngine(cache, rem, &fakeBlobs{}, &fakeShareReader{byID: map[string]shares.Share{}}, nil, testLogger())
	return e, cache
}

// -------------------------
// Tests
// -------------------------

func TestEngine_Sync_PullAppliesNewerAndKeepsLocalNewer(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := newFakeRemote()
	e, cache := newTestEngine(rem)

	// Remoto más nuevo que la copia local: debe ganar.
	_, _ = cache.UpsertPet(context.Background(), pets.Pet{
		ID: "pet-1", OwnerID: "acct-a", DisplayName: "Old", LastModified: base, CreatedAt: base,
	})
	rem.pets["pet-1"] = pets.Pet{
		ID: "pet-1", RemoteRef: "remote-pet-1", OwnerID: "acct-a", DisplayName: "New",
		LastModified: base.Add(time.Minute), CreatedAt: base,
	}
	// Remoto más viejo: la copia local queda intacta.
	_, _ = cache.UpsertPet(context.Background(), pets.Pet{
		ID: "pet-2", OwnerID: "acct-a", DisplayName: "LocalWins", LastModified: base.Add(time.Hour), CreatedAt: base,
	})
	rem.pets["pet-2"] = pets.Pet{
		ID: "pet-2", RemoteRef: "remote-pet-2", OwnerID: "acct-a", DisplayName: "Stale",
		LastModified: base, CreatedAt: base,
	}

	rep, err := e.Sync(context.Background(), "acct-a")
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}
	if rep.PulledPets != 1 {
		t.Fatalf("expected 1 applied pet, got %d", rep.PulledPets)
	}

	p1, _ := cache.GetPet(context.Background(), "pet-1")
	if p1.DisplayName != "New" || p1.RemoteRef != "remote-pet-1" {
		t.Fatalf("expected remote version applied, got %+v", p1)
	}
	p2, _ := cache.GetPet(context.Background(), "pet-2")
	if p2.DisplayName != "LocalWins" {
		t.Fatalf("expected local version kept, got %+v", p2)
	}
	if !p2.LastModified.Equal(base.Add(time.Hour)) {
		t.Fatalf("merge must keep the max timestamp")
	}
}

func TestEngine_Sync_MergePreservesLocalOnlyFields(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := newFakeRemote()
	e, cache := newTestEngine(rem)

	_, _ = cache.UpsertPet(context.Background(), pets.Pet{
		ID: "pet-1", RemoteRef: "remote-pet-1", OwnerID: "acct-a", DisplayName: "Luna",
		ImageBlob: []byte{1, 2, 3}, IsShared: true, IsShareAccepted: true,
		ShareRef: "share-1", ShareCounterpartName: "Bob",
		LastModified: base, CreatedAt: base,
	})
	rem.pets["pet-1"] = pets.Pet{
		ID: "pet-1", RemoteRef: "remote-pet-1", OwnerID: "acct-a", DisplayName: "Luna v2",
		IsShared: true, ShareRef: "share-1",
		LastModified: base.Add(time.Minute), CreatedAt: base,
	}

	if _, err := e.Sync(context.Background(), "acct-a"); err != nil {
		t.Fatalf("Sync error: %v", err)
	}

	p, _ := cache.GetPet(context.Background(), "pet-1")
	if p.DisplayName != "Luna v2" {
		t.Fatalf("expected remote name applied, got %q", p.DisplayName)
	}
	if !p.IsShareAccepted || p.ShareCounterpartName != "Bob" {
		t.Fatalf("expected local share state preserved, got %+v", p)
	}
	if len(p.ImageBlob) != 3 {
		t.Fatalf("expected local image blob preserved")
	}
}

func TestEngine_Sync_PushCreateAssignsRemoteRefAndClearsPending(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := newFakeRemote()
	e, cache := newTestEngine(rem)

	_, _ = cache.UpsertPet(context.Background(), pets.Pet{
		ID: "pet-1", OwnerID: "acct-a", DisplayName: "Luna", LastModified: base, CreatedAt: base,
	})
	_ = cache.MarkPetPending(context.Background(), "pet-1")

	rep, err := e.Sync(context.Background(), "acct-a")
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}
	if rep.PushedPets != 1 {
		t.Fatalf("expected 1 pushed pet, got %d", rep.PushedPets)
	}

	p, _ := cache.GetPet(context.Background(), "pet-1")
	if p.RemoteRef != "remote-pet-1" {
		t.Fatalf("expected remote ref assigned, got %q", p.RemoteRef)
	}
	pending, _ := cache.ListPendingPets(context.Background())
	if len(pending) != 0 {
		t.Fatalf("expected pending cleared, got %d", len(pending))
	}
	if _, ok := rem.pets["pet-1"]; !ok {
		t.Fatalf("expected pet created on backend")
	}
}

func TestEngine_Sync_PushUploadsImageBlobAndRepairsRef(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := newFakeRemote()
	e, cache := newTestEngine(rem)
	blobs := &fakeBlobs{}
	e.blobs = blobs

	_, _ = cache.UpsertPet(context.Background(), pets.Pet{
		ID: "pet-1", OwnerID: "acct-a", DisplayName: "Luna",
		ImageBlob: []byte{9, 9}, LastModified: base, CreatedAt: base,
	})
	_ = cache.MarkPetPending(context.Background(), "pet-1")

	if _, err := e.Sync(context.Background(), "acct-a"); err != nil {
		t.Fatalf("Sync error: %v", err)
	}
	if blobs.puts != 1 {
		t.Fatalf("expected 1 blob upload, got %d", blobs.puts)
	}
	p, _ := cache.GetPet(context.Background(), "pet-1")
	if p.ImageRef != "blob-pet-1" {
		t.Fatalf("expected image ref repaired, got %q", p.ImageRef)
	}
	if rem.pets["pet-1"].ImageRef != "blob-pet-1" {
		t.Fatalf("expected remote doc updated with image ref")
	}
}

func TestEngine_Sync_NetworkFailureLeavesPending(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := newFakeRemote()
	rem.pullErr = remote.ErrNetworkUnavailable
	e, cache := newTestEngine(rem)

	_, _ = cache.UpsertPet(context.Background(), pets.Pet{
		ID: "pet-1", OwnerID: "acct-a", DisplayName: "Luna", LastModified: base, CreatedAt: base,
	})
	_ = cache.MarkPetPending(context.Background(), "pet-1")

	rep, err := e.Sync(context.Background(), "acct-a")
	if err != nil {
		t.Fatalf("offline sync must not surface an error, got %v", err)
	}
	if rep.PushedPets != 0 {
		t.Fatalf("expected no push while offline")
	}
	pending, _ := cache.ListPendingPets(context.Background())
	if len(pending) != 1 {
		t.Fatalf("expected entity still pending, got %d", len(pending))
	}

	// Red de vuelta: el próximo ciclo drena el pendiente.
	rem.pullErr = nil
	rep, err = e.Sync(context.Background(), "acct-a")
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}
	if rep.PushedPets != 1 {
		t.Fatalf("expected pending pushed after recovery, got %d", rep.PushedPets)
	}
}

func TestEngine_Sync_PermissionDeniedInstallsSampleDataOnce(t *testing.T) {
	rem := newFakeRemote()
	rem.pullErr = remote.ErrPermissionDenied
	e, cache := newTestEngine(rem)

	rep, err := e.Sync(context.Background(), "acct-a")
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}
	if !rep.UsedSampleData {
		t.Fatalf("expected sample data installed")
	}
	list, _ := cache.ListPets(context.Background())
	if len(list) != 2 {
		t.Fatalf("expected 2 sample pets, got %d", len(list))
	}

	// Segundo ciclo denegado: no reinstala ni duplica.
	rep, err = e.Sync(context.Background(), "acct-a")
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}
	if rep.UsedSampleData {
		t.Fatalf("expected no reinstall over existing data")
	}

	// Primer pull real: el placeholder desaparece por completo.
	rem.pullErr = nil
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem.pets["pet-1"] = pets.Pet{
		ID: "pet-1", RemoteRef: "remote-pet-1", OwnerID: "acct-a", DisplayName: "Real",
		LastModified: base, CreatedAt: base,
	}
	if _, err := e.Sync(context.Background(), "acct-a"); err != nil {
		t.Fatalf("Sync error: %v", err)
	}
	list, _ = cache.ListPets(context.Background())
	if len(list) != 1 || list[0].ID != "pet-1" {
		t.Fatalf("expected sample data replaced by real pull, got %+v", list)
	}
}

func TestEngine_Sync_PermissionDeniedWithRealDataIsReported(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := newFakeRemote()
	rem.pullErr = remote.ErrPermissionDenied
	e, cache := newTestEngine(rem)

	_, _ = cache.UpsertPet(context.Background(), pets.Pet{
		ID: "pet-1", OwnerID: "acct-a", DisplayName: "Luna", LastModified: base, CreatedAt: base,
	})

	rep, err := e.Sync(context.Background(), "acct-a")
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}
	if rep.UsedSampleData {
		t.Fatalf("real data must never be replaced by the placeholder")
	}
	// El ciclo denegado no puede parecer exitoso: queda en el Report.
	if rep.Denied == 0 {
		t.Fatalf("expected denial surfaced in the report, got %+v", rep)
	}
	if _, err := cache.GetPet(context.Background(), "pet-1"); err != nil {
		t.Fatalf("local data must survive a denied pull: %v", err)
	}
}

func TestEngine_Sync_PendingEventWithoutParentDropsAfterBoundedCycles(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := newFakeRemote()
	e, cache := newTestEngine(rem)

	// Pending sin padre local (p. ej. el padre se borró después de
	// encolar el event): la partición no se puede resolver.
	_, _ = cache.UpsertEvent(context.Background(), events.Event{
		ID: "ev-1", PetRef: "ghost", Kind: events.KindWalk, OccurredAt: base, LastModified: base,
	})
	_ = cache.MarkEventPending(context.Background(), "ev-1")

	for i := 0; i < defaultMaxOrphanCycles-1; i++ {
		rep, err := e.Sync(context.Background(), "acct-a")
		if err != nil {
			t.Fatalf("Sync #%d error: %v", i+1, err)
		}
		if rep.PendingLeft != 1 {
			t.Fatalf("cycle %d: expected event still pending, got %+v", i+1, rep)
		}
	}

	rep, err := e.Sync(context.Background(), "acct-a")
	if err != nil {
		t.Fatalf("final Sync error: %v", err)
	}
	if rep.OrphansDropped != 1 || rep.PendingLeft != 0 {
		t.Fatalf("expected bounded drop, got %+v", rep)
	}
	pending, _ := cache.ListPendingEvents(context.Background())
	if len(pending) != 0 {
		t.Fatalf("expected no pendings left, got %d", len(pending))
	}
	if _, err := cache.GetEvent(context.Background(), "ev-1"); err == nil {
		t.Fatalf("dropped event must not linger in the cache")
	}
}

func TestEngine_Sync_ReauthRetriesExactlyOnce(t *testing.T) {
	rem := newFakeRemote()
	rem.unauthLeft = 1
	auth := &fakeAuth{}
	e, _ := newTestEngine(rem)
	e.auth = auth

	if _, err := e.Sync(context.Background(), "acct-a"); err != nil {
		t.Fatalf("expected recovery after reauth, got %v", err)
	}
	if auth.calls != 1 {
		t.Fatalf("expected exactly 1 reauth, got %d", auth.calls)
	}

	// Si el retry también falla autenticación, el error se propaga
	// sin un segundo intento de re-auth para esa llamada.
	rem.unauthLeft = 2
	auth.calls = 0
	_, err := e.Sync(context.Background(), "acct-a")
	if err == nil {
		t.Fatalf("expected auth error to surface")
	}
	if auth.calls != 1 {
		t.Fatalf("expected exactly 1 reauth before giving up, got %d", auth.calls)
	}
}

func TestEngine_Sync_ConflictRepullsAndClearsPending(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := newFakeRemote()
	e, cache := newTestEngine(rem)

	remoteVersion := pets.Pet{
		ID: "pet-1", RemoteRef: "remote-pet-1", OwnerID: "acct-a", DisplayName: "Server",
		LastModified: base.Add(time.Hour), CreatedAt: base,
	}
	rem.pets["pet-1"] = remoteVersion
	rem.updateErr = remote.ErrConflict

	// Copia local divergente, encolada para push.
	_, _ = cache.UpsertPet(context.Background(), pets.Pet{
		ID: "pet-1", RemoteRef: "remote-pet-1", OwnerID: "acct-a", DisplayName: "Mine",
		LastModified: base.Add(2 * time.Hour), CreatedAt: base,
	})
	_ = cache.MarkPetPending(context.Background(), "pet-1")

	rep, err := e.Sync(context.Background(), "acct-a")
	if err != nil {
		t.Fatalf("conflict must resolve silently, got %v", err)
	}
	if rep.Conflicts != 1 {
		t.Fatalf("expected 1 conflict resolved, got %d", rep.Conflicts)
	}
	pending, _ := cache.ListPendingPets(context.Background())
	if len(pending) != 0 {
		t.Fatalf("expected pending cleared after conflict, got %d", len(pending))
	}
}

func TestEngine_OrphanBuffer_AttachesWhenParentArrives(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := newFakeRemote()
	e, cache := newTestEngine(rem)

	ev := events.Event{ID: "ev-1", PetRef: "pet-1", Kind: events.KindWalk, OccurredAt: base, LastModified: base}
	e.holdOrphan(ev)

	// Sin padre: queda retenido.
	var rep Report
	e.retryOrphans(context.Background(), &rep)
	if rep.OrphansDropped != 0 {
		t.Fatalf("expected orphan retained, got drop")
	}

	// Aparece el padre: el event se adjunta.
	_, _ = cache.UpsertPet(context.Background(), pets.Pet{
		ID: "pet-1", OwnerID: "acct-a", DisplayName: "Luna", LastModified: base, CreatedAt: base,
	})
	rep = Report{}
	e.retryOrphans(context.Background(), &rep)
	if rep.PulledEvents != 1 {
		t.Fatalf("expected orphan attached, got %+v", rep)
	}
	if _, err := cache.GetEvent(context.Background(), "ev-1"); err != nil {
		t.Fatalf("expected event in cache: %v", err)
	}
}

func TestEngine_OrphanBuffer_DropsAfterBoundedCycles(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := newFakeRemote()
	e, _ := newTestEngine(rem)

	ev := events.Event{ID: "ev-1", PetRef: "ghost", Kind: events.KindMeal, OccurredAt: base, LastModified: base}
	e.holdOrphan(ev)

	var rep Report
	for i := 0; i < defaultMaxOrphanCycles-1; i++ {
		e.retryOrphans(context.Background(), &rep)
		if rep.OrphansDropped != 0 {
			t.Fatalf("dropped too early at cycle %d", i+1)
		}
	}
	e.retryOrphans(context.Background(), &rep)
	if rep.OrphansDropped != 1 {
		t.Fatalf("expected orphan dropped after %d cycles, got %+v", defaultMaxOrphanCycles, rep)
	}
}

func TestEngine_DeletePet_OwnerDeletesRemoteAndLocal(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := newFakeRemote()
	e, cache := newTestEngine(rem)

	p := pets.Pet{
		ID: "pet-1", RemoteRef: "remote-pet-1", OwnerID: "acct-a", DisplayName: "Luna",
		LastModified: base, CreatedAt: base,
	}
	rem.pets["pet-1"] = p
	_, _ = cache.UpsertPet(context.Background(), p)

	if err := e.DeletePet(context.Background(), "acct-a", "pet-1"); err != nil {
		t.Fatalf("DeletePet error: %v", err)
	}
	if len(rem.deletedPets) != 1 || rem.deletedPets[0] != "pet-1" {
		t.Fatalf("expected remote delete, got %v", rem.deletedPets)
	}
	if _, err := cache.GetPet(context.Background(), "pet-1"); err == nil {
		t.Fatalf("expected pet removed from cache")
	}
}

func TestEngine_DeletePet_CoOwnerOnlyDetachesLocally(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := newFakeRemote()
	e, cache := newTestEngine(rem)

	p := pets.Pet{
		ID: "pet-1", RemoteRef: "remote-pet-1", OwnerID: "acct-a", DisplayName: "Luna",
		IsShared: true, IsShareAccepted: true, ShareRef: "share-1",
		LastModified: base, CreatedAt: base,
	}
	rem.pets["pet-1"] = p
	_, _ = cache.UpsertPet(context.Background(), p)

	// acct-b es el co-owner: su delete nunca toca el backend.
	if err := e.DeletePet(context.Background(), "acct-b", "pet-1"); err != nil {
		t.Fatalf("DeletePet error: %v", err)
	}
	if len(rem.deletedPets) != 0 {
		t.Fatalf("co-owner delete must not reach the backend, got %v", rem.deletedPets)
	}
	if _, err := cache.GetPet(context.Background(), "pet-1"); err == nil {
		t.Fatalf("expected local copy detached")
	}
}

func TestEngine_Sync_RefreshesIssuedShareState(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := newFakeRemote()
	e, cache := newTestEngine(rem)
	e.now = func() time.Time { return base.Add(time.Minute) }

	accepted := base.Add(30 * time.Second)
	e.shares = &fakeShareReader{byID: map[string]shares.Share{
		"share-1": {
			ID: "share-1", SubjectRef: "pet-1", IssuedByAccount: "acct-a",
			IssuerName: "Alice", Accepted: true, AcceptedBy: "acct-b",
			AcceptedName: "Bob", AcceptedAt: &accepted,
		},
	}}

	p := pets.Pet{
		ID: "pet-1", RemoteRef: "remote-pet-1", OwnerID: "acct-a", DisplayName: "Luna",
		IsShared: true, ShareRef: "share-1",
		LastModified: base, CreatedAt: base,
	}
	rem.pets["pet-1"] = p
	_, _ = cache.UpsertPet(context.Background(), p)

	if _, err := e.Sync(context.Background(), "acct-a"); err != nil {
		t.Fatalf("Sync error: %v", err)
	}

	got, _ := cache.GetPet(context.Background(), "pet-1")
	if !got.IsShareAccepted {
		t.Fatalf("expected acceptance propagated to owner copy")
	}
	if got.ShareCounterpartName != "Bob" {
		t.Fatalf("expected counterpart name from share, got %q", got.ShareCounterpartName)
	}
}

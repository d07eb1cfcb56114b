package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"pet-care-sync/internal/domain/events"
	"pet-care-sync/internal/domain/pets"
	"pet-care-sync/internal/ports/cache"
)

// Store implementa cache.Store sobre SQLite embebido.
//
// El contrato de upsert idempotente por last_modified se resuelve en
// SQL (WHERE last_modified < excluded) dentro de una transacción por
// entidad, así los writes concurrentes sobre el mismo id serializan en
// el motor y no en el proceso.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ cache.Store = (*Store)(nil)

const tsLayout = time.RFC3339Nano

func (s *Store) UpsertPet(ctx context.Context, p pets.Pet) (bool, error) {
	if strings.TrimSpace(p.ID) == "" {
		return false, errors.New("pet id required")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pets (
			id, remote_ref, owner_id, display_name,
			image_blob, image_ref,
			is_shared, is_share_accepted, share_ref, share_counterpart_name,
			last_modified, created_at, pending
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,0)
		ON CONFLICT(id) DO UPDATE SET
			remote_ref = CASE
				WHEN pets.remote_ref <> '' AND excluded.remote_ref = '' THEN pets.remote_ref
				ELSE excluded.remote_ref
			END,
			owner_id               = excluded.owner_id,
			display_name           = excluded.display_name,
			image_blob             = excluded.image_blob,
			image_ref              = excluded.image_ref,
			is_shared              = excluded.is_shared,
			is_share_accepted      = excluded.is_share_accepted,
			share_ref              = excluded.share_ref,
			share_counterpart_name = excluded.share_counterpart_name,
			last_modified          = excluded.last_modified,
			created_at             = excluded.created_at
		WHERE pets.last_modified < excluded.last_modified
	`,
		p.ID, p.RemoteRef, p.OwnerID, p.DisplayName,
		p.ImageBlob, p.ImageRef,
		boolToInt(p.IsShared), boolToInt(p.IsShareAccepted), p.ShareRef, p.ShareCounterpartName,
		p.LastModified.UTC().Format(tsLayout), p.CreatedAt.UTC().Format(tsLayout),
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) GetPet(ctx context.Context, id string) (pets.Pet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, remote_ref, owner_id, display_name,
		       image_blob, image_ref,
		       is_shared, is_share_accepted, share_ref, share_counterpart_name,
		       last_modified, created_at
		FROM pets WHERE id = ?
	`, id)
	return scanPet(row)
}

func (s *Store) ListPets(ctx context.Context) ([]pets.Pet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, remote_ref, owner_id, display_name,
		       image_blob, image_ref,
		       is_shared, is_share_accepted, share_ref, share_counterpart_name,
		       last_modified, created_at
		FROM pets ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]pets.Pet, 0)
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DeletePet(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE pet_ref = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pets WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) UpsertEvent(ctx context.Context, e events.Event) (bool, error) {
	if strings.TrimSpace(e.ID) == "" {
		return false, errors.New("event id required")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, remote_ref, pet_ref, kind, occurred_at, last_modified, pending)
		VALUES (?,?,?,?,?,?,0)
		ON CONFLICT(id) DO UPDATE SET
			remote_ref = CASE
				WHEN events.remote_ref <> '' AND excluded.remote_ref = '' THEN events.remote_ref
				ELSE excluded.remote_ref
			END,
			pet_ref       = excluded.pet_ref,
			kind          = excluded.kind,
			occurred_at   = excluded.occurred_at,
			last_modified = excluded.last_modified
		WHERE events.last_modified < excluded.last_modified
	`,
		e.ID, e.RemoteRef, e.PetRef, string(e.Kind),
		e.OccurredAt.UTC().Format(tsLayout), e.LastModified.UTC().Format(tsLayout),
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (events.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, remote_ref, pet_ref, kind, occurred_at, last_modified
		FROM events WHERE id = ?
	`, id)
	return scanEvent(row)
}

func (s *Store) ListEventsByPet(ctx context.Context, petID string) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, remote_ref, pet_ref, kind, occurred_at, last_modified
		FROM events WHERE pet_ref = ? ORDER BY occurred_at ASC
	`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	return err
}

func (s *Store) SetPetRemoteRef(ctx context.Context, id, remoteRef string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pets SET remote_ref = ? WHERE id = ? AND remote_ref = ''`, remoteRef, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// O no existe, o ya tenía remote_ref (write-once).
		if _, gerr := s.GetPet(ctx, id); gerr != nil {
			return gerr
		}
	}
	return nil
}

func (s *Store) SetPetImageRef(ctx context.Context, id, imageRef string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE pets SET image_ref = ? WHERE id = ?`, imageRef, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

func (s *Store) SetEventRemoteRef(ctx context.Context, id, remoteRef string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET remote_ref = ? WHERE id = ? AND remote_ref = ''`, remoteRef, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, gerr := s.GetEvent(ctx, id); gerr != nil {
			return gerr
		}
	}
	return nil
}

func (s *Store) MarkPetPending(ctx context.Context, id string) error {
	return s.setPending(ctx, "pets", id, true)
}

func (s *Store) ClearPetPending(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE pets SET pending = 0 WHERE id = ?`, id)
	return err
}

func (s *Store) ListPendingPets(ctx context.Context) ([]pets.Pet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, remote_ref, owner_id, display_name,
		       image_blob, image_ref,
		       is_shared, is_share_accepted, share_ref, share_counterpart_name,
		       last_modified, created_at
		FROM pets WHERE pending = 1 ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]pets.Pet, 0)
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) MarkEventPending(ctx context.Context, id string) error {
	return s.setPending(ctx, "events", id, true)
}

func (s *Store) ClearEventPending(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE events SET pending = 0 WHERE id = ?`, id)
	return err
}

func (s *Store) ListPendingEvents(ctx context.Context) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, remote_ref, pet_ref, kind, occurred_at, last_modified
		FROM events WHERE pending = 1 ORDER BY occurred_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (s *Store) setPending(ctx context.Context, table, id string, pending bool) error {
	// table viene de un set fijo interno, nunca de input externo.
	res, err := s.db.ExecContext(ctx, `UPDATE `+table+` SET pending = ? WHERE id = ?`, boolToInt(pending), id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPet(row rowScanner) (pets.Pet, error) {
	var (
		p                       pets.Pet
		shared, accepted        int
		lastModified, createdAt string
	)
	err := row.Scan(
		&p.ID, &p.RemoteRef, &p.OwnerID, &p.DisplayName,
		&p.ImageBlob, &p.ImageRef,
		&shared, &accepted, &p.ShareRef, &p.ShareCounterpartName,
		&lastModified, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return pets.Pet{}, cache.ErrNotFound
	}
	if err != nil {
		return pets.Pet{}, err
	}
	p.IsShared = shared != 0
	p.IsShareAccepted = accepted != 0
	if p.LastModified, err = time.Parse(tsLayout, lastModified); err != nil {
		return pets.Pet{}, err
	}
	if p.CreatedAt, err = time.Parse(tsLayout, createdAt); err != nil {
		return pets.Pet{}, err
	}
	return p, nil
}

func scanEvent(row rowScanner) (events.Event, error) {
	var (
		e                        events.Event
		kind                     string
		occurredAt, lastModified string
	)
	err := row.Scan(&e.ID, &e.RemoteRef, &e.PetRef, &kind, &occurredAt, &lastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return events.Event{}, cache.ErrNotFound
	}
	if err != nil {
		return events.Event{}, err
	}
	e.Kind = events.Kind(kind)
	if e.OccurredAt, err = time.Parse(tsLayout, occurredAt); err != nil {
		return events.Event{}, err
	}
	if e.LastModified, err = time.Parse(tsLayout, lastModified); err != nil {
		return events.Event{}, err
	}
	return e, nil
}

func collectEvents(rows *sql.Rows) ([]events.Event, error) {
	out := make([]events.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package backend

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pet-care-sync/internal/contracts"
)

// OpenPostgres abre el pool contra Postgres vía pgx (database/sql) y
// asegura el esquema del doc store.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migratePostgres(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migratePostgres(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pet_docs (
			id            TEXT PRIMARY KEY,
			remote_ref    TEXT NOT NULL,
			owner_id      TEXT NOT NULL,
			display_name  TEXT NOT NULL,
			image_ref     TEXT NOT NULL DEFAULT '',
			is_shared     BOOLEAN NOT NULL DEFAULT FALSE,
			share_ref     TEXT NOT NULL DEFAULT '',
			last_modified TIMESTAMPTZ NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pet_docs_owner ON pet_docs(owner_id)`,
		`CREATE TABLE IF NOT EXISTS event_docs (
			id            TEXT PRIMARY KEY,
			remote_ref    TEXT NOT NULL,
			pet_id        TEXT NOT NULL,
			kind          TEXT NOT NULL,
			occurred_at   TIMESTAMPTZ NOT NULL,
			last_modified TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_docs_pet ON event_docs(pet_id)`,
		`CREATE TABLE IF NOT EXISTS share_docs (
			id            TEXT PRIMARY KEY,
			subject_id    TEXT NOT NULL,
			issuer_id     TEXT NOT NULL,
			issuer_name   TEXT NOT NULL DEFAULT '',
			target_hint   TEXT NOT NULL DEFAULT '',
			accepted      BOOLEAN NOT NULL DEFAULT FALSE,
			accepted_by   TEXT NOT NULL DEFAULT '',
			accepted_name TEXT NOT NULL DEFAULT '',
			accepted_at   TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_share_docs_subject ON share_docs(subject_id)`,
		`CREATE INDEX IF NOT EXISTS idx_share_docs_accepted_by ON share_docs(accepted_by) WHERE accepted`,
		`CREATE TABLE IF NOT EXISTS blob_docs (
			ref  TEXT PRIMARY KEY,
			data BYTEA NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// PostgresStore implementa DocStore sobre Postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ DocStore = (*PostgresStore)(nil)

func (s *PostgresStore) CreatePet(ctx context.Context, doc contracts.PetDocument) (contracts.PetDocument, error) {
	doc.RemoteRef = "doc-pet-" + doc.ID
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pet_docs (id, remote_ref, owner_id, display_name, image_ref, is_shared, share_ref, last_modified, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO NOTHING
	`, doc.ID, doc.RemoteRef, doc.OwnerID, doc.DisplayName, doc.ImageRef, doc.IsShared, doc.ShareRef, doc.LastModified, doc.CreatedAt)
	if err != nil {
		return contracts.PetDocument{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return contracts.PetDocument{}, ErrAlreadyExists
	}
	return doc, nil
}

func (s *PostgresStore) UpdatePet(ctx context.Context, doc contracts.PetDocument) (contracts.PetDocument, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pet_docs SET
			owner_id = $2, display_name = $3, image_ref = $4,
			is_shared = $5, share_ref = $6, last_modified = $7
		WHERE id = $1 AND last_modified <= $7
	`, doc.ID, doc.OwnerID, doc.DisplayName, doc.ImageRef, doc.IsShared, doc.ShareRef, doc.LastModified)
	if err != nil {
		return contracts.PetDocument{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, gerr := s.GetPet(ctx, doc.ID); gerr != nil {
			return contracts.PetDocument{}, ErrNotFound
		}
		return contracts.PetDocument{}, ErrStale
	}
	return s.GetPet(ctx, doc.ID)
}

func (s *PostgresStore) DeletePet(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM event_docs WHERE pet_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM pet_docs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *PostgresStore) GetPet(ctx context.Context, id string) (contracts.PetDocument, error) {
	var doc contracts.PetDocument
	err := s.db.QueryRowContext(ctx, `
		SELECT id, remote_ref, owner_id, display_name, image_ref, is_shared, share_ref, last_modified, created_at
		FROM pet_docs WHERE id = $1
	`, id).Scan(&doc.ID, &doc.RemoteRef, &doc.OwnerID, &doc.DisplayName, &doc.ImageRef,
		&doc.IsShared, &doc.ShareRef, &doc.LastModified, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.PetDocument{}, ErrNotFound
	}
	if err != nil {
		return contracts.PetDocument{}, err
	}
	return doc, nil
}

func (s *PostgresStore) ListPetsByOwner(ctx context.Context, ownerID string) ([]contracts.PetDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, remote_ref, owner_id, display_name, image_ref, is_shared, share_ref, last_modified, created_at
		FROM pet_docs WHERE owner_id = $1 ORDER BY created_at ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]contracts.PetDocument, 0)
	for rows.Next() {
		var doc contracts.PetDocument
		if err := rows.Scan(&doc.ID, &doc.RemoteRef, &doc.OwnerID, &doc.DisplayName, &doc.ImageRef,
			&doc.IsShared, &doc.ShareRef, &doc.LastModified, &doc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateEvent(ctx context.Context, doc contracts.EventDocument) (contracts.EventDocument, error) {
	doc.RemoteRef = "doc-event-" + doc.ID
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO event_docs (id, remote_ref, pet_id, kind, occurred_at, last_modified)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO NOTHING
	`, doc.ID, doc.RemoteRef, doc.PetID, doc.Kind, doc.OccurredAt, doc.LastModified)
	if err != nil {
		return contracts.EventDocument{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return contracts.EventDocument{}, ErrAlreadyExists
	}
	return doc, nil
}

func (s *PostgresStore) UpdateEvent(ctx context.Context, doc contracts.EventDocument) (contracts.EventDocument, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE event_docs SET pet_id = $2, kind = $3, occurred_at = $4, last_modified = $5
		WHERE id = $1 AND last_modified <= $5
	`, doc.ID, doc.PetID, doc.Kind, doc.OccurredAt, doc.LastModified)
	if err != nil {
		return contracts.EventDocument{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var stored contracts.EventDocument
		gerr := s.db.QueryRowContext(ctx,
			`SELECT id, remote_ref, pet_id, kind, occurred_at, last_modified FROM event_docs WHERE id = $1`, doc.ID,
		).Scan(&stored.ID, &stored.RemoteRef, &stored.PetID, &stored.Kind, &stored.OccurredAt, &stored.LastModified)
		if gerr != nil {
			return contracts.EventDocument{}, ErrNotFound
		}
		return contracts.EventDocument{}, ErrStale
	}
	return doc, nil
}

func (s *PostgresStore) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM event_docs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListEventsByPet(ctx context.Context, petID string) ([]contracts.EventDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, remote_ref, pet_id, kind, occurred_at, last_modified
		FROM event_docs WHERE pet_id = $1 ORDER BY occurred_at ASC
	`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]contracts.EventDocument, 0)
	for rows.Next() {
		var doc contracts.EventDocument
		if err := rows.Scan(&doc.ID, &doc.RemoteRef, &doc.PetID, &doc.Kind, &doc.OccurredAt, &doc.LastModified); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateShare(ctx context.Context, doc contracts.ShareDocument) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO share_docs (id, subject_id, issuer_id, issuer_name, target_hint, accepted, accepted_by, accepted_name, accepted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO NOTHING
	`, doc.ID, doc.SubjectID, doc.IssuerID, doc.IssuerName, doc.TargetHint,
		doc.Accepted, doc.AcceptedBy, doc.AcceptedName, doc.AcceptedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *PostgresStore) UpdateShare(ctx context.Context, doc contracts.ShareDocument) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE share_docs SET
			subject_id = $2, issuer_id = $3, issuer_name = $4, target_hint = $5,
			accepted = $6, accepted_by = $7, accepted_name = $8, accepted_at = $9
		WHERE id = $1
	`, doc.ID, doc.SubjectID, doc.IssuerID, doc.IssuerName, doc.TargetHint,
		doc.Accepted, doc.AcceptedBy, doc.AcceptedName, doc.AcceptedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetShare(ctx context.Context, id string) (contracts.ShareDocument, error) {
	return s.scanShare(s.db.QueryRowContext(ctx, `
		SELECT id, subject_id, issuer_id, issuer_name, target_hint, accepted, accepted_by, accepted_name, accepted_at
		FROM share_docs WHERE id = $1
	`, id))
}

func (s *PostgresStore) FindShareBySubject(ctx context.Context, subjectID string) (contracts.ShareDocument, error) {
	return s.scanShare(s.db.QueryRowContext(ctx, `
		SELECT id, subject_id, issuer_id, issuer_name, target_hint, accepted, accepted_by, accepted_name, accepted_at
		FROM share_docs WHERE subject_id = $1 LIMIT 1
	`, subjectID))
}

func (s *PostgresStore) ListAcceptedShares(ctx context.Context, accountID string) ([]contracts.ShareDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, issuer_id, issuer_name, target_hint, accepted, accepted_by, accepted_name, accepted_at
		FROM share_docs WHERE accepted AND accepted_by = $1
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]contracts.ShareDocument, 0)
	for rows.Next() {
		var doc contracts.ShareDocument
		if err := rows.Scan(&doc.ID, &doc.SubjectID, &doc.IssuerID, &doc.IssuerName, &doc.TargetHint,
			&doc.Accepted, &doc.AcceptedBy, &doc.AcceptedName, &doc.AcceptedAt); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

type shareRow interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanShare(row shareRow) (contracts.ShareDocument, error) {
	var doc contracts.ShareDocument
	err := row.Scan(&doc.ID, &doc.SubjectID, &doc.IssuerID, &doc.IssuerName, &doc.TargetHint,
		&doc.Accepted, &doc.AcceptedBy, &doc.AcceptedName, &doc.AcceptedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.ShareDocument{}, ErrNotFound
	}
	if err != nil {
		return contracts.ShareDocument{}, err
	}
	return doc, nil
}

func (s *PostgresStore) PutBlob(ctx context.Context, id string, data []byte) (string, error) {
	ref := "blob-" + id
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blob_docs (ref, data) VALUES ($1, $2)
		ON CONFLICT (ref) DO UPDATE SET data = excluded.data
	`, ref, data)
	if err != nil {
		return "", err
	}
	return ref, nil
}

func (s *PostgresStore) GetBlob(ctx context.Context, ref string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blob_docs WHERE ref = $1`, ref).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

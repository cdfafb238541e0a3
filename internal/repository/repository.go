// Package repository is the pgx-backed persistence layer. Dive records are
// stored as jsonb documents scoped by owner; a record owned by someone else
// scans the same as a missing one.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"divelog/internal/model"
)

// ErrEmailTaken is returned by CreateAccount when the normalized email is
// already registered.
var ErrEmailTaken = errors.New("email_in_use")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (model.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, current_refresh_token, created_at, updated_at
		FROM accounts
		WHERE email = $1
	`, email))
}

func (s *Store) GetAccountByID(ctx context.Context, accountID string) (model.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, current_refresh_token, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, accountID))
}

// GetAccountByRefreshToken finds the account whose single active refresh
// token equals the supplied one. No match means the token was rotated away
// or revoked.
func (s *Store) GetAccountByRefreshToken(ctx context.Context, token string) (model.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, current_refresh_token, created_at, updated_at
		FROM accounts
		WHERE current_refresh_token = $1
	`, token))
}

// CreateAccount inserts inside a transaction so the duplicate check and the
// insert see the same state. The unique index on email backstops races.
func (s *Store) CreateAccount(ctx context.Context, account model.Account) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`, account.Email).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrEmailTaken
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO accounts (id, email, password_hash, current_refresh_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, account.ID, account.Email, account.PasswordHash, account.CurrentRefreshToken, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SetRefreshToken overwrites the account's active refresh token; nil clears
// it (logout). Last write wins on concurrent logins.
func (s *Store) SetRefreshToken(ctx context.Context, accountID string, token *string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET current_refresh_token = $1, updated_at = $2
		WHERE id = $3
	`, token, time.Now().UTC(), accountID)
	return err
}

func (s *Store) ListDivesByOwner(ctx context.Context, ownerID string) ([]model.Dive, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, doc, created_at, updated_at
		FROM dives
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dives := []model.Dive{}
	for rows.Next() {
		dive, err := scanDive(rows)
		if err != nil {
			return nil, err
		}
		dives = append(dives, dive)
	}
	return dives, rows.Err()
}

func (s *Store) GetDiveByIDAndOwner(ctx context.Context, diveID, ownerID string) (model.Dive, error) {
	return scanDive(s.pool.QueryRow(ctx, `
		SELECT id, owner_id, doc, created_at, updated_at
		FROM dives
		WHERE id = $1 AND owner_id = $2
	`, diveID, ownerID))
}

func (s *Store) CreateDive(ctx context.Context, dive model.Dive) error {
	doc, err := json.Marshal(dive)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO dives (id, owner_id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, dive.ID, dive.OwnerID, doc, dive.CreatedAt, dive.UpdatedAt)
	return err
}

// ReplaceDiveByIDAndOwner swaps the whole document, not a partial merge.
func (s *Store) ReplaceDiveByIDAndOwner(ctx context.Context, dive model.Dive) (model.Dive, error) {
	doc, err := json.Marshal(dive)
	if err != nil {
		return model.Dive{}, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE dives
		SET doc = $1, updated_at = $2
		WHERE id = $3 AND owner_id = $4
		RETURNING created_at
	`, doc, dive.UpdatedAt, dive.ID, dive.OwnerID)
	if err := row.Scan(&dive.CreatedAt); err != nil {
		return model.Dive{}, err
	}
	return dive, nil
}

func (s *Store) DeleteDiveByIDAndOwner(ctx context.Context, diveID, ownerID string) (model.Dive, error) {
	return scanDive(s.pool.QueryRow(ctx, `
		DELETE FROM dives
		WHERE id = $1 AND owner_id = $2
		RETURNING id, owner_id, doc, created_at, updated_at
	`, diveID, ownerID))
}

func scanAccount(row pgx.Row) (model.Account, error) {
	var account model.Account
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.CurrentRefreshToken,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	return account, err
}

// scanDive rebuilds the record from the jsonb document; the id, owner and
// timestamp columns are authoritative.
func scanDive(row pgx.Row) (model.Dive, error) {
	var (
		dive model.Dive
		doc  []byte
	)
	if err := row.Scan(&dive.ID, &dive.OwnerID, &doc, &dive.CreatedAt, &dive.UpdatedAt); err != nil {
		return model.Dive{}, err
	}
	id, owner := dive.ID, dive.OwnerID
	created, updated := dive.CreatedAt, dive.UpdatedAt
	if err := json.Unmarshal(doc, &dive); err != nil {
		return model.Dive{}, err
	}
	dive.ID, dive.OwnerID = id, owner
	dive.CreatedAt, dive.UpdatedAt = created, updated
	return dive, nil
}

package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres error code raised by the journal's unique
// constraint on operation_track_id.
const uniqueViolation = "23505"

// PostgresStore persists wallets and the transaction journal in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store implementation.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a wallet row.
func (s *PostgresStore) Create(ctx context.Context, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return fmt.Errorf("parse wallet id: %w", err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO wallets (id, balance, currency, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		walletID, w.Balance, w.Currency, w.Version, w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrWalletExists
		}
		return err
	}
	return nil
}

// Get fetches a wallet by identifier.
func (s *PostgresStore) Get(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT id, balance, currency, version, created_at, updated_at
        FROM wallets WHERE id = $1`, walletID)

	var w Wallet
	var idVal uuid.UUID
	var createdAt, updatedAt time.Time
	if err := row.Scan(&idVal, &w.Balance, &w.Currency, &w.Version, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.ID = idVal.String()
	w.CreatedAt = createdAt.UTC()
	w.UpdatedAt = updatedAt.UTC()
	return w, nil
}

// ApplyOperation commits the balance write and the journal append in one
// transaction. The balance update succeeds only if the wallet row still
// carries expectedVersion; otherwise a concurrent writer won and the caller
// receives ErrVersionConflict.
func (s *PostgresStore) ApplyOperation(ctx context.Context, walletID string, expectedVersion, newBalance int64, entry Entry) error {
	wID, err := uuid.Parse(walletID)
	if err != nil {
		return ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	tag, err := tx.Exec(ctx, `UPDATE wallets
        SET balance = $1, version = version + 1, updated_at = $2
        WHERE id = $3 AND version = $4`,
		newBalance, time.Now().UTC(), wID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// The wallet existed when the caller loaded it, so a zero-row update
		// means the version moved underneath us.
		return ErrVersionConflict
	}

	if _, err := tx.Exec(ctx, `INSERT INTO transactions
        (id, wallet_id, operation_type, amount, previous_balance, new_balance, operation_track_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		mustUUID(entry.ID), wID, string(entry.Type), entry.Amount,
		entry.PreviousBalance, entry.NewBalance, mustUUID(entry.TrackID), entry.CreatedAt.UTC()); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateOperation
		}
		return err
	}

	return tx.Commit(ctx)
}

// HasOperation reports whether a journal entry exists for the track id.
func (s *PostgresStore) HasOperation(ctx context.Context, trackID string) (bool, error) {
	tID, err := uuid.Parse(trackID)
	if err != nil {
		return false, fmt.Errorf("parse track id: %w", err)
	}
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE operation_track_id = $1)`, tID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// EntryByTrackID fetches the journal entry recorded for the track id.
func (s *PostgresStore) EntryByTrackID(ctx context.Context, trackID string) (Entry, error) {
	tID, err := uuid.Parse(trackID)
	if err != nil {
		return Entry{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT id, wallet_id, operation_type, amount, previous_balance, new_balance, operation_track_id, created_at
        FROM transactions WHERE operation_track_id = $1`, tID)

	var e Entry
	var id, wID, track uuid.UUID
	var opType string
	var createdAt time.Time
	if err := row.Scan(&id, &wID, &opType, &e.Amount, &e.PreviousBalance, &e.NewBalance, &track, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	e.ID = id.String()
	e.WalletID = wID.String()
	e.Type = OperationType(opType)
	e.TrackID = track.String()
	e.CreatedAt = createdAt.UTC()
	return e, nil
}

func mustUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

package wallet

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the wallet does not exist.
	ErrNotFound = errors.New("wallet not found")

	// ErrInsufficientBalance occurs when a withdrawal exceeds the available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrVersionConflict indicates the optimistic version check failed because a
	// concurrent writer committed first. Callers are expected to re-read and retry.
	ErrVersionConflict = errors.New("wallet version conflict")

	// ErrDuplicateOperation indicates the operation track id already exists in the
	// transaction journal and therefore the operation was already applied.
	ErrDuplicateOperation = errors.New("duplicate operation")

	// ErrWalletExists indicates a wallet with the same id already exists.
	ErrWalletExists = errors.New("wallet already exists")
)

// Store defines the contract implemented by ledger backends (e.g. Postgres).
//
// ApplyOperation is the single mutation path for balances: it writes the new
// balance with a compare-and-swap on the expected version and appends the
// journal entry in the same transaction, so the idempotency check and the
// balance delta commit atomically together.
type Store interface {
	Create(ctx context.Context, w Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	ApplyOperation(ctx context.Context, walletID string, expectedVersion, newBalance int64, entry Entry) error
	HasOperation(ctx context.Context, trackID string) (bool, error)
	EntryByTrackID(ctx context.Context, trackID string) (Entry, error)
}

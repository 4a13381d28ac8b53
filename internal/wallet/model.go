package wallet

import "time"

// OperationType enumerates the supported balance operations.
type OperationType string

const (
	// Deposit credits the wallet balance.
	Deposit OperationType = "DEPOSIT"
	// Withdraw debits the wallet balance.
	Withdraw OperationType = "WITHDRAW"
)

// Valid reports whether the operation type is one of the known kinds.
func (t OperationType) Valid() bool {
	return t == Deposit || t == Withdraw
}

// Wallet is the authoritative balance record. The balance is stored in the
// smallest currency unit and is never negative in a committed state. Version
// increments on every successful write and backs the compare-and-swap update.
type Wallet struct {
	ID        string
	Balance   int64
	Currency  string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry is an append-only transaction journal record. The operation track id
// is unique across the journal, which makes the journal double as the
// idempotency ledger: an entry exists for a track id iff the operation was
// already applied.
type Entry struct {
	ID              string
	WalletID        string
	Type            OperationType
	Amount          int64
	PreviousBalance int64
	NewBalance      int64
	TrackID         string
	CreatedAt       time.Time
}

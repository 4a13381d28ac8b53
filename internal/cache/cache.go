package cache

import "context"

// Snapshot is a disposable view of a wallet's balance. It is never
// authoritative; the ledger store is.
type Snapshot struct {
	WalletID string `json:"wallet_id"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

// BalanceCache is the fast-path cache consulted before the ledger store.
// Implementations must degrade rather than fail: a broken cache reports
// misses on Get and no-ops on Set/Invalidate, so the request path always
// falls through to the authoritative store.
type BalanceCache interface {
	Get(ctx context.Context, walletID string) (Snapshot, bool)
	Set(ctx context.Context, snap Snapshot)
	Invalidate(ctx context.Context, walletID string)
}

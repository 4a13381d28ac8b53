package event

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/practicum/wallet-ops/internal/wallet"
)

// Operation is the wire contract carried on the event channel between the
// admission gateway and the ledger updater. It must remain stable across
// versions of either side.
type Operation struct {
	WalletID  string               `json:"wallet_id"`
	Type      wallet.OperationType `json:"operation_type"`
	Amount    int64                `json:"amount"`
	Timestamp time.Time            `json:"timestamp"`
	TrackID   string               `json:"operation_track_id"`
}

// Publisher emits operations onto the durable event channel. Publish returns
// only after the event is durably accepted; events for the same wallet always
// land on the same partition, which preserves per-wallet ordering.
type Publisher interface {
	Publish(ctx context.Context, op Operation) error
}

// Handler processes a delivered operation. A nil return acknowledges the
// message; an error leaves it pending for redelivery.
type Handler func(ctx context.Context, op Operation) error

// Partition maps a wallet id onto one of n partitions. The mapping is stable
// so that all events for a wallet share a partition.
func Partition(walletID string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(walletID)) // nolint:errcheck
	return int(h.Sum32() % uint32(n))
}

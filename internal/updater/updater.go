package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/practicum/wallet-ops/internal/event"
	"github.com/practicum/wallet-ops/internal/wallet"
)

// Updater consumes operation events and applies them to the authoritative
// balance. Delivery is at-least-once; the transaction journal's unique track
// id makes each logical operation apply at most once.
type Updater struct {
	store       wallet.Store
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

// New builds a ledger updater.
func New(store wallet.Store, logger *slog.Logger, maxAttempts int, backoff time.Duration) *Updater {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Updater{
		store:       store,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		now:         time.Now,
	}
}

// Apply processes one delivered operation. A nil return acknowledges the
// message; that covers successful application, redelivered duplicates, and
// terminal conditions that a retry cannot fix (missing wallet, insufficient
// authoritative balance). A non-nil return leaves the message for redelivery.
func (u *Updater) Apply(ctx context.Context, op event.Operation) error {
	for attempt := 1; ; attempt++ {
		err := u.applyOnce(ctx, op)
		if err == nil {
			return nil
		}
		if !errors.Is(err, wallet.ErrVersionConflict) {
			return err
		}
		if attempt >= u.maxAttempts {
			u.logger.Error("version conflict retries exhausted",
				"wallet_id", op.WalletID, "track_id", op.TrackID, "attempts", attempt)
			return fmt.Errorf("apply operation %s: %w", op.TrackID, err)
		}
		u.logger.Debug("version conflict, retrying",
			"wallet_id", op.WalletID, "track_id", op.TrackID, "attempt", attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(u.backoff):
		}
	}
}

func (u *Updater) applyOnce(ctx context.Context, op event.Operation) error {
	applied, err := u.store.HasOperation(ctx, op.TrackID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if applied {
		u.logger.Info("operation already applied, skipping", "track_id", op.TrackID)
		return nil
	}

	w, err := u.store.Get(ctx, op.WalletID)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			// Admission validated wallet existence, so a miss here means the
			// data diverged. Ack and alarm rather than redeliver forever.
			u.logger.Error("wallet missing for admitted operation",
				"wallet_id", op.WalletID, "track_id", op.TrackID)
			return nil
		}
		return fmt.Errorf("load wallet: %w", err)
	}

	newBalance := w.Balance
	switch op.Type {
	case wallet.Deposit:
		newBalance += op.Amount
	case wallet.Withdraw:
		if op.Amount > w.Balance {
			// The gateway's snapshot was stale and a racing withdrawal won.
			u.logger.Warn("withdrawal denied by authoritative balance",
				"wallet_id", op.WalletID, "track_id", op.TrackID,
				"balance", w.Balance, "amount", op.Amount)
			return nil
		}
		newBalance -= op.Amount
	default:
		u.logger.Error("unknown operation type, dropping",
			"type", string(op.Type), "track_id", op.TrackID)
		return nil
	}

	entry := wallet.Entry{
		ID:              uuid.NewString(),
		WalletID:        w.ID,
		Type:            op.Type,
		Amount:          op.Amount,
		PreviousBalance: w.Balance,
		NewBalance:      newBalance,
		TrackID:         op.TrackID,
		CreatedAt:       u.now().UTC(),
	}

	if err := u.store.ApplyOperation(ctx, w.ID, w.Version, newBalance, entry); err != nil {
		if errors.Is(err, wallet.ErrDuplicateOperation) {
			// A concurrent delivery of the same token committed between the
			// idempotency check and the write.
			u.logger.Info("operation applied concurrently, skipping", "track_id", op.TrackID)
			return nil
		}
		return err
	}

	u.logger.Info("balance updated",
		"wallet_id", w.ID, "type", string(op.Type),
		"previous_balance", entry.PreviousBalance, "new_balance", entry.NewBalance,
		"track_id", op.TrackID)
	return nil
}

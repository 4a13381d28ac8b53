package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestWallet(balance int64) Wallet {
	now := time.Now().UTC()
	return Wallet{
		ID:        uuid.NewString(),
		Balance:   balance,
		Currency:  "RUB",
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newEntry(w Wallet, kind OperationType, amount, newBalance int64) Entry {
	return Entry{
		ID:              uuid.NewString(),
		WalletID:        w.ID,
		Type:            kind,
		Amount:          amount,
		PreviousBalance: w.Balance,
		NewBalance:      newBalance,
		TrackID:         uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
	}
}

func TestApplyOperationUpdatesBalanceAndVersion(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	w := newTestWallet(1_000)
	if err := store.Create(ctx, w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	entry := newEntry(w, Deposit, 500, 1_500)
	if err := store.ApplyOperation(ctx, w.ID, 0, 1_500, entry); err != nil {
		t.Fatalf("apply operation: %v", err)
	}

	updated, err := store.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if updated.Balance != 1_500 {
		t.Fatalf("expected balance 1500, got %d", updated.Balance)
	}
	if updated.Version != 1 {
		t.Fatalf("expected version 1, got %d", updated.Version)
	}

	stored, err := store.EntryByTrackID(ctx, entry.TrackID)
	if err != nil {
		t.Fatalf("entry by track id: %v", err)
	}
	if stored.PreviousBalance != 1_000 || stored.NewBalance != 1_500 {
		t.Fatalf("unexpected entry balances: before=%d after=%d", stored.PreviousBalance, stored.NewBalance)
	}
}

func TestApplyOperationStaleVersionConflicts(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	w := newTestWallet(1_000)
	if err := store.Create(ctx, w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	first := newEntry(w, Deposit, 100, 1_100)
	if err := store.ApplyOperation(ctx, w.ID, 0, 1_100, first); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	stale := newEntry(w, Deposit, 100, 1_100)
	err := store.ApplyOperation(ctx, w.ID, 0, 1_100, stale)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestApplyOperationDuplicateTrackID(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	w := newTestWallet(1_000)
	if err := store.Create(ctx, w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	entry := newEntry(w, Deposit, 100, 1_100)
	if err := store.ApplyOperation(ctx, w.ID, 0, 1_100, entry); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	replay := entry
	replay.ID = uuid.NewString()
	err := store.ApplyOperation(ctx, w.ID, 1, 1_200, replay)
	if !errors.Is(err, ErrDuplicateOperation) {
		t.Fatalf("expected ErrDuplicateOperation, got %v", err)
	}

	final, _ := store.Get(ctx, w.ID)
	if final.Balance != 1_100 {
		t.Fatalf("duplicate must not change balance, got %d", final.Balance)
	}
}

func TestApplyOperationRejectsNegativeBalance(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	w := newTestWallet(100)
	if err := store.Create(ctx, w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	entry := newEntry(w, Withdraw, 200, -100)
	err := store.ApplyOperation(ctx, w.ID, 0, -100, entry)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestCreateDuplicateWallet(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	w := newTestWallet(0)
	if err := store.Create(ctx, w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if err := store.Create(ctx, w); !errors.Is(err, ErrWalletExists) {
		t.Fatalf("expected ErrWalletExists, got %v", err)
	}
}

func TestConcurrentCompareAndSwapLosesNoUpdate(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	w := newTestWallet(0)
	if err := store.Create(ctx, w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	const writers = 20
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			// Re-read and retry on conflict, like the updater does.
			for {
				current, err := store.Get(ctx, w.ID)
				if err != nil {
					t.Errorf("get wallet: %v", err)
					return
				}
				entry := newEntry(current, Deposit, 1, current.Balance+1)
				err = store.ApplyOperation(ctx, w.ID, current.Version, current.Balance+1, entry)
				if err == nil {
					return
				}
				if !errors.Is(err, ErrVersionConflict) {
					t.Errorf("apply operation: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	final, err := store.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if final.Balance != writers {
		t.Fatalf("expected balance %d, got %d", writers, final.Balance)
	}
	if final.Version != writers {
		t.Fatalf("expected version %d, got %d", writers, final.Version)
	}
}

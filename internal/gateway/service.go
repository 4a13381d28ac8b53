package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/practicum/wallet-ops/internal/cache"
	"github.com/practicum/wallet-ops/internal/event"
	"github.com/practicum/wallet-ops/internal/wallet"
)

const defaultCurrency = "RUB"

// Outcome is the admission decision for a submitted operation.
type Outcome string

const (
	// Accepted means the operation event was durably emitted; the ledger
	// updater applies it asynchronously.
	Accepted Outcome = "ACCEPTED"
	// Denied means the balance-sufficiency pre-check rejected the withdrawal.
	Denied Outcome = "DENIED"
	// NotFound means neither the cache nor the store knows the wallet.
	NotFound Outcome = "NOT_FOUND"
)

// ErrPublish wraps event-channel failures. Without a durable event there is
// no asynchronous guarantee, so this surfaces to the caller.
var ErrPublish = errors.New("event channel unavailable")

// Service is the admission gateway: it consults the fast cache, decides
// whether to admit the operation, and emits the durable event. It never
// mutates balances itself.
type Service struct {
	store     wallet.Store
	cache     cache.BalanceCache
	publisher event.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds an admission gateway service.
func NewService(store wallet.Store, balanceCache cache.BalanceCache, publisher event.Publisher, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		cache:     balanceCache,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// SubmitInput captures a requested wallet operation.
type SubmitInput struct {
	WalletID string
	Type     wallet.OperationType
	Amount   int64
	TrackID  string
}

// SubmitResult is the admission decision returned to the caller.
type SubmitResult struct {
	WalletID string
	Amount   int64
	TrackID  string
	Outcome  Outcome
}

// Submit runs the admission path: snapshot read (cache-aside), sufficiency
// pre-check, durable event emit, cache invalidation. It returns as soon as
// the event channel accepted the operation and never waits for the updater.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (SubmitResult, error) {
	if input.Amount <= 0 {
		return SubmitResult{}, fmt.Errorf("amount must be positive")
	}
	if !input.Type.Valid() {
		return SubmitResult{}, fmt.Errorf("unknown operation type %q", input.Type)
	}
	if input.TrackID == "" {
		input.TrackID = uuid.NewString()
	} else if _, err := uuid.Parse(input.TrackID); err != nil {
		return SubmitResult{}, fmt.Errorf("invalid operation track id: %w", err)
	}
	if _, err := uuid.Parse(input.WalletID); err != nil {
		return SubmitResult{}, fmt.Errorf("invalid wallet id: %w", err)
	}

	result := SubmitResult{WalletID: input.WalletID, Amount: input.Amount, TrackID: input.TrackID}

	snap, ok := s.cache.Get(ctx, input.WalletID)
	if !ok {
		w, err := s.store.Get(ctx, input.WalletID)
		if err != nil {
			if errors.Is(err, wallet.ErrNotFound) {
				result.Outcome = NotFound
				return result, nil
			}
			return SubmitResult{}, fmt.Errorf("read wallet: %w", err)
		}
		snap = cache.Snapshot{WalletID: w.ID, Balance: w.Balance, Currency: w.Currency}
		s.cache.Set(ctx, snap)
	}

	// Pre-check against the snapshot. The updater re-validates against the
	// authoritative balance, so a stale snapshot can only deny conservatively,
	// never admit what the updater would reject at this balance.
	if input.Type == wallet.Withdraw && snap.Balance < input.Amount {
		result.Outcome = Denied
		return result, nil
	}

	op := event.Operation{
		WalletID:  input.WalletID,
		Type:      input.Type,
		Amount:    input.Amount,
		Timestamp: s.now().UTC(),
		TrackID:   input.TrackID,
	}
	if err := s.publisher.Publish(ctx, op); err != nil {
		s.logger.Error("publish operation event", "wallet_id", input.WalletID, "track_id", input.TrackID, "error", err)
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrPublish, err)
	}

	// Force the next read through the store (or a fresher snapshot) instead of
	// a pre-operation view.
	s.cache.Invalidate(ctx, input.WalletID)

	s.logger.Info("operation accepted",
		"wallet_id", input.WalletID, "type", string(input.Type),
		"amount", input.Amount, "track_id", input.TrackID)

	result.Outcome = Accepted
	return result, nil
}

// Balance is the caller-visible read model of a wallet.
type Balance struct {
	WalletID string
	Amount   int64
	Currency string
}

// GetBalance serves reads with the same cache-aside policy as Submit, without
// emitting any event.
func (s *Service) GetBalance(ctx context.Context, walletID string) (Balance, error) {
	if _, err := uuid.Parse(walletID); err != nil {
		return Balance{}, wallet.ErrNotFound
	}

	if snap, ok := s.cache.Get(ctx, walletID); ok {
		return Balance{WalletID: snap.WalletID, Amount: snap.Balance, Currency: snap.Currency}, nil
	}

	w, err := s.store.Get(ctx, walletID)
	if err != nil {
		return Balance{}, err
	}
	s.cache.Set(ctx, cache.Snapshot{WalletID: w.ID, Balance: w.Balance, Currency: w.Currency})
	return Balance{WalletID: w.ID, Amount: w.Balance, Currency: w.Currency}, nil
}

// CreateInput captures data required to provision a wallet.
type CreateInput struct {
	Currency       string
	InitialBalance int64
}

// CreateWallet provisions a wallet row. Initial balance is applied directly
// at version zero; it predates any operation events.
func (s *Service) CreateWallet(ctx context.Context, input CreateInput) (wallet.Wallet, error) {
	if input.InitialBalance < 0 {
		return wallet.Wallet{}, fmt.Errorf("initial balance must not be negative")
	}
	currency := input.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	now := s.now().UTC()
	w := wallet.Wallet{
		ID:        uuid.NewString(),
		Balance:   input.InitialBalance,
		Currency:  currency,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, w); err != nil {
		return wallet.Wallet{}, err
	}
	return w, nil
}

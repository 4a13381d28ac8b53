package event

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/practicum/wallet-ops/internal/logging"
	"github.com/practicum/wallet-ops/internal/wallet"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func testOperation(walletID string, amount int64) Operation {
	return Operation{
		WalletID:  walletID,
		Type:      wallet.Deposit,
		Amount:    amount,
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		TrackID:   uuid.NewString(),
	}
}

func TestPartitionIsStable(t *testing.T) {
	id := uuid.NewString()
	first := Partition(id, 4)
	for i := 0; i < 10; i++ {
		if got := Partition(id, 4); got != first {
			t.Fatalf("partition changed: %d vs %d", first, got)
		}
	}
	if first < 0 || first >= 4 {
		t.Fatalf("partition out of range: %d", first)
	}
	if Partition(id, 1) != 0 {
		t.Fatal("single partition must map to 0")
	}
}

func TestPublishKeepsWalletOnOnePartition(t *testing.T) {
	client, _ := setupRedis(t)
	ctx := context.Background()

	const partitions = 4
	p := NewRedisPublisher(client, partitions)

	walletID := uuid.NewString()
	for i := 0; i < 5; i++ {
		if err := p.Publish(ctx, testOperation(walletID, int64(i+1))); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	owner := streamName(Partition(walletID, partitions))
	length, err := client.XLen(ctx, owner).Result()
	if err != nil {
		t.Fatalf("xlen: %v", err)
	}
	if length != 5 {
		t.Fatalf("expected all 5 events on %s, got %d", owner, length)
	}
}

func TestPublishPayloadIsStable(t *testing.T) {
	client, _ := setupRedis(t)
	ctx := context.Background()

	p := NewRedisPublisher(client, 1)
	op := testOperation(uuid.NewString(), 100)
	if err := p.Publish(ctx, op); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msgs, err := client.XRange(ctx, streamName(0), "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	raw, ok := msgs[0].Values[payloadField].(string)
	if !ok {
		t.Fatalf("missing %s field", payloadField)
	}

	var keys map[string]any
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	for _, field := range []string{"wallet_id", "operation_type", "amount", "timestamp", "operation_track_id"} {
		if _, present := keys[field]; !present {
			t.Fatalf("wire contract missing field %q", field)
		}
	}

	var decoded Operation
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("decode operation: %v", err)
	}
	if decoded != op {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, op)
	}
}

func TestConsumerDeliversInOrderAndAcks(t *testing.T) {
	client, _ := setupRedis(t)

	const partitions = 2
	p := NewRedisPublisher(client, partitions)
	c := NewRedisConsumer(client, partitions, "ledger-updater", 30*time.Second, logging.Discard())

	walletID := uuid.NewString()
	published := make([]Operation, 0, 5)
	for i := 0; i < 5; i++ {
		op := testOperation(walletID, int64((i+1)*10))
		published = append(published, op)
		if err := p.Publish(context.Background(), op); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	var mu sync.Mutex
	received := make([]Operation, 0, 5)
	done := make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go c.Run(ctx, func(_ context.Context, op Operation) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, op)
		if len(received) == len(published) {
			close(done)
		}
		return nil
	})

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for deliveries")
	}
	cancel()

	mu.Lock()
	defer mu.Unlock()
	for i, op := range published {
		if received[i].TrackID != op.TrackID {
			t.Fatalf("order broken at %d: got %s want %s", i, received[i].TrackID, op.TrackID)
		}
		if received[i].Amount != op.Amount {
			t.Fatalf("payload mismatch at %d", i)
		}
	}

	// Acked messages leave the pending entries list.
	stream := streamName(Partition(walletID, partitions))
	pending, err := client.XPending(context.Background(), stream, "ledger-updater").Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Fatalf("expected 0 pending messages, got %d", pending.Count)
	}
}

func TestConsumerReclaimsAbandonedMessages(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()

	p := NewRedisPublisher(client, 1)
	op := testOperation(uuid.NewString(), 100)
	if err := p.Publish(ctx, op); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// A first consumer reads the message but dies before acking.
	stream := streamName(0)
	if err := client.XGroupCreateMkStream(ctx, stream, "ledger-updater", "0").Err(); err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    "ledger-updater",
		Consumer: "dead-consumer",
		Streams:  []string{stream, ">"},
		Count:    1,
		Block:    -1,
	}).Err(); err != nil {
		t.Fatalf("first read: %v", err)
	}

	mr.FastForward(time.Minute)

	c := NewRedisConsumer(client, 1, "ledger-updater", 10*time.Millisecond, logging.Discard())

	received := make(chan Operation, 1)
	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	go c.Run(runCtx, func(_ context.Context, got Operation) error {
		received <- got
		return nil
	})

	select {
	case got := <-received:
		if got.TrackID != op.TrackID {
			t.Fatalf("reclaimed wrong message: %s", got.TrackID)
		}
	case <-runCtx.Done():
		t.Fatal("timed out waiting for reclaimed message")
	}
}

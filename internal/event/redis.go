package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	streamPrefix = "wallet:events:"
	payloadField = "payload"

	readBatch    = 16
	readBlock    = 2 * time.Second
	retryOnError = time.Second
)

func streamName(partition int) string {
	return fmt.Sprintf("%s%d", streamPrefix, partition)
}

// RedisPublisher emits operations onto partitioned Redis streams. XADD
// returns only after the entry is appended, so a nil error means the event
// is durable as far as the Redis deployment guarantees.
type RedisPublisher struct {
	client     *redis.Client
	partitions int
}

// NewRedisPublisher constructs a stream publisher over the given client.
func NewRedisPublisher(client *redis.Client, partitions int) *RedisPublisher {
	if partitions < 1 {
		partitions = 1
	}
	return &RedisPublisher{client: client, partitions: partitions}
}

// Publish appends the operation to the stream owning the wallet's partition.
func (p *RedisPublisher) Publish(ctx context.Context, op Operation) error {
	payload, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("encode operation: %w", err)
	}
	stream := streamName(Partition(op.WalletID, p.partitions))
	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{payloadField: payload},
	}).Err(); err != nil {
		return fmt.Errorf("publish operation: %w", err)
	}
	return nil
}

// RedisConsumer reads operations from the partitioned streams through a
// consumer group, one worker per partition so that per-wallet order is
// preserved while distinct partitions progress independently.
type RedisConsumer struct {
	client      *redis.Client
	partitions  int
	group       string
	name        string
	reclaimIdle time.Duration
	logger      *slog.Logger
}

// NewRedisConsumer constructs a consumer-group reader over the given client.
func NewRedisConsumer(client *redis.Client, partitions int, group string, reclaimIdle time.Duration, logger *slog.Logger) *RedisConsumer {
	if partitions < 1 {
		partitions = 1
	}
	host, err := os.Hostname()
	if err != nil {
		host = "updater"
	}
	return &RedisConsumer{
		client:      client,
		partitions:  partitions,
		group:       group,
		name:        fmt.Sprintf("%s-%s", host, uuid.NewString()[:8]),
		reclaimIdle: reclaimIdle,
		logger:      logger,
	}
}

// Run creates the consumer group on every partition stream, reclaims entries
// abandoned by dead consumers, then blocks reading until ctx is cancelled.
// A handler error keeps the message unacknowledged and retries it in place,
// which preserves per-wallet ordering across transient store outages.
func (c *RedisConsumer) Run(ctx context.Context, handler Handler) error {
	for p := 0; p < c.partitions; p++ {
		if err := c.ensureGroup(ctx, streamName(p)); err != nil {
			return err
		}
	}

	errCh := make(chan error, c.partitions)
	for p := 0; p < c.partitions; p++ {
		go func(partition int) {
			errCh <- c.consumePartition(ctx, partition, handler)
		}(p)
	}

	var firstErr error
	for p := 0; p < c.partitions; p++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *RedisConsumer) ensureGroup(ctx context.Context, stream string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group on %s: %w", stream, err)
	}
	return nil
}

func (c *RedisConsumer) consumePartition(ctx context.Context, partition int, handler Handler) error {
	stream := streamName(partition)

	if err := c.reclaim(ctx, stream, handler); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		c.logger.Error("reclaim pending entries", "stream", stream, "error", err)
	}

	lastReclaim := time.Now()
	for {
		if ctx.Err() != nil {
			return nil
		}

		res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{stream, ">"},
			Count:    readBatch,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
				if time.Since(lastReclaim) >= c.reclaimIdle {
					if err := c.reclaim(ctx, stream, handler); err != nil && !errors.Is(err, context.Canceled) {
						c.logger.Error("reclaim pending entries", "stream", stream, "error", err)
					}
					lastReclaim = time.Now()
				}
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("read event stream", "stream", stream, "error", err)
			if !sleepCtx(ctx, retryOnError) {
				return nil
			}
			continue
		}

		for _, s := range res {
			for _, msg := range s.Messages {
				if err := c.process(ctx, stream, msg, handler); err != nil {
					return err
				}
			}
		}
	}
}

// process retries the message with a fixed delay until it is handled or the
// context ends. Skipping ahead would reorder operations within the wallet's
// partition.
func (c *RedisConsumer) process(ctx context.Context, stream string, msg redis.XMessage, handler Handler) error {
	op, err := decode(msg)
	if err != nil {
		// Malformed payloads can never succeed; ack and raise the alarm.
		c.logger.Error("drop undecodable event", "stream", stream, "message_id", msg.ID, "error", err)
		return c.ack(ctx, stream, msg.ID)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := handler(ctx, op); err != nil {
			c.logger.Error("event processing failed, will retry",
				"stream", stream, "message_id", msg.ID,
				"wallet_id", op.WalletID, "track_id", op.TrackID, "error", err)
			if !sleepCtx(ctx, retryOnError) {
				return nil
			}
			continue
		}
		return c.ack(ctx, stream, msg.ID)
	}
}

func (c *RedisConsumer) reclaim(ctx context.Context, stream string, handler Handler) error {
	start := "0-0"
	for {
		msgs, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   stream,
			Group:    c.group,
			Consumer: c.name,
			MinIdle:  c.reclaimIdle,
			Start:    start,
			Count:    readBatch,
		}).Result()
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			if err := c.process(ctx, stream, msg, handler); err != nil {
				return err
			}
		}
		if len(msgs) == 0 || next == "0-0" {
			return nil
		}
		start = next
	}
}

func (c *RedisConsumer) ack(ctx context.Context, stream, id string) error {
	if err := c.client.XAck(ctx, stream, c.group, id).Err(); err != nil && ctx.Err() == nil {
		c.logger.Error("ack event", "stream", stream, "message_id", id, "error", err)
	}
	return nil
}

func decode(msg redis.XMessage) (Operation, error) {
	raw, ok := msg.Values[payloadField].(string)
	if !ok {
		return Operation{}, fmt.Errorf("message %s has no %s field", msg.ID, payloadField)
	}
	var op Operation
	if err := json.Unmarshal([]byte(raw), &op); err != nil {
		return Operation{}, fmt.Errorf("decode operation: %w", err)
	}
	return op, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

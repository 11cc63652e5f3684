package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const streamMaxLen int64 = 10000

// RedisConfig selects where events are forwarded.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Channel receives every event via PUBLISH.
	Channel string
	// Stream, when set, also gets every event via XADD.
	Stream string
}

// RedisPublisher is a Handler forwarding JSON envelopes to Redis pub/sub
// and, optionally, a capped stream.
type RedisPublisher struct {
	rdb     redis.Cmdable
	closer  func() error
	channel string
	stream  string
	logger  *zap.Logger
}

// NewRedisPublisher connects to Redis and checks the connection.
func NewRedisPublisher(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisPublisher, error) {
	if cfg.Channel == "" {
		return nil, fmt.Errorf("redis: channel is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	p := NewRedisPublisherWithClient(rdb, cfg.Channel, cfg.Stream, logger)
	p.closer = rdb.Close
	return p, nil
}

// NewRedisPublisherWithClient wraps an existing client.
func NewRedisPublisherWithClient(rdb redis.Cmdable, channel, stream string, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		rdb:     rdb,
		channel: channel,
		stream:  stream,
		logger:  logger.Named("redis_publisher"),
	}
}

// Handle implements Handler.
func (p *RedisPublisher) Handle(ctx context.Context, event Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}

	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", p.channel, err)
	}

	if p.stream != "" {
		args := &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: streamMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"type":    string(event.Type()),
				"payload": payload,
			},
		}
		if err := p.rdb.XAdd(ctx, args).Err(); err != nil {
			return fmt.Errorf("redis: stream append %s: %w", p.stream, err)
		}
	}

	p.logger.Debug("Event forwarded",
		zap.String("event_type", string(event.Type())),
		zap.Uint64("listing_id", uint64(event.Listing())))
	return nil
}

// Close releases the connection when the publisher owns it.
func (p *RedisPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

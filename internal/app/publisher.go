package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"stockledger/internal/config"
	"stockledger/internal/infrastructure/notify"
)

// OpenRedis connects to Redis when an address is configured. It returns nil otherwise.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	return notify.NewRedisClient(ctx, notify.RedisConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewPublisher selects the change publisher for NOTIFY_SINK. client is
// required for the redis sink and may be nil otherwise.
func NewPublisher(cfg config.NotifyConfig, client *redis.Client) (notify.Publisher, error) {
	switch cfg.Sink {
	case notify.SinkKafka:
		return notify.NewKafkaPublisher(notify.DefaultKafkaConfig(cfg.KafkaBrokers, cfg.KafkaTopic))
	case notify.SinkRedis:
		if client == nil {
			return nil, fmt.Errorf("redis sink requires a redis client")
		}
		channel := cfg.RedisChannel
		if channel == "" {
			channel = notify.DefaultRedisChannel
		}
		return notify.NewRedisPublisher(client, channel), nil
	case notify.SinkNone:
		return notify.NopPublisher{}, nil
	case notify.SinkLog, "":
		return notify.LogPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown notify sink %q", cfg.Sink)
	}
}

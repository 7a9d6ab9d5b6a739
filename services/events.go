package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/samet0demir/enerji-piyasasi/config"
)

type EventType string

const (
	EventFactsIngested     EventType = "facts_ingested"
	EventForecastsRecorded EventType = "forecasts_recorded"
	EventForecastResolved  EventType = "forecast_resolved"
	EventWeekCompleted     EventType = "week_completed"
)

// Event is the JSON message published on the live channel.
type Event struct {
	Type EventType `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

// EventBus publishes change notifications over redis pub/sub. A bus without
// a client, including a nil *EventBus, drops every event.
type EventBus struct {
	client  *redis.Client
	channel string
	log     zerolog.Logger
}

// NewEventBus connects to redis, retrying the ping while the server starts.
// On failure it returns a usable bus that drops events, plus the error.
func NewEventBus(cfg config.RedisConfig) (*EventBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	logger := log.With().Str("component", "events").Logger()

	var lastErr error
	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		lastErr = client.Ping(ctx).Err()
		cancel()
		if lastErr == nil {
			return &EventBus{client: client, channel: cfg.Channel, log: logger}, nil
		}
		logger.Warn().Err(lastErr).Int("attempt", i+1).Msg("redis ping failed")
		time.Sleep(2 * time.Second)
	}

	_ = client.Close()
	return &EventBus{channel: cfg.Channel, log: logger}, fmt.Errorf("redis ping failed after 10 attempts: %w", lastErr)
}

// NewEventBusWithClient wraps an existing client without pinging it.
func NewEventBusWithClient(client *redis.Client, channel string) *EventBus {
	return &EventBus{
		client:  client,
		channel: channel,
		log:     log.With().Str("component", "events").Logger(),
	}
}

func (b *EventBus) Available() bool {
	return b != nil && b.client != nil
}

func (b *EventBus) Channel() string {
	if b == nil {
		return ""
	}
	return b.channel
}

func (b *EventBus) Publish(ctx context.Context, evt Event) error {
	if !b.Available() {
		return nil
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Notify publishes and logs a failure instead of returning it. Writes that
// already committed must not fail because the live feed is down.
func (b *EventBus) Notify(ctx context.Context, typ EventType, data any) {
	if !b.Available() {
		return
	}
	if err := b.Publish(ctx, Event{Type: typ, Data: data}); err != nil {
		b.log.Warn().Err(err).Str("type", string(typ)).Msg("publish event")
	}
}

// Subscribe returns nil when the bus has no client.
func (b *EventBus) Subscribe(ctx context.Context) *redis.PubSub {
	if !b.Available() {
		return nil
	}
	return b.client.Subscribe(ctx, b.channel)
}

func (b *EventBus) Ping(ctx context.Context) error {
	if !b.Available() {
		return nil
	}
	return b.client.Ping(ctx).Err()
}

func (b *EventBus) Close() error {
	if !b.Available() {
		return nil
	}
	return b.client.Close()
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestNilEventBusDropsEvents(t *testing.T) {
	var bus *EventBus
	ctx := context.Background()

	assert.False(t, bus.Available())
	assert.NoError(t, bus.Publish(ctx, Event{Type: EventWeekCompleted}))
	assert.Nil(t, bus.Subscribe(ctx))
	assert.NoError(t, bus.Ping(ctx))
	assert.NoError(t, bus.Close())
	bus.Notify(ctx, EventFactsIngested, nil)
}

func TestPublishReportsUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	bus := NewEventBusWithClient(client, "enerji:test")
	t.Cleanup(func() { _ = bus.Close() })

	assert.True(t, bus.Available())
	assert.Equal(t, "enerji:test", bus.Channel())
	assert.Error(t, bus.Publish(context.Background(), Event{Type: EventForecastResolved, Data: map[string]int{"resolved": 1}}))
	bus.Notify(context.Background(), EventForecastResolved, nil)
}

package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yupeng0512/user-management/pkg/messaging"
)

func newBroker(t *testing.T) (messaging.Broker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisBroker(client, zerolog.Nop()), mr
}

func TestPublishQueuesUntilConsumed(t *testing.T) {
	broker, mr := newBroker(t)
	defer broker.Close()

	ctx := context.Background()
	require.NoError(t, broker.Publish(ctx, "events", map[string]string{"type": "first"}))
	require.NoError(t, broker.Publish(ctx, "events", map[string]string{"type": "second"}))

	items, err := mr.List("events")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	messages, err := broker.Subscribe(subCtx, "events")
	require.NoError(t, err)

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case raw := <-messages:
			var msg map[string]string
			require.NoError(t, json.Unmarshal(raw, &msg))
			got = append(got, msg["type"])
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
	assert.Equal(t, []string{"first", "second"}, got, "messages are delivered in publish order")
}

func TestConsumeStopsOnCancel(t *testing.T) {
	broker, _ := newBroker(t)
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, broker.Publish(ctx, "events", "hello"))

	received := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- messaging.Consume(ctx, broker, "events", func(_ context.Context, raw []byte) error {
			received <- string(raw)
			return nil
		})
	}()

	select {
	case msg := <-received:
		assert.Equal(t, `"hello"`, msg)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

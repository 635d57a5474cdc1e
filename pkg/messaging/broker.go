package messaging

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Broker moves JSON messages between processes
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	// Subscribe delivers raw payloads until ctx is done, then closes the channel
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Consume feeds every message on channel to handle until ctx is done.
// Handler errors are logged and the loop continues.
func Consume(ctx context.Context, b Broker, channel string, handle func(context.Context, []byte) error) error {
	messages, err := b.Subscribe(ctx, channel)
	if err != nil {
		return err
	}

	for msg := range messages {
		if err := handle(ctx, msg); err != nil {
			log.Error().
				Err(err).
				Str("channel", channel).
				Msg("Failed to handle message")
		}
	}
	return ctx.Err()
}

package amqpfeed

import (
	"context"
	"fmt"

	"github.com/alexanderramin/sitesync/internal/changefeed"
	"go.uber.org/zap"
)

// EventPublisher is satisfied by *Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, e changefeed.Event) error
}

// Relay forwards every event from source onto pub until ctx is done. It lets
// one database listener feed any number of broker subscribers.
func Relay(ctx context.Context, source changefeed.Transport, pub EventPublisher, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	handles := make([]changefeed.Handle, 0, len(changefeed.Tables))
	defer func() {
		for _, h := range handles {
			_ = h.Unsubscribe()
		}
	}()

	for _, table := range changefeed.Tables {
		h, err := source.Subscribe(ctx, changefeed.Subscription{Table: table}, func(e changefeed.Event) {
			if err := pub.Publish(ctx, e); err != nil {
				logger.Warn("relay publish failed", zap.String("routing_key", RoutingKey(e)), zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", table, err)
		}
		handles = append(handles, h)
	}
	logger.Info("relay running", zap.String("exchange", ExchangeName))
	<-ctx.Done()
	return nil
}

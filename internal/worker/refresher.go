package worker

import (
	"context"

	"compras/internal/amqp"
	"compras/internal/log"
)

// Refreshable is a store whose local subscribers can be told that a month
// changed in another process.
type Refreshable interface {
	Origin() string
	Refresh(ctx context.Context, month string) error
}

// Refresher re-reads months changed by other processes sharing the same
// database so that their local subscriptions observe the new document.
type Refresher struct {
	store  Refreshable
	logger *log.Logger
}

func NewRefresher(store Refreshable, logger *log.Logger) *Refresher {
	if logger == nil {
		logger = log.Discard()
	}
	return &Refresher{store: store, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleMonthChanged is the amqp.Handler of the refresher. Messages sent by
// the store itself are ignored; its subscribers already saw the change.
func (r *Refresher) HandleMonthChanged(ctx context.Context, msg *amqp.MonthChangedMessage) error {
	if msg.Origin == r.store.Origin() {
		return nil
	}
	r.logger.DebugContext(ctx, "Refreshing month changed elsewhere",
		log.FieldMonth, msg.Month,
		log.FieldOrigin, msg.Origin,
		log.FieldVersion, msg.Version)
	return r.store.Refresh(ctx, msg.Month)
}

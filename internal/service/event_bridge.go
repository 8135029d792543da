package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/sellerdesk/ozon-support/internal/events"
	"github.com/sellerdesk/ozon-support/internal/worker"
)

// EventBridge turns ticket events into queued work.
type EventBridge struct {
	dispatcher events.Dispatcher
	queue      worker.Dispatcher
	logger     *zap.Logger
}

// NewEventBridge creates the bridge.
func NewEventBridge(dispatcher events.Dispatcher, queue worker.Dispatcher, logger *zap.Logger) *EventBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBridge{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger.Named("events"),
	}
}

// RegisterHandlers subscribes to events.
func (b *EventBridge) RegisterHandlers() {
	if b.dispatcher == nil {
		return
	}
	b.dispatcher.Subscribe(events.EventTicketClosed, b.handleTicketClosed)
	b.dispatcher.Subscribe(events.EventTicketMessagesAdded, b.handleMessagesAdded)
}

func (b *EventBridge) handleTicketClosed(ctx context.Context, event events.Event) error {
	b.logger.Info("TicketClosed",
		zap.String("ticket_id", event.TicketID),
		zap.String("ticket_type", string(event.TicketType)),
		zap.String("actor", string(event.Actor.Type)),
	)
	return b.queue.Dispatch(ctx, ReplyTask{TicketID: event.TicketID})
}

func (b *EventBridge) handleMessagesAdded(_ context.Context, event events.Event) error {
	b.logger.Debug("TicketMessagesAdded", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

package worker

import (
	"context"
	"log"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/notify"
)

// NotificationWorker consumes checkout events and turns them into
// operator alerts. Delivery stays best-effort: a failed send is logged
// and the message is still committed, never redelivered into a
// notification storm.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, telegram *notify.Telegram) *NotificationWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderBilled(func(ctx context.Context, event *models.OrderBilledEvent) error {
		if err := telegram.NewOrder(ctx, event.OrderID, notify.NewOrderDetails{
			Item:            event.Item,
			Amount:          event.Amount,
			Currency:        event.Currency,
			PaymentProvider: event.PaymentProvider,
			CustomerName:    event.CustomerName,
			CustomerEmail:   event.CustomerEmail,
			CustomerPhone:   event.CustomerPhone,
			Location:        event.Location,
		}); err != nil {
			log.Printf("New-order notification failed for order %s: %v", event.OrderID, err)
		}
		return nil
	})

	eventHandler.OnPaymentStatusChanged(func(ctx context.Context, event *models.PaymentStatusChangedEvent) error {
		if err := telegram.PaymentUpdate(ctx, event.OrderID, notify.PaymentDetails{
			Status:          event.NewStatus,
			TransactionID:   event.TransactionID,
			Amount:          event.Amount,
			ResponseMessage: event.ResponseMessage,
		}); err != nil {
			log.Printf("Payment-update notification failed for order %s: %v", event.OrderID, err)
		}
		return nil
	})

	return &NotificationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

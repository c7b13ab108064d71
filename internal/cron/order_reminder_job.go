package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/internal/notifications"
	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/logger"
	"github.com/farmarket/farmarket-backend/pkg/outbox"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

const defaultReminderAfter = 24 * time.Hour

type staleOrderReader interface {
	FindStalePending(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

// OrderReminderJobParams configure the pending payment reminder.
type OrderReminderJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Orders        staleOrderReader
	Outbox        outboxEmitter
	ReminderAfter time.Duration
}

// NewOrderReminderJob builds the job that nudges customers whose orders
// sat unpaid past the reminder window. The outbox existence check keeps
// each order to a single reminder.
func NewOrderReminderJob(params OrderReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	after := params.ReminderAfter
	if after <= 0 {
		after = defaultReminderAfter
	}
	return &orderReminderJob{
		logg:   params.Logger,
		db:     params.DB,
		orders: params.Orders,
		outbox: params.Outbox,
		after:  after,
		now:    time.Now,
	}, nil
}

type orderReminderJob struct {
	logg   *logger.Logger
	db     txRunner
	orders staleOrderReader
	outbox outboxEmitter
	after  time.Duration
	now    func() time.Time
}

func (j *orderReminderJob) Name() string { return "order-reminders" }

func (j *orderReminderJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	stale, err := j.orders.FindStalePending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}
	reminded := 0
	for _, order := range stale {
		if err := j.emitReminder(ctx, order); err != nil {
			return err
		}
		reminded++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff": cutoff,
		"count":  reminded,
	})
	j.logg.Info(logCtx, "order reminder sweep complete")
	return nil
}

func (j *orderReminderJob) emitReminder(ctx context.Context, order models.Order) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		data := types.JSONMap{
			"orderId":     order.ID.String(),
			"orderNumber": order.OrderNumber,
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    j.now().UTC(),
			Data: notifications.NotificationRequestedEvent{
				UserID:  order.CustomerID,
				Type:    enums.NotificationTypeSystem,
				Title:   "Complete your order",
				Message: fmt.Sprintf("Order %s is waiting for payment. Complete it before the items sell out.", order.OrderNumber),
				Data:    &data,
			},
		}
		return j.outbox.EmitIfNotExists(ctx, tx, event)
	})
}

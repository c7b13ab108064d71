package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/email"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/logger"
	"github.com/farmarket/farmarket-backend/pkg/outbox"
	"github.com/farmarket/farmarket-backend/pkg/outbox/idempotency"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

const domainNotificationConsumer = "domain-notifications"

type farmerLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Farmer, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Consumer watches domain events and turns them into user notifications.
type Consumer struct {
	service      Service
	farmers      farmerLookup
	users        userLookup
	mailer       email.Sender
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// ConsumerParams bundles the consumer dependencies. Mailer is optional.
type ConsumerParams struct {
	Service      Service
	Farmers      farmerLookup
	Users        userLookup
	Mailer       email.Sender
	Subscription *pubsub.Subscriber
	Idempotency  *idempotency.Manager
	Logger       *logger.Logger
}

// NewConsumer builds a domain notification consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Service == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	if params.Farmers == nil {
		return nil, fmt.Errorf("farmer lookup required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user lookup required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		service:      params.Service,
		farmers:      params.Farmers,
		users:        params.Users,
		mailer:       params.Mailer,
		subscription: params.Subscription,
		idempotency:  params.Idempotency,
		logg:         params.Logger,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, domainNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handle(ctx, enums.OutboxEventType(eventType), envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, domainNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventOrderCreated:
		return c.handleOrderCreated(ctx, data)
	case enums.EventOrderStatusChanged, enums.EventOrderDelivered:
		return c.handleOrderStatusChanged(ctx, data)
	case enums.EventOrderCancelled:
		return c.handleOrderCancelled(ctx, data)
	case enums.EventPaymentSucceeded:
		return c.handlePaymentSucceeded(ctx, data)
	case enums.EventPaymentFailed:
		return c.handlePaymentFailed(ctx, data)
	case enums.EventProductLowStock:
		return c.handleProductLowStock(ctx, data)
	case enums.EventReviewCreated:
		return c.handleReviewCreated(ctx, data)
	case enums.EventFarmerVerified:
		return c.handleFarmerVerified(ctx, data)
	case enums.EventNotificationRequested:
		return c.handleNotificationRequested(ctx, data)
	default:
		c.logg.Info(logCtx, "event not handled")
		return nil
	}
}

type orderCreatedPayload struct {
	OrderID     uuid.UUID       `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	CustomerID  uuid.UUID       `json:"customerId"`
	FarmerIDs   []uuid.UUID     `json:"farmerIds"`
	Total       decimal.Decimal `json:"total"`
}

func (c *Consumer) handleOrderCreated(ctx context.Context, data json.RawMessage) error {
	var payload orderCreatedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse order created payload: %w", err)
	}

	orderData := orderDataMap(payload.OrderID, payload.OrderNumber)
	if _, err := c.service.Create(ctx, CreateInput{
		UserID:  payload.CustomerID,
		Type:    enums.NotificationTypeOrderCreated,
		Title:   "Order placed",
		Message: fmt.Sprintf("Your order %s has been placed. Total: %s.", payload.OrderNumber, payload.Total.StringFixed(2)),
		Data:    orderData,
	}); err != nil {
		return err
	}

	for _, farmerID := range payload.FarmerIDs {
		userID, err := c.farmerUserID(ctx, farmerID)
		if err != nil {
			return err
		}
		if _, err := c.service.Create(ctx, CreateInput{
			UserID:   userID,
			Type:     enums.NotificationTypeOrderCreated,
			Title:    "New order received",
			Message:  fmt.Sprintf("Order %s includes your products.", payload.OrderNumber),
			Data:     orderData,
			Priority: enums.NotificationPriorityHigh,
		}); err != nil {
			return err
		}
	}
	return nil
}

type orderStatusPayload struct {
	OrderID     uuid.UUID         `json:"orderId"`
	OrderNumber string            `json:"orderNumber"`
	CustomerID  uuid.UUID         `json:"customerId"`
	ToStatus    enums.OrderStatus `json:"toStatus"`
}

func (c *Consumer) handleOrderStatusChanged(ctx context.Context, data json.RawMessage) error {
	var payload orderStatusPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse order status payload: %w", err)
	}

	notificationType := enums.NotificationTypeOrderConfirmed
	title := "Order update"
	message := fmt.Sprintf("Order %s is now %s.", payload.OrderNumber, payload.ToStatus)
	switch payload.ToStatus {
	case enums.OrderStatusConfirmed:
		title = "Order confirmed"
		message = fmt.Sprintf("Order %s has been confirmed by the farm.", payload.OrderNumber)
	case enums.OrderStatusInTransit:
		notificationType = enums.NotificationTypeOrderShipped
		title = "Order on the way"
		message = fmt.Sprintf("Order %s is out for delivery.", payload.OrderNumber)
	case enums.OrderStatusDelivered:
		notificationType = enums.NotificationTypeOrderDelivered
		title = "Order delivered"
		message = fmt.Sprintf("Order %s has been delivered. Enjoy!", payload.OrderNumber)
	}

	_, err := c.service.Create(ctx, CreateInput{
		UserID:  payload.CustomerID,
		Type:    notificationType,
		Title:   title,
		Message: message,
		Data:    orderDataMap(payload.OrderID, payload.OrderNumber),
	})
	return err
}

type orderCancelledPayload struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	CustomerID  uuid.UUID `json:"customerId"`
	Reason      *string   `json:"reason,omitempty"`
}

func (c *Consumer) handleOrderCancelled(ctx context.Context, data json.RawMessage) error {
	var payload orderCancelledPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse order cancelled payload: %w", err)
	}

	message := fmt.Sprintf("Order %s has been cancelled.", payload.OrderNumber)
	if payload.Reason != nil && *payload.Reason != "" {
		message = fmt.Sprintf("Order %s has been cancelled. Reason: %s", payload.OrderNumber, *payload.Reason)
	}

	_, err := c.service.Create(ctx, CreateInput{
		UserID:   payload.CustomerID,
		Type:     enums.NotificationTypeOrderCancelled,
		Title:    "Order cancelled",
		Message:  message,
		Data:     orderDataMap(payload.OrderID, payload.OrderNumber),
		Priority: enums.NotificationPriorityHigh,
	})
	return err
}

type paymentPayload struct {
	PaymentID   uuid.UUID       `json:"paymentId"`
	OrderID     uuid.UUID       `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	CustomerID  uuid.UUID       `json:"customerId"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      *string         `json:"reason,omitempty"`
}

func (c *Consumer) handlePaymentSucceeded(ctx context.Context, data json.RawMessage) error {
	var payload paymentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse payment payload: %w", err)
	}

	_, err := c.service.Create(ctx, CreateInput{
		UserID:  payload.CustomerID,
		Type:    enums.NotificationTypePaymentReceived,
		Title:   "Payment received",
		Message: fmt.Sprintf("Payment of %s for order %s was received.", payload.Amount.StringFixed(2), payload.OrderNumber),
		Data:    orderDataMap(payload.OrderID, payload.OrderNumber),
	})
	return err
}

func (c *Consumer) handlePaymentFailed(ctx context.Context, data json.RawMessage) error {
	var payload paymentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse payment payload: %w", err)
	}

	message := fmt.Sprintf("Payment for order %s failed. Please try again.", payload.OrderNumber)
	if payload.Reason != nil && *payload.Reason != "" {
		message = fmt.Sprintf("Payment for order %s failed: %s", payload.OrderNumber, *payload.Reason)
	}

	if _, err := c.service.Create(ctx, CreateInput{
		UserID:   payload.CustomerID,
		Type:     enums.NotificationTypePaymentFailed,
		Title:    "Payment failed",
		Message:  message,
		Data:     orderDataMap(payload.OrderID, payload.OrderNumber),
		Priority: enums.NotificationPriorityUrgent,
	}); err != nil {
		return err
	}

	return c.sendEmail(ctx, payload.CustomerID, "Payment failed", message)
}

type lowStockPayload struct {
	ProductID   uuid.UUID `json:"productId"`
	FarmerID    uuid.UUID `json:"farmerId"`
	ProductName string    `json:"productName"`
	Remaining   int       `json:"remaining"`
}

func (c *Consumer) handleProductLowStock(ctx context.Context, data json.RawMessage) error {
	var payload lowStockPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse low stock payload: %w", err)
	}

	userID, err := c.farmerUserID(ctx, payload.FarmerID)
	if err != nil {
		return err
	}

	notificationData := types.JSONMap{"productId": payload.ProductID.String(), "remaining": payload.Remaining}
	_, err = c.service.Create(ctx, CreateInput{
		UserID:   userID,
		Type:     enums.NotificationTypeProductLowStock,
		Title:    "Stock running low",
		Message:  fmt.Sprintf("%s has %d units left.", payload.ProductName, payload.Remaining),
		Data:     &notificationData,
		Priority: enums.NotificationPriorityHigh,
	})
	return err
}

type reviewCreatedPayload struct {
	ReviewID  uuid.UUID `json:"reviewId"`
	ProductID uuid.UUID `json:"productId"`
	FarmerID  uuid.UUID `json:"farmerId"`
	Rating    int       `json:"rating"`
}

func (c *Consumer) handleReviewCreated(ctx context.Context, data json.RawMessage) error {
	var payload reviewCreatedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse review payload: %w", err)
	}

	userID, err := c.farmerUserID(ctx, payload.FarmerID)
	if err != nil {
		return err
	}

	notificationData := types.JSONMap{"reviewId": payload.ReviewID.String(), "productId": payload.ProductID.String()}
	_, err = c.service.Create(ctx, CreateInput{
		UserID:  userID,
		Type:    enums.NotificationTypeReviewReceived,
		Title:   "New review",
		Message: fmt.Sprintf("A customer left a %d-star review on your product.", payload.Rating),
		Data:    &notificationData,
	})
	return err
}

type farmerVerifiedPayload struct {
	FarmerID uuid.UUID `json:"farmerId"`
	UserID   uuid.UUID `json:"userId"`
	FarmName string    `json:"farmName"`
}

func (c *Consumer) handleFarmerVerified(ctx context.Context, data json.RawMessage) error {
	var payload farmerVerifiedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse farmer verified payload: %w", err)
	}

	message := fmt.Sprintf("%s has been verified. Your products are now listed on the marketplace.", payload.FarmName)
	if _, err := c.service.Create(ctx, CreateInput{
		UserID:   payload.UserID,
		Type:     enums.NotificationTypeFarmerVerified,
		Title:    "Farm verified",
		Message:  message,
		Priority: enums.NotificationPriorityHigh,
	}); err != nil {
		return err
	}

	return c.sendEmail(ctx, payload.UserID, "Your farm has been verified", message)
}

func (c *Consumer) handleNotificationRequested(ctx context.Context, data json.RawMessage) error {
	var payload NotificationRequestedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse notification request payload: %w", err)
	}
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("notification request missing user id")
	}

	notificationType := payload.Type
	if !notificationType.IsValid() {
		notificationType = enums.NotificationTypeSystem
	}
	_, err := c.service.Create(ctx, CreateInput{
		UserID:   payload.UserID,
		Type:     notificationType,
		Title:    payload.Title,
		Message:  payload.Message,
		Data:     payload.Data,
		Priority: payload.Priority,
		Channel:  payload.Channel,
	})
	return err
}

func (c *Consumer) farmerUserID(ctx context.Context, farmerID uuid.UUID) (uuid.UUID, error) {
	if farmerID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("farmer id missing")
	}
	farmer, err := c.farmers.FindByID(ctx, farmerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load farmer %s: %w", farmerID, err)
	}
	return farmer.UserID, nil
}

func (c *Consumer) sendEmail(ctx context.Context, userID uuid.UUID, subject, body string) error {
	if c.mailer == nil {
		return nil
	}
	user, err := c.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load user %s: %w", userID, err)
	}
	msg := email.Message{
		To:       user.Email,
		Subject:  subject,
		TextBody: body,
	}
	if err := c.mailer.Send(ctx, msg); err != nil {
		// in-app copy already landed, mail failures should not requeue the event
		c.logg.Error(ctx, "notification email failed", err)
	}
	return nil
}

func orderDataMap(orderID uuid.UUID, orderNumber string) *types.JSONMap {
	data := types.JSONMap{
		"orderId":     orderID.String(),
		"orderNumber": orderNumber,
	}
	return &data
}

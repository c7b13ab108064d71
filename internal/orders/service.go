package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/internal/catalog"
	"github.com/farmarket/farmarket-backend/internal/inventory"
	"github.com/farmarket/farmarket-backend/internal/promocodes"
	"github.com/farmarket/farmarket-backend/pkg/config"
	"github.com/farmarket/farmarket-backend/pkg/db"
	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/outbox"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

// Actor identifies who is acting on an order.
type Actor struct {
	UserID   uuid.UUID
	Role     enums.UserRole
	FarmerID *uuid.UUID
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type promoApplier interface {
	Validate(ctx context.Context, code string, userID uuid.UUID, orderAmount decimal.Decimal, items []promocodes.LineItem) (*promocodes.Quote, error)
	Apply(ctx context.Context, tx *gorm.DB, quote *promocodes.Quote, userID, orderID uuid.UUID) error
}

type cartClearer interface {
	FindByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
}

// Service defines order workflow operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*OrderDTO, error)
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, filter ListFilter, params pagination.Params) ([]*OrderDTO, int64, error)
	ListForFarmer(ctx context.Context, farmerID uuid.UUID, filter ListFilter, params pagination.Params) ([]*OrderDTO, int64, error)
	ListAll(ctx context.Context, filter ListFilter, params pagination.Params) ([]*OrderDTO, int64, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, actor Actor, next enums.OrderStatus, note *string) (*OrderDTO, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason *string) (*OrderDTO, error)
}

type service struct {
	db        *db.Client
	repo      Repository
	products  catalog.Repository
	inventory inventory.Adjuster
	promos    promoApplier
	carts     cartClearer
	outbox    outboxPublisher
	policy    config.PolicyConfig
	now       func() time.Time
}

// ServiceParams bundles the dependencies for the order workflow.
type ServiceParams struct {
	DB        *db.Client
	Repo      Repository
	Products  catalog.Repository
	Inventory inventory.Adjuster
	Promos    promoApplier
	Carts     cartClearer
	Outbox    outboxPublisher
	Policy    config.PolicyConfig
}

// NewService builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory adjuster required")
	}
	if params.Promos == nil {
		return nil, fmt.Errorf("promo service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		db:        params.DB,
		repo:      params.Repo,
		products:  params.Products,
		inventory: params.Inventory,
		promos:    params.Promos,
		carts:     params.Carts,
		outbox:    params.Outbox,
		policy:    params.Policy,
		now:       time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*OrderDTO, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	if !input.DeliveryType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery type")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	switch input.DeliveryType {
	case enums.DeliveryTypeDelivery:
		if input.DeliveryAddress == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
		}
		if err := input.DeliveryAddress.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery address")
		}
	case enums.DeliveryTypePickup:
		if input.PickupPointID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup point required")
		}
	}

	// Merge duplicate product lines before touching stock.
	quantities := map[uuid.UUID]int{}
	orderIDs := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if _, seen := quantities[item.ProductID]; !seen {
			orderIDs = append(orderIDs, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	now := s.now()
	orderNumber, err := NewOrderNumber(now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
	}

	var createdID uuid.UUID
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		products := s.products.WithTx(tx)

		if input.DeliveryType == enums.DeliveryTypePickup {
			var point models.PickupPoint
			err := tx.WithContext(ctx).
				Where("id = ? AND is_active = true", *input.PickupPointID).
				First(&point).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "pickup point not available")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pickup point")
			}
		}

		loaded, err := products.FindByIDs(ctx, orderIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}
		byID := make(map[uuid.UUID]*models.Product, len(loaded))
		for i := range loaded {
			byID[loaded[i].ID] = &loaded[i]
		}

		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(orderIDs))
		promoLines := make([]promocodes.LineItem, 0, len(orderIDs))
		farmerSet := map[uuid.UUID]struct{}{}
		lowStock := []ProductLowStockEvent{}

		for _, productID := range orderIDs {
			qty := quantities[productID]
			product, ok := byID[productID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"productId": productID})
			}
			if !product.IsActive || product.Quantity == 0 {
				return pkgerrors.New(pkgerrors.CodeProductUnavailable, "product is not available").
					WithDetails(map[string]any{"productId": productID})
			}
			if qty < product.MinOrderQty {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantity below minimum order").
					WithDetails(map[string]any{"productId": productID, "minOrderQty": product.MinOrderQty})
			}

			remaining, err := s.inventory.Decrement(ctx, tx, productID, qty)
			if err != nil {
				return err
			}
			if remaining < s.policy.LowStockThreshold {
				lowStock = append(lowStock, ProductLowStockEvent{
					ProductID:   product.ID,
					FarmerID:    product.FarmerID,
					ProductName: product.Name,
					Remaining:   remaining,
					Threshold:   s.policy.LowStockThreshold,
				})
			}

			unitPrice := catalog.EffectivePrice(product, now)
			lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2)
			subtotal = subtotal.Add(lineTotal)
			farmerSet[product.FarmerID] = struct{}{}

			items = append(items, models.OrderItem{
				ProductID:   product.ID,
				FarmerID:    product.FarmerID,
				ProductName: product.Name,
				Unit:        product.Unit,
				UnitPrice:   unitPrice,
				Quantity:    qty,
				LineTotal:   lineTotal,
			})
			promoLines = append(promoLines, promocodes.LineItem{
				ProductID:  product.ID,
				CategoryID: product.CategoryID,
				FarmerID:   product.FarmerID,
			})
		}
		subtotal = subtotal.Round(2)

		deliveryFee := decimal.Zero
		if input.DeliveryType == enums.DeliveryTypeDelivery {
			threshold, err := s.policy.FreeDeliveryThresholdAmount()
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse free delivery threshold")
			}
			if subtotal.LessThan(threshold) {
				deliveryFee, err = s.policy.DeliveryFeeAmount()
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse delivery fee")
				}
			}
		}

		discount := decimal.Zero
		var quote *promocodes.Quote
		if input.PromoCode != nil && *input.PromoCode != "" {
			quote, err = s.promos.Validate(ctx, *input.PromoCode, input.CustomerID, subtotal, promoLines)
			if err != nil {
				return err
			}
			if quote.FreeShipping {
				deliveryFee = decimal.Zero
			}
			discount = quote.Discount
		}
		if discount.GreaterThan(subtotal.Add(deliveryFee)) {
			discount = subtotal.Add(deliveryFee)
		}
		total := subtotal.Add(deliveryFee).Sub(discount).Round(2)
		if total.IsNegative() {
			total = decimal.Zero
		}

		order := &models.Order{
			OrderNumber:     orderNumber,
			CustomerID:      input.CustomerID,
			Status:          enums.OrderStatusPending,
			Subtotal:        subtotal,
			DeliveryFee:     deliveryFee,
			Discount:        discount,
			Total:           total,
			PromoCode:       input.PromoCode,
			DeliveryType:    input.DeliveryType,
			DeliveryAddress: input.DeliveryAddress,
			PickupPointID:   input.PickupPointID,
			TimeSlot:        input.TimeSlot,
			PaymentMethod:   input.PaymentMethod,
			Notes:           input.Notes,
			Items:           items,
		}
		order, err = repo.Create(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		createdID = order.ID

		if quote != nil {
			if err := s.promos.Apply(ctx, tx, quote, input.CustomerID, order.ID); err != nil {
				return err
			}
		}

		tracking := &models.OrderTracking{
			OrderID:   order.ID,
			Status:    enums.OrderStatusPending,
			UpdatedBy: input.CustomerID,
		}
		if err := repo.AppendTracking(ctx, tracking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append tracking")
		}

		payment := &models.Payment{
			OrderID:    order.ID,
			CustomerID: input.CustomerID,
			Amount:     total,
			Currency:   s.policy.Currency,
			Method:     input.PaymentMethod,
			Provider:   enums.PaymentProviderStripe,
			Status:     enums.PaymentStatusPending,
		}
		if err := tx.WithContext(ctx).Create(payment).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		delivery := &models.Delivery{
			OrderID:       order.ID,
			Type:          input.DeliveryType,
			Status:        enums.DeliveryStatusPending,
			Address:       input.DeliveryAddress,
			PickupPointID: input.PickupPointID,
			ScheduledDate: scheduledDate(input.TimeSlot, now),
			TimeSlot:      input.TimeSlot,
			Fee:           deliveryFee,
		}
		if err := tx.WithContext(ctx).Create(delivery).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery")
		}

		if input.ClearCart && s.carts != nil {
			cart, err := s.carts.FindByCustomer(ctx, input.CustomerID)
			if err == nil {
				if err := s.carts.DeleteItems(ctx, cart.ID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
			}
		}

		farmerIDs := make([]uuid.UUID, 0, len(farmerSet))
		for id := range farmerSet {
			farmerIDs = append(farmerIDs, id)
		}
		created := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.CustomerID, Role: string(enums.UserRoleCustomer)},
			Data: OrderCreatedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				CustomerID:    order.CustomerID,
				FarmerIDs:     farmerIDs,
				Subtotal:      subtotal,
				DeliveryFee:   deliveryFee,
				Discount:      discount,
				Total:         total,
				DeliveryType:  order.DeliveryType,
				PaymentMethod: order.PaymentMethod,
				PromoCode:     order.PromoCode,
				ItemCount:     len(items),
			},
		}
		if err := s.outbox.Emit(ctx, tx, created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue event")
		}

		for _, alert := range lowStock {
			event := outbox.DomainEvent{
				EventType:     enums.EventProductLowStock,
				AggregateType: enums.AggregateProduct,
				AggregateID:   alert.ProductID,
				Version:       1,
				Data:          alert,
			}
			if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue low stock alert")
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := s.repo.FindByID(ctx, createdID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return FromModel(order), nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, order, actor); err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, filter ListFilter, params pagination.Params) ([]*OrderDTO, int64, error) {
	params = params.Normalize()
	orders, total, err := s.repo.ListByCustomer(ctx, customerID, filter, params)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return FromModels(orders), total, nil
}

func (s *service) ListForFarmer(ctx context.Context, farmerID uuid.UUID, filter ListFilter, params pagination.Params) ([]*OrderDTO, int64, error) {
	params = params.Normalize()
	orders, total, err := s.repo.ListByFarmer(ctx, farmerID, filter, params)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return FromModels(orders), total, nil
}

func (s *service) ListAll(ctx context.Context, filter ListFilter, params pagination.Params) ([]*OrderDTO, int64, error) {
	params = params.Normalize()
	orders, total, err := s.repo.ListAll(ctx, filter, params)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return FromModels(orders), total, nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, actor Actor, next enums.OrderStatus, note *string) (*OrderDTO, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if next == enums.OrderStatusCancelled {
		return s.Cancel(ctx, orderID, actor, note)
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if actor.Role != enums.UserRoleAdmin {
			if actor.Role != enums.UserRoleFarmer || actor.FarmerID == nil {
				return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to update order status")
			}
			has, err := repo.FarmerHasItems(ctx, order.ID, *actor.FarmerID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order items")
			}
			if !has {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order does not involve farmer")
			}
		}

		if !order.Status.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
				WithDetails(map[string]any{"from": order.Status, "to": next})
		}

		now := s.now().UTC()
		updates := map[string]any{"status": next}
		switch next {
		case enums.OrderStatusConfirmed:
			updates["confirmed_at"] = now
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		tracking := &models.OrderTracking{
			OrderID:   order.ID,
			Status:    next,
			Note:      note,
			UpdatedBy: actor.UserID,
		}
		if err := repo.AppendTracking(ctx, tracking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append tracking")
		}

		if err := syncDeliveryStatus(ctx, tx, order.ID, next, now); err != nil {
			return err
		}

		eventType := enums.EventOrderStatusChanged
		if next == enums.OrderStatusDelivered {
			eventType = enums.EventOrderDelivered
		}
		event := outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Data: OrderStatusChangedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  order.CustomerID,
				FromStatus:  order.Status,
				ToStatus:    next,
				Note:        note,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return FromModel(order), nil
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason *string) (*OrderDTO, error) {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already completed").
				WithDetails(map[string]any{"status": order.Status})
		}

		// Cancellation is reserved for the owning customer and admins;
		// farmers move orders forward but never cancel them.
		switch actor.Role {
		case enums.UserRoleAdmin:
			// any non-terminal order
		case enums.UserRoleCustomer:
			if order.CustomerID != actor.UserID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
			}
		default:
			return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to cancel order")
		}

		for _, item := range order.Items {
			if err := s.inventory.Restore(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		updates := map[string]any{
			"status":        enums.OrderStatusCancelled,
			"cancelled_at":  now,
			"cancel_reason": reason,
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}

		tracking := &models.OrderTracking{
			OrderID:   order.ID,
			Status:    enums.OrderStatusCancelled,
			Note:      reason,
			UpdatedBy: actor.UserID,
		}
		if err := repo.AppendTracking(ctx, tracking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append tracking")
		}

		if err := syncDeliveryStatus(ctx, tx, order.ID, enums.OrderStatusCancelled, now); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Data: OrderCancelledEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  order.CustomerID,
				FromStatus:  order.Status,
				Reason:      reason,
				Total:       order.Total,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return FromModel(order), nil
}

func (s *service) findOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) authorize(ctx context.Context, order *models.Order, actor Actor) error {
	switch actor.Role {
	case enums.UserRoleAdmin:
		return nil
	case enums.UserRoleCustomer:
		if order.CustomerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
		}
		return nil
	case enums.UserRoleFarmer:
		if actor.FarmerID == nil {
			return pkgerrors.New(pkgerrors.CodeForbidden, "farmer profile required")
		}
		has, err := s.repo.FarmerHasItems(ctx, order.ID, *actor.FarmerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order items")
		}
		if !has {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not involve farmer")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
	}
}

func syncDeliveryStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, orderStatus enums.OrderStatus, now time.Time) error {
	var status enums.DeliveryStatus
	updates := map[string]any{}
	switch orderStatus {
	case enums.OrderStatusInTransit:
		status = enums.DeliveryStatusInTransit
	case enums.OrderStatusDelivered:
		status = enums.DeliveryStatusDelivered
		updates["delivered_at"] = now
	case enums.OrderStatusCancelled:
		status = enums.DeliveryStatusCancelled
	default:
		return nil
	}
	updates["status"] = status

	err := tx.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("order_id = ?", orderID).
		Updates(updates).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync delivery status")
	}
	return nil
}

func scheduledDate(slot *types.TimeSlot, now time.Time) time.Time {
	if slot != nil && slot.Date != "" {
		if parsed, err := time.Parse("2006-01-02", slot.Date); err == nil {
			return parsed
		}
	}
	return now.Add(24 * time.Hour)
}

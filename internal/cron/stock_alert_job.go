package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/internal/orders"
	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	"github.com/farmarket/farmarket-backend/pkg/logger"
	"github.com/farmarket/farmarket-backend/pkg/outbox"
)

const defaultLowStockThreshold = 10

type lowStockReader interface {
	FindLowStock(ctx context.Context, threshold int) ([]models.Product, error)
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockAlertJobParams configure the low stock sweep.
type StockAlertJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Products  lowStockReader
	Outbox    outboxEmitter
	Threshold int
}

// NewStockAlertJob builds the job that alerts farmers about products
// running low. Checkout already raises the alert when a purchase crosses
// the threshold; this sweep catches stock lowered by manual edits.
func NewStockAlertJob(params StockAlertJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	threshold := params.Threshold
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}
	return &stockAlertJob{
		logg:      params.Logger,
		db:        params.DB,
		products:  params.Products,
		outbox:    params.Outbox,
		threshold: threshold,
		now:       time.Now,
	}, nil
}

type stockAlertJob struct {
	logg      *logger.Logger
	db        txRunner
	products  lowStockReader
	outbox    outboxEmitter
	threshold int
	now       func() time.Time
}

func (j *stockAlertJob) Name() string { return "stock-alerts" }

func (j *stockAlertJob) Run(ctx context.Context) error {
	products, err := j.products.FindLowStock(ctx, j.threshold)
	if err != nil {
		return fmt.Errorf("query low stock products: %w", err)
	}
	emitted := 0
	var errs []error
	for _, product := range products {
		if err := j.emitAlert(ctx, product); err != nil {
			errs = append(errs, fmt.Errorf("product %s: %w", product.ID, err))
			continue
		}
		emitted++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"threshold": j.threshold,
		"count":     emitted,
		"failed":    len(errs),
	})
	j.logg.Info(logCtx, "stock alert sweep complete")
	return multierr.Combine(errs...)
}

func (j *stockAlertJob) emitAlert(ctx context.Context, product models.Product) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		event := outbox.DomainEvent{
			EventType:     enums.EventProductLowStock,
			AggregateType: enums.AggregateProduct,
			AggregateID:   product.ID,
			Version:       1,
			OccurredAt:    j.now().UTC(),
			Data: orders.ProductLowStockEvent{
				ProductID:   product.ID,
				FarmerID:    product.FarmerID,
				ProductName: product.Name,
				Remaining:   product.Quantity,
				Threshold:   j.threshold,
			},
		}
		return j.outbox.EmitIfNotExists(ctx, tx, event)
	})
}

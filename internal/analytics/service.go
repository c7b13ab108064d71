package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/logger"
)

const summaryCacheTTL = 5 * time.Minute

type summaryCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(parts ...string) string
}

// FarmerSummary aggregates one farmer's marketplace performance.
type FarmerSummary struct {
	FarmerID       uuid.UUID       `json:"farmerId"`
	Revenue        decimal.Decimal `json:"revenue"`
	OrderCount     int64           `json:"orderCount"`
	UnitsSold      int64           `json:"unitsSold"`
	ActiveProducts int64           `json:"activeProducts"`
	LowStockCount  int64           `json:"lowStockCount"`
	RatingAverage  decimal.Decimal `json:"ratingAverage"`
	RatingCount    int64           `json:"ratingCount"`
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
}

// MarketplaceSummary aggregates platform-wide metrics for admins.
type MarketplaceSummary struct {
	GMV             decimal.Decimal `json:"gmv"`
	OrderCount      int64           `json:"orderCount"`
	DeliveredCount  int64           `json:"deliveredCount"`
	CancelledCount  int64           `json:"cancelledCount"`
	CustomerCount   int64           `json:"customerCount"`
	VerifiedFarmers int64           `json:"verifiedFarmers"`
	ActiveProducts  int64           `json:"activeProducts"`
	TopProducts     []TopProductRow `json:"topProducts"`
	From            time.Time       `json:"from"`
	To              time.Time       `json:"to"`
}

// TopProductRow is one line of the best-seller ranking.
type TopProductRow struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	UnitsSold int64           `json:"unitsSold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Service computes read-side aggregates over the transactional store.
type Service interface {
	FarmerSummary(ctx context.Context, farmerID uuid.UUID, from, to time.Time) (*FarmerSummary, error)
	MarketplaceSummary(ctx context.Context, from, to time.Time) (*MarketplaceSummary, error)
}

type service struct {
	db       *gorm.DB
	cache    summaryCache
	lowStock int
	logg     *logger.Logger
}

// NewService builds the analytics read service. Cache is optional.
func NewService(db *gorm.DB, cache summaryCache, lowStockThreshold int, logg *logger.Logger) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection required")
	}
	if lowStockThreshold <= 0 {
		lowStockThreshold = 10
	}
	return &service{
		db:       db,
		cache:    cache,
		lowStock: lowStockThreshold,
		logg:     logg,
	}, nil
}

func (s *service) FarmerSummary(ctx context.Context, farmerID uuid.UUID, from, to time.Time) (*FarmerSummary, error) {
	if farmerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farmer id required")
	}
	from, to = normalizeWindow(from, to)

	cacheKey := ""
	if s.cache != nil {
		cacheKey = s.cache.CacheKey("analytics", "farmer", farmerID.String(), windowKey(from, to))
		var cached FarmerSummary
		if s.readCache(ctx, cacheKey, &cached) {
			return &cached, nil
		}
	}

	summary := &FarmerSummary{FarmerID: farmerID, From: from, To: to}

	// settled revenue only: cancelled orders restore stock and drop out here
	row := struct {
		Revenue    decimal.Decimal
		OrderCount int64
		UnitsSold  int64
	}{}
	err := s.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(oi.line_total), 0) AS revenue,
		       COUNT(DISTINCT o.id) AS order_count,
		       COALESCE(SUM(oi.quantity), 0) AS units_sold
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE oi.farmer_id = ?
		  AND o.status NOT IN ('cancelled')
		  AND o.created_at >= ? AND o.created_at < ?`,
		farmerID, from, to).Scan(&row).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate farmer sales")
	}
	summary.Revenue = row.Revenue
	summary.OrderCount = row.OrderCount
	summary.UnitsSold = row.UnitsSold

	products := struct {
		ActiveProducts int64
		LowStockCount  int64
	}{}
	err = s.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FILTER (WHERE is_active) AS active_products,
		       COUNT(*) FILTER (WHERE is_active AND quantity < ?) AS low_stock_count
		FROM products
		WHERE farmer_id = ?`,
		s.lowStock, farmerID).Scan(&products).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate farmer products")
	}
	summary.ActiveProducts = products.ActiveProducts
	summary.LowStockCount = products.LowStockCount

	rating := struct {
		RatingAverage decimal.Decimal
		RatingCount   int64
	}{}
	err = s.db.WithContext(ctx).Raw(`
		SELECT rating_average, rating_count FROM farmers WHERE id = ?`,
		farmerID).Scan(&rating).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farmer rating")
	}
	summary.RatingAverage = rating.RatingAverage
	summary.RatingCount = rating.RatingCount

	s.writeCache(ctx, cacheKey, summary)
	return summary, nil
}

func (s *service) MarketplaceSummary(ctx context.Context, from, to time.Time) (*MarketplaceSummary, error) {
	from, to = normalizeWindow(from, to)

	cacheKey := ""
	if s.cache != nil {
		cacheKey = s.cache.CacheKey("analytics", "marketplace", windowKey(from, to))
		var cached MarketplaceSummary
		if s.readCache(ctx, cacheKey, &cached) {
			return &cached, nil
		}
	}

	summary := &MarketplaceSummary{From: from, To: to}

	orders := struct {
		GMV            decimal.Decimal
		OrderCount     int64
		DeliveredCount int64
		CancelledCount int64
	}{}
	err := s.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(total) FILTER (WHERE status <> 'cancelled'), 0) AS gmv,
		       COUNT(*) AS order_count,
		       COUNT(*) FILTER (WHERE status = 'delivered') AS delivered_count,
		       COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled_count
		FROM orders
		WHERE created_at >= ? AND created_at < ?`,
		from, to).Scan(&orders).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate orders")
	}
	summary.GMV = orders.GMV
	summary.OrderCount = orders.OrderCount
	summary.DeliveredCount = orders.DeliveredCount
	summary.CancelledCount = orders.CancelledCount

	counts := struct {
		CustomerCount   int64
		VerifiedFarmers int64
		ActiveProducts  int64
	}{}
	err = s.db.WithContext(ctx).Raw(`
		SELECT (SELECT COUNT(*) FROM users WHERE role = 'customer' AND is_active) AS customer_count,
		       (SELECT COUNT(*) FROM farmers WHERE is_verified) AS verified_farmers,
		       (SELECT COUNT(*) FROM products WHERE is_active) AS active_products`).
		Scan(&counts).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate platform counts")
	}
	summary.CustomerCount = counts.CustomerCount
	summary.VerifiedFarmers = counts.VerifiedFarmers
	summary.ActiveProducts = counts.ActiveProducts

	var top []TopProductRow
	err = s.db.WithContext(ctx).Raw(`
		SELECT oi.product_id, oi.product_name AS name,
		       SUM(oi.quantity) AS units_sold,
		       SUM(oi.line_total) AS revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.status NOT IN ('cancelled')
		  AND o.created_at >= ? AND o.created_at < ?
		GROUP BY oi.product_id, oi.product_name
		ORDER BY units_sold DESC
		LIMIT 10`,
		from, to).Scan(&top).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rank products")
	}
	summary.TopProducts = top

	s.writeCache(ctx, cacheKey, summary)
	return summary, nil
}

func (s *service) readCache(ctx context.Context, key string, out any) bool {
	if s.cache == nil || key == "" {
		return false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false
	}
	return true
}

func (s *service) writeCache(ctx context.Context, key string, value any) {
	if s.cache == nil || key == "" {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), summaryCacheTTL); err != nil && s.logg != nil {
		s.logg.Error(ctx, "cache summary failed", err)
	}
}

// normalizeWindow aligns a defaulted window end to the cache TTL so
// repeated default-window requests share one cache entry.
func normalizeWindow(from, to time.Time) (time.Time, time.Time) {
	if to.IsZero() {
		to = time.Now().UTC().Truncate(summaryCacheTTL)
	}
	if from.IsZero() || !from.Before(to) {
		from = to.AddDate(0, -1, 0)
	}
	return from.UTC(), to.UTC()
}

func windowKey(from, to time.Time) string {
	return fmt.Sprintf("%d-%d", from.Unix(), to.Unix())
}

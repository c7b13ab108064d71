package types

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/farmarket/farmarket-backend/pkg/enums"
)

// Envelope is a validated analytics event handed to the handler.
type Envelope struct {
	EventID       string
	EventType     enums.AnalyticsEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	Payload       json.RawMessage
}

// MarketplaceEventRow is one denormalized marketplace event loaded into
// BigQuery. Columns mirror the marketplace_events table schema.
type MarketplaceEventRow struct {
	EventID     string                   `bigquery:"event_id"`
	EventType   enums.AnalyticsEventType `bigquery:"event_type"`
	OccurredAt  bigquery.NullTimestamp   `bigquery:"occurred_at"`
	OrderID     bigquery.NullString      `bigquery:"order_id"`
	CustomerID  bigquery.NullString      `bigquery:"customer_id"`
	FarmerID    bigquery.NullString      `bigquery:"farmer_id"`
	ProductID   bigquery.NullString      `bigquery:"product_id"`
	AmountMinor bigquery.NullInt64       `bigquery:"amount_minor"`
	Currency    bigquery.NullString      `bigquery:"currency"`
	Payload     bigquery.NullJSON        `bigquery:"payload"`
}

package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/internal/analytics/types"
	"github.com/farmarket/farmarket-backend/internal/analytics/writer"
)

type rowInserter interface {
	Insert(ctx context.Context, row types.MarketplaceEventRow) error
}

// EventRecorder turns domain event envelopes into marketplace fact rows.
type EventRecorder struct {
	writer   rowInserter
	currency string
}

// NewEventRecorder builds a recorder writing to the given sink.
func NewEventRecorder(sink rowInserter, currency string) (*EventRecorder, error) {
	if sink == nil {
		return nil, fmt.Errorf("row writer required")
	}
	if currency == "" {
		currency = "RUB"
	}
	return &EventRecorder{writer: sink, currency: currency}, nil
}

// factPayload covers the id and money fields shared by the tracked events.
type factPayload struct {
	OrderID    *uuid.UUID       `json:"orderId"`
	CustomerID *uuid.UUID       `json:"customerId"`
	FarmerID   *uuid.UUID       `json:"farmerId"`
	ProductID  *uuid.UUID       `json:"productId"`
	Total      *decimal.Decimal `json:"total"`
	Amount     *decimal.Decimal `json:"amount"`
}

// Handle maps one envelope onto a BigQuery row.
func (r *EventRecorder) Handle(ctx context.Context, envelope types.Envelope) error {
	var payload factPayload
	if len(envelope.Payload) > 0 {
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return fmt.Errorf("parse fact payload: %w", err)
		}
	}

	encoded, err := writer.EncodeJSON(json.RawMessage(envelope.Payload))
	if err != nil {
		return err
	}

	row := types.MarketplaceEventRow{
		EventID:    envelope.EventID,
		EventType:  envelope.EventType,
		OccurredAt: toNullTimestamp(envelope.OccurredAt),
		OrderID:    nullUUID(payload.OrderID),
		CustomerID: nullUUID(payload.CustomerID),
		FarmerID:   nullUUID(payload.FarmerID),
		ProductID:  nullUUID(payload.ProductID),
		Currency:   bigquery.NullString{StringVal: r.currency, Valid: true},
		Payload:    encoded,
	}

	amount := payload.Total
	if amount == nil {
		amount = payload.Amount
	}
	if amount != nil {
		row.AmountMinor = bigquery.NullInt64{
			Int64: amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
			Valid: true,
		}
	}

	return r.writer.Insert(ctx, row)
}

var _ interface {
	Handle(ctx context.Context, envelope types.Envelope) error
} = (*EventRecorder)(nil)

func nullUUID(id *uuid.UUID) bigquery.NullString {
	if id == nil || *id == uuid.Nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: id.String(), Valid: true}
}

// Timestamp helper kept close to the row mapping so the column format stays
// consistent with the table schema.
func toNullTimestamp(t time.Time) bigquery.NullTimestamp {
	return bigquery.NullTimestamp{Timestamp: t, Valid: !t.IsZero()}
}

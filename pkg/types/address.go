package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Address is a delivery or farm address persisted as JSONB.
type Address struct {
	Street     string   `json:"street"`
	City       string   `json:"city"`
	Region     string   `json:"region,omitempty"`
	PostalCode string   `json:"postalCode"`
	Country    string   `json:"country"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

// Validate checks the fields a deliverable address needs.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Street) == "" {
		return fmt.Errorf("address: missing street")
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("address: missing city")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		return fmt.Errorf("address: missing postalCode")
	}
	return nil
}

// Value marshals Address into JSON for Postgres.
func (a Address) Value() (driver.Value, error) {
	if strings.TrimSpace(a.Country) == "" {
		a.Country = "RU"
	}
	return json.Marshal(a)
}

// Scan decodes JSONB into the Address.
func (a *Address) Scan(value interface{}) error {
	if value == nil {
		*a = Address{}
		return nil
	}

	raw, ok := toBytes(value)
	if !ok {
		return fmt.Errorf("address: unsupported scan type %T", value)
	}
	return json.Unmarshal(raw, a)
}

// TimeSlot is a requested delivery window persisted as JSONB.
type TimeSlot struct {
	Date string `json:"date"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Value marshals the slot into JSON for Postgres.
func (t TimeSlot) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan decodes JSONB into the TimeSlot.
func (t *TimeSlot) Scan(value interface{}) error {
	if value == nil {
		*t = TimeSlot{}
		return nil
	}

	raw, ok := toBytes(value)
	if !ok {
		return fmt.Errorf("time slot: unsupported scan type %T", value)
	}
	return json.Unmarshal(raw, t)
}

func toBytes(value interface{}) ([]byte, bool) {
	switch v := value.(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}

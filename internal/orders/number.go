package orders

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Unambiguous set: no 0/O, 1/I, or L.
const orderNumberAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// NewOrderNumber returns a customer-facing identifier like FM-20260115-7KQ2MX.
func NewOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating order number: %w", err)
	}
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("FM-%s-%s", now.UTC().Format("20060102"), string(buf)), nil
}

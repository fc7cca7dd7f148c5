// Package models defines the core domain types for the vending checkout flow.
package models

import "time"

// Status is the lifecycle position of a Checkout.
//
// A checkout only ever moves forward:
//
//	PENDING --approve--> APPROVED --consume--> CONSUMED
type Status string

// Checkout lifecycle states.
const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusConsumed Status = "CONSUMED"
)

// Checkout is a single purchase attempt tracked through payment and
// dispensing.
type Checkout struct {
	ID        string `json:"id"`
	MachineID string `json:"machineId"`
	Quantity  int    `json:"quantity"`

	// AmountMinorUnits is quantity × unit price in cents, fixed at creation.
	AmountMinorUnits int64 `json:"amountMinorUnits"`

	Status Status `json:"status"`

	CreatedAt  time.Time  `json:"createdAt"`
	PaidAt     *time.Time `json:"paidAt"`
	ConsumedAt *time.Time `json:"consumedAt"`

	// PaymentReference stands in for a payment provider's proof-of-payment
	// token (a PIX "copia e cola" string once a gateway is integrated).
	PaymentReference string `json:"paymentReference"`
}

// Sale is the immutable record written when a checkout is consumed.
type Sale struct {
	ID               string    `json:"id"`
	CheckoutID       string    `json:"checkoutId"`
	MachineID        string    `json:"machineId"`
	Quantity         int       `json:"quantity"`
	AmountMinorUnits int64     `json:"amountMinorUnits"`
	RecordedAt       time.Time `json:"recordedAt"`
}

// Clone returns a copy of c that shares no timestamp pointers with it.
func (c Checkout) Clone() Checkout {
	if c.PaidAt != nil {
		t := *c.PaidAt
		c.PaidAt = &t
	}
	if c.ConsumedAt != nil {
		t := *c.ConsumedAt
		c.ConsumedAt = &t
	}
	return c
}

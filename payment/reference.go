// Package payment issues the proof-of-payment reference handed to customers.
//
// No payment gateway is integrated yet. Placeholder produces a fake PIX
// "copia e cola" string derived from the checkout id; a real gateway client
// replaces it by implementing ReferenceIssuer.
package payment

// ReferenceIssuer produces the payment reference for a new checkout.
type ReferenceIssuer interface {
	Issue(checkoutID string) string
}

// DefaultPlaceholderPrefix is used when Placeholder.Prefix is empty.
const DefaultPlaceholderPrefix = "PIX-FAKE-"

// Placeholder derives a deterministic reference from the checkout id.
type Placeholder struct {
	Prefix string
}

// Issue returns the prefix followed by the checkout id.
func (p Placeholder) Issue(checkoutID string) string {
	prefix := p.Prefix
	if prefix == "" {
		prefix = DefaultPlaceholderPrefix
	}
	return prefix + checkoutID
}

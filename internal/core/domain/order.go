package domain

import "time"

// PartialPaymentOrder lets a shopper split one checkout across several
// payment methods, e.g. a gift card plus a card.
type PartialPaymentOrder struct {
	PSPReference    string     `json:"pspReference"`
	OrderData       string     `json:"orderData"`
	Reference       string     `json:"reference,omitempty"`
	Amount          *Amount    `json:"amount,omitempty"`
	RemainingAmount *Amount    `json:"remainingAmount,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
}

// OrderReference is the compact form sent back to the backend.
type OrderReference struct {
	PSPReference string `json:"pspReference"`
	OrderData    string `json:"orderData"`
}

// Ref is the compact reference for this order.
func (o *PartialPaymentOrder) Ref() OrderReference {
	return OrderReference{PSPReference: o.PSPReference, OrderData: o.OrderData}
}

// HasRemainder reports whether the shopper still owes money on the order.
func (o *PartialPaymentOrder) HasRemainder() bool {
	return o.RemainingAmount != nil && o.RemainingAmount.Value > 0
}

func (o *PartialPaymentOrder) IsExpired(now time.Time) bool {
	return o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}

// Balance is the spendable amount left on a gift card style payment method.
type Balance struct {
	AvailableAmount  Amount  `json:"availableAmount"`
	TransactionLimit *Amount `json:"transactionLimit,omitempty"`
}

// Spendable is the part of the balance usable in one transaction.
func (b Balance) Spendable() Amount {
	if b.TransactionLimit != nil && b.TransactionLimit.Value < b.AvailableAmount.Value {
		return *b.TransactionLimit
	}
	return b.AvailableAmount
}

// Covers reports whether one transaction on this balance can pay amount.
func (b Balance) Covers(amount Amount) bool {
	return b.Spendable().Covers(amount)
}

package domain

import (
	"encoding/json"
	"fmt"
)

type Address struct {
	Street            string `json:"street,omitempty"`
	HouseNumberOrName string `json:"houseNumberOrName,omitempty"`
	PostalCode        string `json:"postalCode,omitempty"`
	City              string `json:"city,omitempty"`
	StateOrProvince   string `json:"stateOrProvince,omitempty"`
	Country           string `json:"country"`
}

type ShopperName struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// PaymentComponentData is what a payment component hands to the session
// when the shopper submits.
type PaymentComponentData struct {
	PaymentMethod      PaymentMethodDetails
	Amount             *Amount
	Order              *PartialPaymentOrder
	StorePaymentMethod *bool
	BillingAddress     *Address
	ShopperName        *ShopperName
}

type paymentComponentWire struct {
	PaymentMethod      json.RawMessage `json:"paymentMethod"`
	Amount             *Amount         `json:"amount,omitempty"`
	Order              *OrderReference `json:"order,omitempty"`
	StorePaymentMethod *bool           `json:"storePaymentMethod,omitempty"`
	BillingAddress     *Address        `json:"billingAddress,omitempty"`
	ShopperName        *ShopperName    `json:"shopperName,omitempty"`
}

func (d PaymentComponentData) MarshalJSON() ([]byte, error) {
	if d.PaymentMethod == nil {
		return nil, fmt.Errorf("payment method details are required")
	}
	method, err := EncodePaymentMethod(d.PaymentMethod)
	if err != nil {
		return nil, fmt.Errorf("encode payment method: %w", err)
	}

	w := paymentComponentWire{
		PaymentMethod:      method,
		Amount:             d.Amount,
		StorePaymentMethod: d.StorePaymentMethod,
		BillingAddress:     d.BillingAddress,
		ShopperName:        d.ShopperName,
	}
	if d.Order != nil {
		ref := d.Order.Ref()
		w.Order = &ref
	}
	return json.Marshal(w)
}

func (d *PaymentComponentData) UnmarshalJSON(data []byte) error {
	var w paymentComponentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	method, err := DecodePaymentMethod(w.PaymentMethod)
	if err != nil {
		return fmt.Errorf("decode payment method: %w", err)
	}

	*d = PaymentComponentData{
		PaymentMethod:      method,
		Amount:             w.Amount,
		StorePaymentMethod: w.StorePaymentMethod,
		BillingAddress:     w.BillingAddress,
		ShopperName:        w.ShopperName,
	}
	if w.Order != nil {
		d.Order = &PartialPaymentOrder{PSPReference: w.Order.PSPReference, OrderData: w.Order.OrderData}
	}
	return nil
}

// ActionComponentData is what an action component hands back once the
// shopper finished the action, e.g. the redirect result.
type ActionComponentData struct {
	Details     map[string]string `json:"details"`
	PaymentData string            `json:"paymentData,omitempty"`
}

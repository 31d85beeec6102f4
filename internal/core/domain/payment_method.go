package domain

import (
	"encoding/json"
	"fmt"
)

// PaymentMethodDetails are the payment-method-specific fields a component
// collected from the shopper.
type PaymentMethodDetails interface {
	PaymentMethodType() string
}

const (
	MethodScheme   = "scheme"
	MethodGiftCard = "giftcard"
	MethodMBWay    = "mbway"
	MethodIDEAL    = "ideal"
)

// CardDetails carries card data already encrypted by the card encrypter.
type CardDetails struct {
	EncryptedCardNumber   string `json:"encryptedCardNumber,omitempty"`
	EncryptedExpiryMonth  string `json:"encryptedExpiryMonth,omitempty"`
	EncryptedExpiryYear   string `json:"encryptedExpiryYear,omitempty"`
	EncryptedSecurityCode string `json:"encryptedSecurityCode,omitempty"`
	HolderName            string `json:"holderName,omitempty"`
	Brand                 string `json:"brand,omitempty"`
	StoredPaymentMethodID string `json:"storedPaymentMethodId,omitempty"`
}

func (CardDetails) PaymentMethodType() string { return MethodScheme }

type GiftCardDetails struct {
	Brand                 string `json:"brand"`
	EncryptedCardNumber   string `json:"encryptedCardNumber"`
	EncryptedSecurityCode string `json:"encryptedSecurityCode,omitempty"`
}

func (GiftCardDetails) PaymentMethodType() string { return MethodGiftCard }

type MBWayDetails struct {
	TelephoneNumber string `json:"telephoneNumber"`
}

func (MBWayDetails) PaymentMethodType() string { return MethodMBWay }

type IssuerListDetails struct {
	Type   string `json:"-"`
	Issuer string `json:"issuer"`
}

func (d IssuerListDetails) PaymentMethodType() string {
	if d.Type == "" {
		return MethodIDEAL
	}
	return d.Type
}

// InstantDetails covers methods that need nothing but their type, e.g. paypal.
type InstantDetails struct {
	Type                  string `json:"-"`
	StoredPaymentMethodID string `json:"storedPaymentMethodId,omitempty"`
}

func (d InstantDetails) PaymentMethodType() string { return d.Type }

// EncodePaymentMethod flattens details into the wire object with its "type" key.
func EncodePaymentMethod(details PaymentMethodDetails) (json.RawMessage, error) {
	fields, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}

	var flat map[string]json.RawMessage
	if err := json.Unmarshal(fields, &flat); err != nil {
		return nil, err
	}
	if flat == nil {
		flat = make(map[string]json.RawMessage, 1)
	}
	flat["type"], _ = json.Marshal(details.PaymentMethodType())

	return json.Marshal(flat)
}

// DecodePaymentMethod is the inverse of EncodePaymentMethod.
func DecodePaymentMethod(data []byte) (PaymentMethodDetails, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	if head.Type == "" {
		return nil, fmt.Errorf("payment method type is missing")
	}

	switch head.Type {
	case MethodScheme:
		var d CardDetails
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return d, nil
	case MethodGiftCard:
		var d GiftCardDetails
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return d, nil
	case MethodMBWay:
		var d MBWayDetails
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return d, nil
	}

	// An issuer key, even an empty one, marks an issuer list method.
	var withIssuer struct {
		Issuer *string `json:"issuer"`
	}
	if err := json.Unmarshal(data, &withIssuer); err != nil {
		return nil, err
	}
	if withIssuer.Issuer != nil || head.Type == MethodIDEAL {
		d := IssuerListDetails{Type: head.Type}
		if withIssuer.Issuer != nil {
			d.Issuer = *withIssuer.Issuer
		}
		return d, nil
	}

	d := InstantDetails{Type: head.Type}
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return d, nil
}

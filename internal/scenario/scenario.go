// Package scenario runs scripted checkouts: a session to open and the
// payment methods a shopper tries, in order, until the amount is paid.
package scenario

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"

	"github.com/DanielPopoola/checkout-sessions/internal/adapters/checkout"
	"github.com/DanielPopoola/checkout-sessions/internal/core/card"
	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
)

type Scenario struct {
	Session  SessionSettings `yaml:"session" validate:"required"`
	Payments []Payment       `yaml:"payments" validate:"required,min=1,dive"`
}

type SessionSettings struct {
	Amount           string `yaml:"amount" validate:"required"`
	Currency         string `yaml:"currency" validate:"required,len=3"`
	CountryCode      string `yaml:"country_code" validate:"required,len=2"`
	Reference        string `yaml:"reference" validate:"required"`
	ShopperReference string `yaml:"shopper_reference"`
	ShopperLocale    string `yaml:"shopper_locale"`
}

// Request converts the settings into the merchant call opening the session.
func (s SessionSettings) Request() (checkout.CreateSessionRequest, error) {
	amount, err := domain.ParseAmount(s.Amount, s.Currency)
	if err != nil {
		return checkout.CreateSessionRequest{}, err
	}
	return checkout.CreateSessionRequest{
		Amount:           amount,
		CountryCode:      s.CountryCode,
		Reference:        s.Reference,
		ShopperReference: s.ShopperReference,
		ShopperLocale:    s.ShopperLocale,
	}, nil
}

// Payment is one payment method the shopper submits. Details are what the
// shopper brings back from an action; without them an action fails the payment.
type Payment struct {
	Method      string            `yaml:"method" validate:"required,oneof=scheme giftcard ideal mbway"`
	Number      string            `yaml:"number"`
	ExpiryMonth string            `yaml:"expiry_month"`
	ExpiryYear  string            `yaml:"expiry_year"`
	CVC         string            `yaml:"cvc"`
	Holder      string            `yaml:"holder"`
	Brand       string            `yaml:"brand"`
	Issuer      string            `yaml:"issuer"`
	Telephone   string            `yaml:"telephone"`
	Details     map[string]string `yaml:"details"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := validator.New().Struct(sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if _, err := sc.Session.Request(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// PaymentMethod builds the component data details for p. Card numbers are
// encrypted with enc.
func (p Payment) PaymentMethod(ctx context.Context, enc *card.Encrypter) (domain.PaymentMethodDetails, error) {
	switch p.Method {
	case domain.MethodScheme:
		return enc.EncryptCard(ctx, card.Card{
			Number:       p.Number,
			ExpiryMonth:  p.ExpiryMonth,
			ExpiryYear:   p.ExpiryYear,
			SecurityCode: p.CVC,
			HolderName:   p.Holder,
			Brand:        p.Brand,
		})
	case domain.MethodGiftCard:
		details, err := enc.EncryptCard(ctx, card.Card{Number: p.Number, SecurityCode: p.CVC})
		if err != nil {
			return nil, err
		}
		brand := p.Brand
		if brand == "" {
			brand = "givex"
		}
		return domain.GiftCardDetails{
			Brand:                 brand,
			EncryptedCardNumber:   details.EncryptedCardNumber,
			EncryptedSecurityCode: details.EncryptedSecurityCode,
		}, nil
	case domain.MethodIDEAL:
		return domain.IssuerListDetails{Type: domain.MethodIDEAL, Issuer: p.Issuer}, nil
	case domain.MethodMBWay:
		return domain.MBWayDetails{TelephoneNumber: p.Telephone}, nil
	}
	return nil, domain.ErrPaymentMethodNotSupported
}

package card

import (
	"context"
	"fmt"
	"strings"

	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
)

// Encryptor is the opaque card encryption primitive.
type Encryptor interface {
	Encrypt(plain, publicKey string) (string, error)
}

// TestEncryptor produces the "test_" prefixed plaintext values test
// backends accept in place of real ciphertext.
type TestEncryptor struct{}

func (TestEncryptor) Encrypt(plain, _ string) (string, error) {
	return "test_" + plain, nil
}

// Card is the raw card data collected from the shopper.
type Card struct {
	Number       string
	ExpiryMonth  string
	ExpiryYear   string
	SecurityCode string
	HolderName   string
	Brand        string
}

// Encrypter turns a Card into encrypted CardDetails.
type Encrypter struct {
	keys      *PublicKeyProvider
	encryptor Encryptor
}

func NewEncrypter(keys *PublicKeyProvider, encryptor Encryptor) *Encrypter {
	return &Encrypter{keys: keys, encryptor: encryptor}
}

func (e *Encrypter) EncryptCard(ctx context.Context, c Card) (domain.CardDetails, error) {
	number := strings.ReplaceAll(c.Number, " ", "")
	if number == "" {
		return domain.CardDetails{}, domain.NewMissingRequiredFieldError("card number")
	}

	publicKey, err := e.keys.PublicKey(ctx)
	if err != nil {
		return domain.CardDetails{}, fmt.Errorf("fetch public key: %w", err)
	}

	details := domain.CardDetails{HolderName: c.HolderName, Brand: c.Brand}

	fields := []struct {
		name  string
		plain string
		dst   *string
	}{
		{"number", number, &details.EncryptedCardNumber},
		{"expiryMonth", c.ExpiryMonth, &details.EncryptedExpiryMonth},
		{"expiryYear", c.ExpiryYear, &details.EncryptedExpiryYear},
		{"securityCode", c.SecurityCode, &details.EncryptedSecurityCode},
	}
	for _, f := range fields {
		if f.plain == "" {
			continue
		}
		if *f.dst, err = encryptField(e.encryptor, f.name, f.plain, publicKey); err != nil {
			return domain.CardDetails{}, err
		}
	}

	return details, nil
}

func encryptField(enc Encryptor, field, plain, publicKey string) (string, error) {
	out, err := enc.Encrypt(plain, publicKey)
	if err != nil {
		return "", &domain.EncryptionError{Field: field, Err: err}
	}
	return out, nil
}

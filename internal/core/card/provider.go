// Package card holds the card-side lookups a card component depends on:
// the client's encryption public key, BIN based brand detection and
// encryption of the collected card fields.
package card

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DanielPopoola/checkout-sessions/internal/adapters/checkout"
	"github.com/DanielPopoola/checkout-sessions/internal/core/coalesce"
	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
)

// RetryingClient is the part of checkout.RetryClient the providers use.
type RetryingClient interface {
	PerformWithRetry(ctx context.Context, req ports.Request, shouldRetry checkout.ShouldRetry) (*ports.Response, error)
}

// PublicKeyProvider fetches the encryption public key for a client key once
// and shares it with every caller. Concurrent first callers are served by a
// single request.
type PublicKeyProvider struct {
	clientKey string
	cache     *coalesce.Cache[string]
}

// NewPublicKeyProvider builds a provider for clientKey. A zero ttl keeps
// the key until Invalidate is called.
func NewPublicKeyProvider(client RetryingClient, clientKey string, ttl time.Duration, logger *slog.Logger) *PublicKeyProvider {
	fetch := func(ctx context.Context, key string) (string, error) {
		logger.Debug("fetching public key")
		resp, err := client.PerformWithRetry(ctx, checkout.PublicKeyRequest{ClientKey: key}, checkout.RetryOnTransient)
		if err != nil {
			logger.Error("public key fetch failed", "error", err)
			return "", err
		}
		out, err := checkout.Value[checkout.PublicKeyResponse](resp)
		if err != nil {
			return "", err
		}
		return out.PublicKey, nil
	}

	return &PublicKeyProvider{
		clientKey: clientKey,
		cache:     coalesce.New(fetch, coalesce.WithTTL[string](ttl)),
	}
}

func (p *PublicKeyProvider) PublicKey(ctx context.Context) (string, error) {
	return p.cache.Get(ctx, p.clientKey)
}

// Fetch delivers the key to completion on another goroutine.
func (p *PublicKeyProvider) Fetch(ctx context.Context, completion func(string, error)) {
	p.cache.Fetch(ctx, p.clientKey, completion)
}

// Invalidate forgets the cached key, e.g. after the backend rejected data
// encrypted with it.
func (p *PublicKeyProvider) Invalidate() {
	p.cache.Invalidate(p.clientKey)
}

// minBinLength is the shortest prefix worth a lookup.
const minBinLength = 6

// BrandLookupProvider resolves card brands from a card number prefix. Results
// are cached per prefix for the life of the provider.
type BrandLookupProvider struct {
	cache *coalesce.Cache[[]checkout.CardBrand]
}

func NewBrandLookupProvider(
	client RetryingClient,
	keys *PublicKeyProvider,
	encryptor Encryptor,
	clientKey string,
	supportedBrands []string,
	logger *slog.Logger,
) *BrandLookupProvider {
	fetch := func(ctx context.Context, bin string) ([]checkout.CardBrand, error) {
		publicKey, err := keys.PublicKey(ctx)
		if err != nil {
			return nil, err
		}
		encryptedBin, err := encryptField(encryptor, "bin", bin, publicKey)
		if err != nil {
			return nil, err
		}

		req := checkout.BinLookupRequest{
			ClientKey:       clientKey,
			RequestID:       uuid.NewString(),
			EncryptedBin:    encryptedBin,
			SupportedBrands: supportedBrands,
		}
		resp, err := client.PerformWithRetry(ctx, req, checkout.RetryOnTransient)
		if err != nil {
			logger.Warn("bin lookup failed", "error", err)
			return nil, err
		}
		out, err := checkout.Value[checkout.BinLookupResponse](resp)
		if err != nil {
			return nil, err
		}
		return out.Brands, nil
	}

	return &BrandLookupProvider{cache: coalesce.New(fetch)}
}

// Brands returns the brands for the prefix of number, or nil if the number
// is too short to look up.
func (p *BrandLookupProvider) Brands(ctx context.Context, number string) ([]checkout.CardBrand, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) < minBinLength {
		return nil, nil
	}
	return p.cache.Get(ctx, digits[:minBinLength])
}

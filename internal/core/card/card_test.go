package card_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielPopoola/checkout-sessions/internal/adapters/checkout"
	"github.com/DanielPopoola/checkout-sessions/internal/core/card"
	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
)

type fakeBackend struct {
	keyCalls atomic.Int32
	binCalls atomic.Int32
	keyErr   error

	mu   sync.Mutex
	bins []string
}

func (b *fakeBackend) PerformWithRetry(_ context.Context, req ports.Request, _ checkout.ShouldRetry) (*ports.Response, error) {
	switch r := req.(type) {
	case checkout.PublicKeyRequest:
		b.keyCalls.Add(1)
		if b.keyErr != nil {
			return nil, b.keyErr
		}
		return r.Decode([]byte(`{"publicKey":"10001|KEY"}`))
	case checkout.BinLookupRequest:
		b.binCalls.Add(1)
		b.mu.Lock()
		b.bins = append(b.bins, r.EncryptedBin)
		b.mu.Unlock()
		return r.Decode([]byte(`{"requestId":"` + r.RequestID + `","brands":[{"brand":"visa","enableCVC":true,"supported":true}]}`))
	}
	return nil, errors.New("unexpected request")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingEncryptor struct{}

func (failingEncryptor) Encrypt(string, string) (string, error) {
	return "", errors.New("bad key")
}

func TestPublicKeyProvider_FetchesOnce(t *testing.T) {
	backend := &fakeBackend{}
	provider := card.NewPublicKeyProvider(backend, "test_KEY", 0, discardLogger())

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, err := provider.PublicKey(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "10001|KEY", key)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), backend.keyCalls.Load())

	provider.Invalidate()
	_, err := provider.PublicKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), backend.keyCalls.Load())
}

func TestPublicKeyProvider_ErrorIsNotCached(t *testing.T) {
	backend := &fakeBackend{keyErr: &checkout.NetworkError{Err: errors.New("offline")}}
	provider := card.NewPublicKeyProvider(backend, "test_KEY", 0, discardLogger())

	_, err := provider.PublicKey(context.Background())
	assert.True(t, checkout.IsNetworkError(err))

	backend.keyErr = nil
	key, err := provider.PublicKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10001|KEY", key)
	assert.Equal(t, int32(2), backend.keyCalls.Load())
}

func TestBrandLookupProvider_CachesPerBin(t *testing.T) {
	backend := &fakeBackend{}
	keys := card.NewPublicKeyProvider(backend, "test_KEY", 0, discardLogger())
	lookup := card.NewBrandLookupProvider(backend, keys, card.TestEncryptor{}, "test_KEY", []string{"visa", "mc"}, discardLogger())

	brands, err := lookup.Brands(context.Background(), "4111")
	require.NoError(t, err)
	assert.Nil(t, brands)

	brands, err = lookup.Brands(context.Background(), "4111 1111 1111 1111")
	require.NoError(t, err)
	require.Len(t, brands, 1)
	assert.Equal(t, "visa", brands[0].Brand)

	_, err = lookup.Brands(context.Background(), "4111 1122")
	require.NoError(t, err)

	assert.Equal(t, int32(1), backend.binCalls.Load())
	assert.Equal(t, []string{"test_411111"}, backend.bins)
}

func TestEncrypter_EncryptCard(t *testing.T) {
	backend := &fakeBackend{}
	keys := card.NewPublicKeyProvider(backend, "test_KEY", 0, discardLogger())
	encrypter := card.NewEncrypter(keys, card.TestEncryptor{})

	details, err := encrypter.EncryptCard(context.Background(), card.Card{
		Number:       "4111 1111 1111 1111",
		ExpiryMonth:  "03",
		ExpiryYear:   "2030",
		SecurityCode: "737",
		HolderName:   "J. Smith",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.CardDetails{
		EncryptedCardNumber:   "test_4111111111111111",
		EncryptedExpiryMonth:  "test_03",
		EncryptedExpiryYear:   "test_2030",
		EncryptedSecurityCode: "test_737",
		HolderName:            "J. Smith",
	}, details)
}

func TestEncrypter_Failures(t *testing.T) {
	backend := &fakeBackend{}
	keys := card.NewPublicKeyProvider(backend, "test_KEY", 0, discardLogger())

	_, err := card.NewEncrypter(keys, card.TestEncryptor{}).EncryptCard(context.Background(), card.Card{})
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeMissingRequiredField))

	_, err = card.NewEncrypter(keys, failingEncryptor{}).EncryptCard(context.Background(), card.Card{Number: "4111111111111111"})
	var encErr *domain.EncryptionError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "number", encErr.Field)
}

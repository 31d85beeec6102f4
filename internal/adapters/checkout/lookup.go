package checkout

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
)

// PublicKeyRequest fetches the card encryption key bound to a client key.
type PublicKeyRequest struct {
	ClientKey string
}

func (r PublicKeyRequest) Path() string {
	return fmt.Sprintf("checkoutshopper/v1/clientKeys/%s", url.PathEscape(r.ClientKey))
}
func (PublicKeyRequest) Method() string                     { return http.MethodGet }
func (PublicKeyRequest) Headers() map[string]string         { return nil }
func (PublicKeyRequest) QueryParameters() []ports.QueryItem { return nil }
func (PublicKeyRequest) Body() any                          { return nil }

func (PublicKeyRequest) Decode(body []byte) (*ports.Response, error) {
	resp, err := decodeInto[PublicKeyResponse](body, nil)
	if err != nil {
		return nil, err
	}
	if resp.Value.(*PublicKeyResponse).PublicKey == "" {
		return nil, fmt.Errorf("public key is empty")
	}
	return resp, nil
}

type PublicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// BinLookupRequest resolves the card brands matching the first digits of a card.
type BinLookupRequest struct {
	ClientKey       string
	RequestID       string
	EncryptedBin    string
	SupportedBrands []string
}

type BinLookupBody struct {
	RequestID       string   `json:"requestId"`
	EncryptedBin    string   `json:"encryptedBin"`
	SupportedBrands []string `json:"supportedBrands"`
}

func (BinLookupRequest) Path() string               { return "checkoutshopper/v3/binLookup" }
func (BinLookupRequest) Method() string             { return http.MethodPost }
func (BinLookupRequest) Headers() map[string]string { return nil }
func (r BinLookupRequest) QueryParameters() []ports.QueryItem {
	return []ports.QueryItem{{Name: "clientKey", Value: r.ClientKey}}
}

func (r BinLookupRequest) Body() any {
	return BinLookupBody{
		RequestID:       r.RequestID,
		EncryptedBin:    r.EncryptedBin,
		SupportedBrands: r.SupportedBrands,
	}
}

func (BinLookupRequest) Decode(body []byte) (*ports.Response, error) {
	return decodeInto[BinLookupResponse](body, nil)
}

type CardBrand struct {
	Brand            string `json:"brand"`
	EnableCVC        bool   `json:"enableCVC"`
	EnableExpiryDate bool   `json:"enableExpiryDate"`
	Supported        bool   `json:"supported"`
}

type BinLookupResponse struct {
	RequestID          string      `json:"requestId"`
	Brands             []CardBrand `json:"brands"`
	IssuingCountryCode string      `json:"issuingCountryCode,omitempty"`
}

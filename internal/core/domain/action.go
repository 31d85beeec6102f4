package domain

import (
	"encoding/json"
	"fmt"
)

type ActionType string

const (
	ActionRedirect ActionType = "redirect"
	ActionThreeDS2 ActionType = "threeDS2"
	ActionVoucher  ActionType = "voucher"
	ActionAwait    ActionType = "await"
	ActionQRCode   ActionType = "qrCode"
	ActionSDK      ActionType = "sdk"
)

// Action is an instruction returned by the backend that the shopper's
// client must execute before the payment can complete. Exactly one of the
// variant fields is set, matching Type.
type Action struct {
	Type ActionType

	Redirect *RedirectAction
	ThreeDS2 *ThreeDS2Action
	Voucher  *VoucherAction
	Await    *AwaitAction
	QRCode   *QRCodeAction
	SDK      *SDKAction
}

type RedirectAction struct {
	URL               string            `json:"url"`
	Method            string            `json:"method,omitempty"`
	Data              map[string]string `json:"data,omitempty"`
	PaymentData       string            `json:"paymentData,omitempty"`
	PaymentMethodType string            `json:"paymentMethodType,omitempty"`
}

type ThreeDS2Subtype string

const (
	ThreeDS2Fingerprint ThreeDS2Subtype = "fingerprint"
	ThreeDS2Challenge   ThreeDS2Subtype = "challenge"
)

type ThreeDS2Action struct {
	Subtype            ThreeDS2Subtype `json:"subtype"`
	Token              string          `json:"token"`
	AuthorisationToken string          `json:"authorisationToken,omitempty"`
	PaymentData        string          `json:"paymentData,omitempty"`
}

type VoucherAction struct {
	PaymentMethodType string  `json:"paymentMethodType"`
	Reference         string  `json:"reference,omitempty"`
	ExpiresAt         string  `json:"expiresAt,omitempty"`
	DownloadURL       string  `json:"downloadUrl,omitempty"`
	TotalAmount       *Amount `json:"totalAmount,omitempty"`
	PaymentData       string  `json:"paymentData,omitempty"`
}

type AwaitAction struct {
	PaymentMethodType string `json:"paymentMethodType"`
	PaymentData       string `json:"paymentData"`
}

type QRCodeAction struct {
	PaymentMethodType string `json:"paymentMethodType"`
	QRCodeData        string `json:"qrCodeData"`
	PaymentData       string `json:"paymentData"`
}

type SDKAction struct {
	PaymentMethodType string          `json:"paymentMethodType"`
	SDKData           json.RawMessage `json:"sdkData"`
	PaymentData       string          `json:"paymentData,omitempty"`
}

// PaymentData returns the opaque blob the backend needs to resume the flow.
func (a *Action) PaymentData() string {
	switch a.Type {
	case ActionRedirect:
		return a.Redirect.PaymentData
	case ActionThreeDS2:
		return a.ThreeDS2.PaymentData
	case ActionVoucher:
		return a.Voucher.PaymentData
	case ActionAwait:
		return a.Await.PaymentData
	case ActionQRCode:
		return a.QRCode.PaymentData
	case ActionSDK:
		return a.SDK.PaymentData
	}
	return ""
}

func (a *Action) variant() (any, error) {
	switch a.Type {
	case ActionRedirect:
		return a.Redirect, nil
	case ActionThreeDS2:
		return a.ThreeDS2, nil
	case ActionVoucher:
		return a.Voucher, nil
	case ActionAwait:
		return a.Await, nil
	case ActionQRCode:
		return a.QRCode, nil
	case ActionSDK:
		return a.SDK, nil
	}
	return nil, fmt.Errorf("unsupported action type %q", a.Type)
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var head struct {
		Type ActionType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	decoded := Action{Type: head.Type}
	switch head.Type {
	case ActionRedirect:
		decoded.Redirect = &RedirectAction{}
	case ActionThreeDS2:
		decoded.ThreeDS2 = &ThreeDS2Action{}
	case ActionVoucher:
		decoded.Voucher = &VoucherAction{}
	case ActionAwait:
		decoded.Await = &AwaitAction{}
	case ActionQRCode:
		decoded.QRCode = &QRCodeAction{}
	case ActionSDK:
		decoded.SDK = &SDKAction{}
	default:
		return fmt.Errorf("unsupported action type %q", head.Type)
	}

	target, _ := decoded.variant()
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode %s action: %w", head.Type, err)
	}

	*a = decoded
	return nil
}

func (a Action) MarshalJSON() ([]byte, error) {
	v, err := a.variant()
	if err != nil {
		return nil, err
	}

	fields, err := json.Marshal(v)
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
	flat["type"], _ = json.Marshal(a.Type)

	return json.Marshal(flat)
}

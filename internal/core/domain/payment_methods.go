package domain

// PaymentMethods is the list a session offers the shopper.
type PaymentMethods struct {
	Regular []PaymentMethod       `json:"paymentMethods"`
	Stored  []StoredPaymentMethod `json:"storedPaymentMethods,omitempty"`
}

type PaymentMethod struct {
	Type   string   `json:"type"`
	Name   string   `json:"name"`
	Brands []string `json:"brands,omitempty"`
	Brand  string   `json:"brand,omitempty"`
}

type StoredPaymentMethod struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Brand       string `json:"brand,omitempty"`
	LastFour    string `json:"lastFour,omitempty"`
	ExpiryMonth string `json:"expiryMonth,omitempty"`
	ExpiryYear  string `json:"expiryYear,omitempty"`
	HolderName  string `json:"holderName,omitempty"`
}

// Without returns a copy with the stored method id removed.
func (m PaymentMethods) Without(storedID string) PaymentMethods {
	out := PaymentMethods{Regular: m.Regular}
	for _, s := range m.Stored {
		if s.ID != storedID {
			out.Stored = append(out.Stored, s)
		}
	}
	return out
}

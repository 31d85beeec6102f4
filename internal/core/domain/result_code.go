package domain

import (
	"encoding/json"
	"fmt"
)

// ResultCode is the outcome of a payment as reported by the backend.
type ResultCode string

const (
	ResultAuthorised       ResultCode = "Authorised"
	ResultRefused          ResultCode = "Refused"
	ResultPending          ResultCode = "Pending"
	ResultCancelled        ResultCode = "Cancelled"
	ResultError            ResultCode = "Error"
	ResultReceived         ResultCode = "Received"
	ResultRedirectShopper  ResultCode = "RedirectShopper"
	ResultIdentifyShopper  ResultCode = "IdentifyShopper"
	ResultChallengeShopper ResultCode = "ChallengeShopper"
	ResultPresentToShopper ResultCode = "PresentToShopper"
)

var knownResultCodes = map[ResultCode]struct{}{
	ResultAuthorised:       {},
	ResultRefused:          {},
	ResultPending:          {},
	ResultCancelled:        {},
	ResultError:            {},
	ResultReceived:         {},
	ResultRedirectShopper:  {},
	ResultIdentifyShopper:  {},
	ResultChallengeShopper: {},
	ResultPresentToShopper: {},
}

// IsTerminal reports whether the code ends the payment attempt with a final outcome.
func (c ResultCode) IsTerminal() bool {
	switch c {
	case ResultAuthorised, ResultRefused, ResultCancelled, ResultError:
		return true
	}
	return false
}

// FinishesFlow reports whether no further client side work is expected.
// Received, Pending and PresentToShopper are not final outcomes but the
// shopper has nothing left to do in this checkout.
func (c ResultCode) FinishesFlow() bool {
	switch c {
	case ResultReceived, ResultPending, ResultPresentToShopper:
		return true
	}
	return c.IsTerminal()
}

func (c *ResultCode) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	code := ResultCode(raw)
	if _, ok := knownResultCodes[code]; !ok {
		return fmt.Errorf("unknown result code %q", raw)
	}
	*c = code
	return nil
}

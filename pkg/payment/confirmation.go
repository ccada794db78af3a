package payment

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"storefront/pkg/pricing"
)

var (
	ErrMalformedConfirmation = errors.New("payment confirmation is missing required fields")
	ErrPaymentNotCompleted   = errors.New("payment has not been completed by the provider")
	ErrAmountMismatch        = errors.New("confirmed amount does not match the order total")
	ErrProviderUnavailable   = errors.New("payment provider is unavailable")
)

// Confirmation is the canonical shape of an external capture result. The raw
// provider response is reduced to these fields before anything else looks at it.
type Confirmation struct {
	ExternalID   string
	Status       string
	SettledAt    time.Time
	PayerContact string
	AmountCents  int64
}

// rawConfirmation mirrors the provider's capture response wire format.
type rawConfirmation struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	UpdateTime string `json:"update_time"`
	Payer      struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
	PurchaseUnits []struct {
		Amount struct {
			Value string `json:"value"`
		} `json:"amount"`
	} `json:"purchase_units"`
}

// Normalize maps a raw provider capture response to the canonical Confirmation.
func Normalize(raw []byte) (Confirmation, error) {
	var r rawConfirmation
	if err := json.Unmarshal(raw, &r); err != nil {
		return Confirmation{}, ErrMalformedConfirmation
	}
	if r.ID == "" || r.Status == "" || r.Payer.EmailAddress == "" {
		return Confirmation{}, ErrMalformedConfirmation
	}
	if len(r.PurchaseUnits) == 0 || r.PurchaseUnits[0].Amount.Value == "" {
		return Confirmation{}, ErrMalformedConfirmation
	}

	settledAt, err := time.Parse(time.RFC3339, r.UpdateTime)
	if err != nil {
		return Confirmation{}, ErrMalformedConfirmation
	}

	dollars, err := strconv.ParseFloat(r.PurchaseUnits[0].Amount.Value, 64)
	if err != nil || dollars < 0 {
		return Confirmation{}, ErrMalformedConfirmation
	}

	return Confirmation{
		ExternalID:   r.ID,
		Status:       r.Status,
		SettledAt:    settledAt,
		PayerContact: r.Payer.EmailAddress,
		AmountCents:  pricing.Cents(dollars),
	}, nil
}

// Verify checks that a confirmation settles the expected amount. Checking the
// amount is mandatory: a completed capture for the wrong total must not mark
// the order paid.
func Verify(conf Confirmation, expectedCents int64) error {
	if !strings.EqualFold(conf.Status, "COMPLETED") {
		return ErrPaymentNotCompleted
	}
	if conf.AmountCents != expectedCents {
		return ErrAmountMismatch
	}
	return nil
}

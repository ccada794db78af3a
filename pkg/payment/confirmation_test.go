package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCapture = `{
	"id": "5O190127TN364715T",
	"status": "COMPLETED",
	"update_time": "2024-03-01T12:30:00Z",
	"payer": {"email_address": "buyer@example.com"},
	"purchase_units": [{"amount": {"value": "32.50"}}]
}`

func TestNormalize(t *testing.T) {
	conf, err := Normalize([]byte(validCapture))

	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", conf.ExternalID)
	assert.Equal(t, "COMPLETED", conf.Status)
	assert.Equal(t, "buyer@example.com", conf.PayerContact)
	assert.Equal(t, int64(3250), conf.AmountCents)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), conf.SettledAt)
}

func TestNormalizeMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":        `{{`,
		"missing id":      `{"status":"COMPLETED","update_time":"2024-03-01T12:30:00Z","payer":{"email_address":"a@b.c"},"purchase_units":[{"amount":{"value":"1.00"}}]}`,
		"missing status":  `{"id":"X","update_time":"2024-03-01T12:30:00Z","payer":{"email_address":"a@b.c"},"purchase_units":[{"amount":{"value":"1.00"}}]}`,
		"missing payer":   `{"id":"X","status":"COMPLETED","update_time":"2024-03-01T12:30:00Z","purchase_units":[{"amount":{"value":"1.00"}}]}`,
		"missing amount":  `{"id":"X","status":"COMPLETED","update_time":"2024-03-01T12:30:00Z","payer":{"email_address":"a@b.c"},"purchase_units":[]}`,
		"bad update_time": `{"id":"X","status":"COMPLETED","update_time":"yesterday","payer":{"email_address":"a@b.c"},"purchase_units":[{"amount":{"value":"1.00"}}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformedConfirmation)
		})
	}
}

func TestVerify(t *testing.T) {
	conf := Confirmation{ExternalID: "X", Status: "COMPLETED", AmountCents: 3250}

	assert.NoError(t, Verify(conf, 3250))

	conf.AmountCents = 3000
	assert.ErrorIs(t, Verify(conf, 3250), ErrAmountMismatch)

	conf.AmountCents = 3250
	conf.Status = "PENDING"
	assert.ErrorIs(t, Verify(conf, 3250), ErrPaymentNotCompleted)
}

func TestVerifyStatusCaseInsensitive(t *testing.T) {
	conf := Confirmation{ExternalID: "X", Status: "completed", AmountCents: 100}
	assert.NoError(t, Verify(conf, 100))
}

func TestHTTPGatewayConfirm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/checkout/orders/5O190127TN364715T", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(validCapture))
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, "secret", time.Second)
	conf, err := gw.Confirm(context.Background(), Confirmation{ExternalID: "5O190127TN364715T"})

	require.NoError(t, err)
	assert.Equal(t, int64(3250), conf.AmountCents)
}

func TestHTTPGatewayUnavailable(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		gw := NewHTTPGateway(srv.URL, "", time.Second)
		_, err := gw.Confirm(context.Background(), Confirmation{ExternalID: "X"})
		assert.ErrorIs(t, err, ErrProviderUnavailable)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		gw := NewHTTPGateway(srv.URL, "", 10*time.Millisecond)
		_, err := gw.Confirm(context.Background(), Confirmation{ExternalID: "X"})
		assert.ErrorIs(t, err, ErrProviderUnavailable)
	})
}

package payment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Gateway resolves a client-submitted confirmation into the authoritative one.
// The client's browser drives the payment flow, so whatever it POSTs back is
// untrusted input until the provider has been asked directly.
type Gateway interface {
	Confirm(ctx context.Context, conf Confirmation) (Confirmation, error)
}

// HTTPGateway re-fetches the capture from the provider by its external id and
// returns the provider's view of it, discarding the client-supplied fields.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPGateway(baseURL, token string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) Confirm(ctx context.Context, conf Confirmation) (Confirmation, error) {
	url := fmt.Sprintf("%s/v2/checkout/orders/%s", g.baseURL, conf.ExternalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Confirmation{}, errors.Wrap(err, "build provider request")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		// Timeouts and connection failures are retryable: pay is idempotent
		// on the external id.
		return Confirmation{}, errors.Wrap(ErrProviderUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Confirmation{}, errors.Wrapf(ErrProviderUnavailable, "provider returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return Confirmation{}, errors.Wrapf(ErrMalformedConfirmation, "provider returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Confirmation{}, errors.Wrap(ErrProviderUnavailable, err.Error())
	}
	return Normalize(body)
}

// StaticGateway trusts the already-normalized confirmation as-is. Used in
// tests and local runs where no provider endpoint is configured.
type StaticGateway struct{}

func (StaticGateway) Confirm(_ context.Context, conf Confirmation) (Confirmation, error) {
	return conf, nil
}

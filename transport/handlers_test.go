package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ordermodel "storefront/pkg/order/domain/model"
	"storefront/pkg/payment"
	reviewmodel "storefront/pkg/review/domain/model"
)

type fakeOrderService struct {
	createFn  func(ctx context.Context, ownerID uuid.UUID, lines []ordermodel.CartLine, addr, method string, claimed *ordermodel.ClaimedTotals) (*ordermodel.Order, error)
	payFn     func(ctx context.Context, orderID uuid.UUID, raw []byte) (*ordermodel.Order, error)
	deliverFn func(ctx context.Context, orderID uuid.UUID) (*ordermodel.Order, error)
	getFn     func(ctx context.Context, orderID uuid.UUID) (*ordermodel.Order, error)
}

func (f *fakeOrderService) Create(ctx context.Context, ownerID uuid.UUID, lines []ordermodel.CartLine, addr, method string, claimed *ordermodel.ClaimedTotals) (*ordermodel.Order, error) {
	return f.createFn(ctx, ownerID, lines, addr, method, claimed)
}

func (f *fakeOrderService) Pay(ctx context.Context, orderID uuid.UUID, raw []byte) (*ordermodel.Order, error) {
	return f.payFn(ctx, orderID, raw)
}

func (f *fakeOrderService) Deliver(ctx context.Context, orderID uuid.UUID) (*ordermodel.Order, error) {
	return f.deliverFn(ctx, orderID)
}

func (f *fakeOrderService) Get(ctx context.Context, orderID uuid.UUID) (*ordermodel.Order, error) {
	return f.getFn(ctx, orderID)
}

func (f *fakeOrderService) ListByOwner(context.Context, uuid.UUID) ([]*ordermodel.Order, error) {
	return nil, nil
}

func (f *fakeOrderService) ListAll(context.Context) ([]*ordermodel.Order, error) { return nil, nil }

func (f *fakeOrderService) CountOrders(context.Context) (int, error) { return 3, nil }

func (f *fakeOrderService) TotalSales(context.Context) (int64, error) { return 12550, nil }

func (f *fakeOrderService) TotalSalesByDate(context.Context) ([]ordermodel.DailySales, error) {
	return []ordermodel.DailySales{{Date: "2024-03-01", TotalCents: 12550}}, nil
}

type fakeReviewService struct {
	addFn func(ctx context.Context, productID, reviewerID uuid.UUID, name string, rating int, comment string) (*reviewmodel.RatingAggregate, error)
}

func (f *fakeReviewService) AddReview(ctx context.Context, productID, reviewerID uuid.UUID, name string, rating int, comment string) (*reviewmodel.RatingAggregate, error) {
	return f.addFn(ctx, productID, reviewerID, name, rating, comment)
}

func (f *fakeReviewService) GetRating(context.Context, uuid.UUID) (*reviewmodel.RatingAggregate, error) {
	return nil, nil
}

func testOrder(ownerID uuid.UUID) *ordermodel.Order {
	return &ordermodel.Order{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Items: []ordermodel.OrderItem{
			{ProductID: uuid.New(), Name: "Widget", UnitPriceCents: 1000, Quantity: 2, Image: "/images/widget.jpg"},
		},
		ShippingAddress:    "221B Baker Street",
		PaymentMethod:      "PayPal",
		ItemsPriceCents:    2000,
		ShippingPriceCents: 500,
		TaxPriceCents:      200,
		TotalPriceCents:    2700,
		CreatedAt:          time.Now().UTC(),
		Version:            1,
	}
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body []byte, userID uuid.UUID, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if userID != uuid.Nil {
		req.Header.Set(headerUserID, userID.String())
	}
	if role != "" {
		req.Header.Set(headerRole, role)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestCreateOrder(t *testing.T) {
	ownerID := uuid.New()
	orders := &fakeOrderService{
		createFn: func(_ context.Context, gotOwner uuid.UUID, lines []ordermodel.CartLine, addr, method string, claimed *ordermodel.ClaimedTotals) (*ordermodel.Order, error) {
			assert.Equal(t, ownerID, gotOwner)
			assert.Len(t, lines, 1)
			assert.Equal(t, "PayPal", method)
			require.NotNil(t, claimed)
			assert.Equal(t, int64(2700), claimed.TotalCents)
			return testOrder(gotOwner), nil
		},
	}
	router := Router(orders, &fakeReviewService{}, nil)

	body := fmt.Sprintf(`{
		"items": [{"productId": %q, "quantity": 2}],
		"shippingAddress": "221B Baker Street",
		"paymentMethod": "PayPal",
		"itemsPrice": 20.00, "shippingPrice": 5.00, "taxPrice": 2.00, "totalPrice": 27.00
	}`, uuid.New())

	w := doRequest(t, router, http.MethodPost, "/api/v1/orders", []byte(body), ownerID, "customer")

	require.Equal(t, http.StatusCreated, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 27.00, response["totalPrice"])
	assert.Equal(t, false, response["isPaid"])
}

func TestCreateOrderValidation(t *testing.T) {
	router := Router(&fakeOrderService{}, &fakeReviewService{}, nil)

	t.Run("no identity", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, "/api/v1/orders", []byte(`{}`), uuid.Nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing address", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, "/api/v1/orders",
			[]byte(`{"paymentMethod":"PayPal"}`), uuid.New(), "customer")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad product id", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, "/api/v1/orders",
			[]byte(`{"shippingAddress":"a","paymentMethod":"p","items":[{"productId":"nope","quantity":1}]}`),
			uuid.New(), "customer")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPayOrderErrorMapping(t *testing.T) {
	ownerID := uuid.New()
	order := testOrder(ownerID)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"amount mismatch", payment.ErrAmountMismatch, http.StatusBadRequest},
		{"not completed", payment.ErrPaymentNotCompleted, http.StatusBadRequest},
		{"already paid", ordermodel.ErrAlreadyPaid, http.StatusBadRequest},
		{"stale version", ordermodel.ErrOptimisticLock, http.StatusConflict},
		{"provider down", payment.ErrProviderUnavailable, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders := &fakeOrderService{
				getFn: func(context.Context, uuid.UUID) (*ordermodel.Order, error) { return order, nil },
				payFn: func(context.Context, uuid.UUID, []byte) (*ordermodel.Order, error) { return nil, tc.err },
			}
			router := Router(orders, &fakeReviewService{}, nil)

			w := doRequest(t, router, http.MethodPut, "/api/v1/orders/"+order.ID.String()+"/pay",
				[]byte(`{}`), ownerID, "customer")

			assert.Equal(t, tc.status, w.Code)
		})
	}

	t.Run("unknown order", func(t *testing.T) {
		orders := &fakeOrderService{
			getFn: func(context.Context, uuid.UUID) (*ordermodel.Order, error) {
				return nil, ordermodel.ErrOrderNotFound
			},
		}
		router := Router(orders, &fakeReviewService{}, nil)
		w := doRequest(t, router, http.MethodPut, "/api/v1/orders/"+uuid.New().String()+"/pay",
			[]byte(`{}`), ownerID, "customer")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("not the owner", func(t *testing.T) {
		orders := &fakeOrderService{
			getFn: func(context.Context, uuid.UUID) (*ordermodel.Order, error) { return order, nil },
		}
		router := Router(orders, &fakeReviewService{}, nil)
		w := doRequest(t, router, http.MethodPut, "/api/v1/orders/"+order.ID.String()+"/pay",
			[]byte(`{}`), uuid.New(), "customer")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestOperatorEndpoints(t *testing.T) {
	order := testOrder(uuid.New())
	orders := &fakeOrderService{
		deliverFn: func(context.Context, uuid.UUID) (*ordermodel.Order, error) {
			delivered := *order
			delivered.IsPaid = true
			delivered.IsDelivered = true
			return &delivered, nil
		},
	}
	router := Router(orders, &fakeReviewService{}, nil)

	t.Run("deliver requires operator", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPut, "/api/v1/orders/"+order.ID.String()+"/deliver",
			nil, uuid.New(), "customer")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("deliver as operator", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPut, "/api/v1/orders/"+order.ID.String()+"/deliver",
			nil, uuid.New(), "admin")
		require.Equal(t, http.StatusOK, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, true, response["isDelivered"])
	})

	t.Run("total sales", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/v1/orders/total-sales", nil, uuid.New(), "admin")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"totalSales": 125.50}`, w.Body.String())
	})

	t.Run("total sales by date", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/v1/orders/total-sales-by-date", nil, uuid.New(), "admin")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[{"date": "2024-03-01", "totalSales": 125.50}]`, w.Body.String())
	})

	t.Run("count", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/v1/orders/count", nil, uuid.New(), "admin")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"count": 3}`, w.Body.String())
	})
}

func TestAddReview(t *testing.T) {
	productID := uuid.New()
	reviewerID := uuid.New()

	t.Run("created", func(t *testing.T) {
		reviews := &fakeReviewService{
			addFn: func(_ context.Context, gotProduct, gotReviewer uuid.UUID, name string, rating int, comment string) (*reviewmodel.RatingAggregate, error) {
				assert.Equal(t, productID, gotProduct)
				assert.Equal(t, reviewerID, gotReviewer)
				assert.Equal(t, 4, rating)
				return &reviewmodel.RatingAggregate{ProductID: gotProduct, Rating: 4, NumReviews: 1}, nil
			},
		}
		router := Router(&fakeOrderService{}, reviews, nil)

		w := doRequest(t, router, http.MethodPost, "/api/v1/products/"+productID.String()+"/reviews",
			[]byte(`{"rating": 4, "comment": "solid", "displayName": "alice"}`), reviewerID, "customer")

		require.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"message": "Review added", "rating": 4, "numReviews": 1}`, w.Body.String())
	})

	errorCases := []struct {
		name   string
		err    error
		status int
	}{
		{"duplicate", reviewmodel.ErrAlreadyReviewed, http.StatusBadRequest},
		{"invalid rating", reviewmodel.ErrInvalidRating, http.StatusBadRequest},
		{"unknown product", reviewmodel.ErrProductNotFound, http.StatusNotFound},
		{"conflict after retries", reviewmodel.ErrOptimisticLock, http.StatusConflict},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			reviews := &fakeReviewService{
				addFn: func(context.Context, uuid.UUID, uuid.UUID, string, int, string) (*reviewmodel.RatingAggregate, error) {
					return nil, tc.err
				},
			}
			router := Router(&fakeOrderService{}, reviews, nil)
			w := doRequest(t, router, http.MethodPost, "/api/v1/products/"+productID.String()+"/reviews",
				[]byte(`{"rating": 4}`), reviewerID, "customer")
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestHealthz(t *testing.T) {
	router := Router(&fakeOrderService{}, &fakeReviewService{}, nil)
	w := doRequest(t, router, http.MethodGet, "/healthz", nil, uuid.Nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

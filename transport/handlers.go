package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"storefront/pkg/metrics"
	ordermodel "storefront/pkg/order/domain/model"
	orderservice "storefront/pkg/order/domain/service"
	"storefront/pkg/payment"
	"storefront/pkg/pricing"
	reviewmodel "storefront/pkg/review/domain/model"
	reviewservice "storefront/pkg/review/domain/service"
)

const maxConfirmationBody = 1 << 16

type Handler struct {
	orders  orderservice.OrderService
	reviews reviewservice.ReviewService
}

func Router(orders orderservice.OrderService, reviews reviewservice.ReviewService, m *metrics.ServerMetrics) http.Handler {
	h := &Handler{orders: orders, reviews: reviews}

	r := mux.NewRouter()
	r.Handle("/metrics", metrics.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s := r.PathPrefix("/api/v1").Subrouter()
	if m != nil {
		s.Use(metricsMiddleware(m))
	}

	s.HandleFunc("/orders", h.createOrder).Methods(http.MethodPost).Name("createOrder")
	s.HandleFunc("/orders/mine", h.myOrders).Methods(http.MethodGet).Name("myOrders")
	s.HandleFunc("/orders/count", h.countOrders).Methods(http.MethodGet).Name("countOrders")
	s.HandleFunc("/orders/total-sales", h.totalSales).Methods(http.MethodGet).Name("totalSales")
	s.HandleFunc("/orders/total-sales-by-date", h.totalSalesByDate).Methods(http.MethodGet).Name("totalSalesByDate")
	s.HandleFunc("/orders", h.listOrders).Methods(http.MethodGet).Name("listOrders")
	s.HandleFunc("/orders/{ID}", h.getOrder).Methods(http.MethodGet).Name("getOrder")
	s.HandleFunc("/orders/{ID}/pay", h.payOrder).Methods(http.MethodPut).Name("payOrder")
	s.HandleFunc("/orders/{ID}/deliver", h.deliverOrder).Methods(http.MethodPut).Name("deliverOrder")
	s.HandleFunc("/products/{ID}/reviews", h.addReview).Methods(http.MethodPost).Name("addReview")

	return logMiddleware(identityMiddleware(r))
}

type cartLineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	Items           []cartLineRequest `json:"items"`
	ShippingAddress string            `json:"shippingAddress"`
	PaymentMethod   string            `json:"paymentMethod"`
	// Optional client-computed totals, checked against the authoritative ones.
	ItemsPrice    *float64 `json:"itemsPrice"`
	ShippingPrice *float64 `json:"shippingPrice"`
	TaxPrice      *float64 `json:"taxPrice"`
	TotalPrice    *float64 `json:"totalPrice"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r)
	if !ok {
		writeStatus(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ShippingAddress == "" || req.PaymentMethod == "" {
		writeStatus(w, http.StatusBadRequest, "shippingAddress and paymentMethod are required")
		return
	}

	lines := make([]ordermodel.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			writeStatus(w, http.StatusBadRequest, "invalid productId")
			return
		}
		lines = append(lines, ordermodel.CartLine{ProductID: productID, Quantity: item.Quantity})
	}

	var claimed *ordermodel.ClaimedTotals
	if req.ItemsPrice != nil && req.ShippingPrice != nil && req.TaxPrice != nil && req.TotalPrice != nil {
		claimed = &ordermodel.ClaimedTotals{
			ItemsCents:    pricing.Cents(*req.ItemsPrice),
			ShippingCents: pricing.Cents(*req.ShippingPrice),
			TaxCents:      pricing.Cents(*req.TaxPrice),
			TotalCents:    pricing.Cents(*req.TotalPrice),
		}
	}

	order, err := h.orders.Create(r.Context(), identity.UserID, lines, req.ShippingAddress, req.PaymentMethod, claimed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderResponseFrom(order))
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r)
	if !ok {
		writeStatus(w, http.StatusUnauthorized, "authentication required")
		return
	}

	orders, err := h.orders.ListByOwner(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ordersResponseFrom(orders))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	if !requireOperator(w, r) {
		return
	}
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ordersResponseFrom(orders))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r)
	if !ok {
		writeStatus(w, http.StatusUnauthorized, "authentication required")
		return
	}
	orderID, ok := orderIDFrom(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if order.OwnerID != identity.UserID && !identity.IsOperator() {
		writeStatus(w, http.StatusForbidden, "not your order")
		return
	}
	writeJSON(w, http.StatusOK, orderResponseFrom(order))
}

func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r)
	if !ok {
		writeStatus(w, http.StatusUnauthorized, "authentication required")
		return
	}
	orderID, ok := orderIDFrom(w, r)
	if !ok {
		return
	}

	// The owner check reads the order first; Pay re-reads under its own
	// version, so a concurrent transition still surfaces as a conflict there.
	order, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if order.OwnerID != identity.UserID {
		writeStatus(w, http.StatusForbidden, "not your order")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxConfirmationBody))
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	paid, err := h.orders.Pay(r.Context(), orderID, raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponseFrom(paid))
}

func (h *Handler) deliverOrder(w http.ResponseWriter, r *http.Request) {
	if !requireOperator(w, r) {
		return
	}
	orderID, ok := orderIDFrom(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Deliver(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponseFrom(order))
}

func (h *Handler) countOrders(w http.ResponseWriter, r *http.Request) {
	if !requireOperator(w, r) {
		return
	}
	count, err := h.orders.CountOrders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handler) totalSales(w http.ResponseWriter, r *http.Request) {
	if !requireOperator(w, r) {
		return
	}
	total, err := h.orders.TotalSales(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"totalSales": pricing.Dollars(total)})
}

func (h *Handler) totalSalesByDate(w http.ResponseWriter, r *http.Request) {
	if !requireOperator(w, r) {
		return
	}
	sales, err := h.orders.TotalSalesByDate(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	type dailySales struct {
		Date       string  `json:"date"`
		TotalSales float64 `json:"totalSales"`
	}
	response := make([]dailySales, 0, len(sales))
	for _, day := range sales {
		response = append(response, dailySales{Date: day.Date, TotalSales: pricing.Dollars(day.TotalCents)})
	}
	writeJSON(w, http.StatusOK, response)
}

type addReviewRequest struct {
	Rating      int    `json:"rating"`
	Comment     string `json:"comment"`
	DisplayName string `json:"displayName"`
}

func (h *Handler) addReview(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r)
	if !ok {
		writeStatus(w, http.StatusUnauthorized, "authentication required")
		return
	}

	productID, err := uuid.Parse(mux.Vars(r)["ID"])
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req addReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	aggregate, err := h.reviews.AddReview(r.Context(), productID, identity.UserID, req.DisplayName, req.Rating, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "Review added",
		"rating":     aggregate.Rating,
		"numReviews": aggregate.NumReviews,
	})
}

func requireOperator(w http.ResponseWriter, r *http.Request) bool {
	identity, ok := identityFrom(r)
	if !ok {
		writeStatus(w, http.StatusUnauthorized, "authentication required")
		return false
	}
	if !identity.IsOperator() {
		writeStatus(w, http.StatusForbidden, "operator access required")
		return false
	}
	return true
}

func orderIDFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(mux.Vars(r)["ID"])
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid order id")
		return uuid.Nil, false
	}
	return orderID, true
}

// statusFromError maps the closed error set to HTTP statuses. Conflict kinds
// that a caller may retry automatically get 409/502; terminal ones get 400.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, ordermodel.ErrOrderNotFound),
		errors.Is(err, reviewmodel.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, ordermodel.ErrOptimisticLock),
		errors.Is(err, reviewmodel.ErrOptimisticLock),
		errors.Is(err, ordermodel.ErrNotPaid):
		return http.StatusConflict
	case errors.Is(err, payment.ErrProviderUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ordermodel.ErrProductNotFound),
		errors.Is(err, ordermodel.ErrEmptyCart),
		errors.Is(err, ordermodel.ErrInvalidQuantity),
		errors.Is(err, ordermodel.ErrOutOfStock),
		errors.Is(err, ordermodel.ErrPriceMismatch),
		errors.Is(err, ordermodel.ErrAlreadyPaid),
		errors.Is(err, reviewmodel.ErrAlreadyReviewed),
		errors.Is(err, reviewmodel.ErrInvalidRating),
		errors.Is(err, payment.ErrMalformedConfirmation),
		errors.Is(err, payment.ErrPaymentNotCompleted),
		errors.Is(err, payment.ErrAmountMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		writeStatus(w, status, "internal error")
		return
	}
	writeStatus(w, status, err.Error())
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("write response body")
	}
}

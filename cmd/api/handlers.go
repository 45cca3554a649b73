package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/safar/go-pos-register/internal/backend"
	"github.com/safar/go-pos-register/internal/cart"
	"github.com/safar/go-pos-register/internal/checkout"
	"github.com/safar/go-pos-register/internal/coupon"
	"github.com/safar/go-pos-register/internal/gateway"
	"github.com/safar/go-pos-register/internal/models"
	"github.com/safar/go-pos-register/internal/receipt"
	"github.com/safar/go-pos-register/internal/sale"
	"github.com/safar/go-pos-register/internal/store"
)

type salesJournal interface {
	checkout.Journal
	List(ctx context.Context, cursor string, limit int) (*store.CursorPage[models.SaleRecord], error)
}

type server struct {
	api        *backend.Client
	variations *backend.VariationCache
	customers  *backend.CustomerDirectory
	sale       *sale.Sale
	composer   *checkout.Composer
	journal    salesJournal
	refresher  *gateway.Refresher
	logger     *zap.Logger

	catMu      sync.RWMutex
	categories []models.Category
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/session/foreground", s.handleForeground).Methods(http.MethodPost)

	r.HandleFunc("/catalog/products", s.handleProducts).Methods(http.MethodGet)
	r.HandleFunc("/catalog/products/{id:[0-9]+}", s.handleProduct).Methods(http.MethodGet)
	r.HandleFunc("/catalog/products/{id:[0-9]+}/variations", s.handleVariations).Methods(http.MethodGet)
	r.HandleFunc("/catalog/categories", s.handleCategories).Methods(http.MethodGet)

	r.HandleFunc("/customers", s.handleListCustomers).Methods(http.MethodGet)
	r.HandleFunc("/customers", s.handleCreateCustomer).Methods(http.MethodPost)
	r.HandleFunc("/customers/{id:[0-9]+}", s.handleUpdateCustomer).Methods(http.MethodPatch)
	r.HandleFunc("/coupons", s.handleListCoupons).Methods(http.MethodGet)
	r.HandleFunc("/coupons", s.handleCreateCoupon).Methods(http.MethodPost)

	r.HandleFunc("/sale", s.handleGetSale).Methods(http.MethodGet)
	r.HandleFunc("/sale/items", s.handleAddItem).Methods(http.MethodPost)
	r.HandleFunc("/sale/lines/{index:[0-9]+}/quantity", s.handleChangeQuantity).Methods(http.MethodPost)
	r.HandleFunc("/sale/lines/{index:[0-9]+}", s.handleRemoveLine).Methods(http.MethodDelete)
	r.HandleFunc("/sale/discount", s.handleDiscount).Methods(http.MethodPut)
	r.HandleFunc("/sale/charges", s.handleCharges).Methods(http.MethodPut)
	r.HandleFunc("/sale/details", s.handleDetails).Methods(http.MethodPut)
	r.HandleFunc("/sale/coupon", s.handleApplyCoupon).Methods(http.MethodPost)
	r.HandleFunc("/sale/coupon", s.handleClearCoupon).Methods(http.MethodDelete)
	r.HandleFunc("/sale/reset", s.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/sale/checkout", s.handleCheckout).Methods(http.MethodPost)
	r.HandleFunc("/sale/receipt/dismiss", s.handleDismiss).Methods(http.MethodPost)

	r.HandleFunc("/orders/{id:[0-9]+}/receipt", s.handleReceipt).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id:[0-9]+}/complete", s.handleCompleteOrder).Methods(http.MethodPatch)
	r.HandleFunc("/orders/{id:[0-9]+}/refund", s.handleRefund).Methods(http.MethodPost)
	r.HandleFunc("/journal", s.handleJournal).Methods(http.MethodGet)

	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds backend.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if creds.Username == "" || creds.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if err := s.api.Login(r.Context(), creds); err != nil {
		s.fail(w, err)
		return
	}
	s.refresher.Foreground()
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.api.Logout(r.Context()); err != nil {
		// the local session is gone either way
		s.logger.Warn("logout call failed", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleForeground(w http.ResponseWriter, r *http.Request) {
	s.refresher.Foreground()
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	if sku := q.Get("sku"); sku != "" {
		products, err := s.api.LookupSKU(ctx, sku)
		if err != nil {
			s.fail(w, err)
			return
		}
		respondJSON(w, http.StatusOK, products)
		return
	}

	if search := q.Get("search"); search != "" {
		products, err := s.api.SearchProducts(ctx, search, q.Get("category"))
		if err != nil {
			s.fail(w, err)
			return
		}
		respondJSON(w, http.StatusOK, products)
		return
	}

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	result, err := s.api.ListProducts(ctx, backend.ProductQuery{
		Page:     page,
		Limit:    limit,
		Category: q.Get("category"),
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *server) handleProduct(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	product, err := s.api.GetProduct(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *server) handleVariations(w http.ResponseWriter, r *http.Request) {
	variations, err := s.variations.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, variations)
}

func (s *server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") != "true" {
		s.catMu.RLock()
		cached := s.categories
		s.catMu.RUnlock()
		if cached != nil {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	categories, err := s.loadCategories(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (s *server) loadCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.api.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	s.catMu.Lock()
	s.categories = categories
	s.catMu.Unlock()
	return categories, nil
}

func (s *server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := s.customers.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var in backend.CustomerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	customer, err := s.api.CreateCustomer(r.Context(), in)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, customer)
}

func (s *server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var in backend.CustomerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	customer, err := s.api.UpdateCustomer(r.Context(), pathID(r, "id"), in)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

func (s *server) handleListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := s.api.ListCoupons(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, coupons)
}

func (s *server) handleCreateCoupon(w http.ResponseWriter, r *http.Request) {
	var in backend.CouponInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	created, err := s.api.CreateCoupon(r.Context(), in)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *server) respondSale(w http.ResponseWriter, status int) {
	respondJSON(w, status, s.sale.Snapshot())
}

func (s *server) handleGetSale(w http.ResponseWriter, r *http.Request) {
	s.respondSale(w, http.StatusOK)
}

func (s *server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID   int64 `json:"product_id"`
		VariationID int64 `json:"variation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == 0 {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	ctx := r.Context()

	var (
		product *models.Product
		err     error
	)
	if req.VariationID != 0 {
		product, err = s.api.GetProductWithVariations(ctx, req.ProductID, s.variations)
	} else {
		product, err = s.api.GetProduct(ctx, req.ProductID)
	}
	if err != nil {
		s.fail(w, err)
		return
	}

	var variation *models.Variation
	if req.VariationID != 0 {
		v, ok := product.Variation(req.VariationID)
		if !ok {
			respondError(w, http.StatusNotFound, "Variation not found")
			return
		}
		variation = v
	}

	if _, err := s.sale.AddItem(*product, variation); err != nil {
		s.fail(w, err)
		return
	}
	s.respondSale(w, http.StatusOK)
}

func (s *server) handleChangeQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.sale.ChangeQuantity(pathIndex(r), req.Delta); err != nil {
		s.fail(w, err)
		return
	}
	s.respondSale(w, http.StatusOK)
}

func (s *server) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	if err := s.sale.RemoveLine(pathIndex(r)); err != nil {
		s.fail(w, err)
		return
	}
	s.respondSale(w, http.StatusOK)
}

func (s *server) handleDiscount(w http.ResponseWriter, r *http.Request) {
	var req models.ManualDiscount
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.sale.SetManualDiscount(req.Kind, req.Value); err != nil {
		s.fail(w, err)
		return
	}
	s.respondSale(w, http.StatusOK)
}

func (s *server) handleCharges(w http.ResponseWriter, r *http.Request) {
	var req models.Charges
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.sale.SetCharges(req); err != nil {
		s.fail(w, err)
		return
	}
	s.respondSale(w, http.StatusOK)
}

func (s *server) handleDetails(w http.ResponseWriter, r *http.Request) {
	// omitted fields keep their current value
	var req struct {
		Customer      *models.Customer `json:"customer"`
		ClearCustomer bool             `json:"clear_customer"`
		Notes         *string          `json:"notes"`
		Measurements  *string          `json:"measurements"`
		OrderType     *string          `json:"order_type"`
		PaymentMethod *string          `json:"payment_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	err := s.sale.UpdateDetails(sale.Details{
		Customer:      req.Customer,
		ClearCustomer: req.ClearCustomer,
		Notes:         req.Notes,
		Measurements:  req.Measurements,
		OrderType:     req.OrderType,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respondSale(w, http.StatusOK)
}

func (s *server) handleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		respondError(w, http.StatusBadRequest, "Coupon code is required")
		return
	}

	c, err := s.api.FindCoupon(r.Context(), req.Code)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.sale.ApplyCoupon(*c); err != nil {
		s.fail(w, err)
		return
	}
	s.respondSale(w, http.StatusOK)
}

func (s *server) handleClearCoupon(w http.ResponseWriter, r *http.Request) {
	s.sale.ClearCoupon()
	s.respondSale(w, http.StatusOK)
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.sale.Reset(req.Confirm); err != nil {
		s.fail(w, err)
		return
	}
	s.respondSale(w, http.StatusOK)
}

func (s *server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentMethod string `json:"payment_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.composer.Place(r.Context(), s.sale, req.PaymentMethod)
	if err != nil {
		s.fail(w, err)
		return
	}
	// stock levels changed on the backend
	s.variations.InvalidateAll()
	respondJSON(w, http.StatusCreated, result)
}

func (s *server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if err := s.composer.DismissReceipt(s.sale); err != nil {
		s.fail(w, err)
		return
	}
	s.respondSale(w, http.StatusOK)
}

func (s *server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	variant, err := receipt.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		s.fail(w, err)
		return
	}

	order, err := s.api.GetOrder(r.Context(), pathID(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	slip, err := receipt.Build(order, variant)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, slip)
}

func (s *server) handleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := s.api.CompleteOrder(r.Context(), pathID(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req backend.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Amount != nil && !req.Amount.GreaterThan(decimal.Zero) {
		respondError(w, http.StatusBadRequest, "Refund amount must be positive")
		return
	}
	if err := s.api.RefundOrder(r.Context(), pathID(r, "id"), req); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		respondError(w, http.StatusServiceUnavailable, "Sales journal is not configured")
		return
	}
	cursor := r.URL.Query().Get("cursor")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := s.journal.List(r.Context(), cursor, limit)
	if errors.Is(err, store.ErrInvalidCursor) {
		respondError(w, http.StatusBadRequest, "Invalid cursor")
		return
	}
	if err != nil {
		s.logger.Error("list journal", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to list sales")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// fail maps err onto a status code and the message shown to the cashier.
func (s *server) fail(w http.ResponseWriter, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	respondJSON(w, status, body)
}

func errorResponse(err error) (int, map[string]any) {
	body := map[string]any{"error": err.Error()}

	var orderErr *checkout.OrderError
	if errors.As(err, &orderErr) {
		body["error"] = orderErr.Message
		if orderErr.OrderID != 0 {
			body["order_id"] = orderErr.OrderID
		}
	} else if msg, ok := gateway.ServerMessage(err); ok {
		body["error"] = msg
	}

	if reason, ok := coupon.IsRejected(err); ok {
		body["reason"] = reason
		return http.StatusUnprocessableEntity, body
	}

	switch {
	case errors.Is(err, gateway.ErrAuthExpired):
		body["error"] = gateway.ErrAuthExpired.Error()
		return http.StatusUnauthorized, body
	case errors.Is(err, gateway.ErrUnauthenticated):
		return http.StatusUnauthorized, body
	case errors.Is(err, gateway.ErrNetworkTimeout):
		body["error"] = gateway.ErrNetworkTimeout.Error()
		return http.StatusGatewayTimeout, body
	case errors.Is(err, backend.ErrMalformedResponse):
		return http.StatusBadGateway, body

	case errors.Is(err, cart.ErrOutOfStock),
		errors.Is(err, cart.ErrStockLimitReached),
		errors.Is(err, sale.ErrConfirmationRequired),
		errors.Is(err, checkout.ErrNothingToDismiss):
		return http.StatusConflict, body
	case errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, backend.ErrCouponNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, cart.ErrZeroDelta),
		errors.Is(err, sale.ErrNegativeCharge),
		errors.Is(err, sale.ErrUnknownDiscountKind),
		errors.Is(err, sale.ErrUnknownPayment),
		errors.Is(err, sale.ErrConflictingCustomer),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrPaymentMethodRequired),
		errors.Is(err, backend.ErrInvalidCoupon),
		errors.Is(err, backend.ErrFirstNameRequired),
		errors.Is(err, backend.ErrPhoneRequired),
		errors.Is(err, backend.ErrInvalidEmail),
		errors.Is(err, receipt.ErrUnknownVariant):
		return http.StatusBadRequest, body
	case errors.Is(err, receipt.ErrReceiptDataIncomplete):
		return http.StatusUnprocessableEntity, body
	}

	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized:
			return http.StatusUnauthorized, body
		case http.StatusNotFound:
			return http.StatusNotFound, body
		case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
			return http.StatusUnprocessableEntity, body
		}
		return http.StatusBadGateway, body
	}
	if orderErr != nil {
		return http.StatusBadGateway, body
	}

	body["error"] = "Internal server error"
	return http.StatusInternalServerError, body
}

func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return id
}

func pathIndex(r *http.Request) int {
	index, _ := strconv.Atoi(mux.Vars(r)["index"])
	return index
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketloop/cartengine/api/middleware"
	cartsvc "github.com/marketloop/cartengine/internal/cart"
	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/enums"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
	"github.com/marketloop/cartengine/pkg/logger"
	"github.com/marketloop/cartengine/pkg/types"
)

type stubService struct {
	cart *models.Cart
	err  error

	addVariantID uuid.UUID
	addQuantity  int
	mergeSession types.OwnerRef
	mergeResult  *cartsvc.MergeResult
}

func (s *stubService) GetOrCreate(ctx context.Context, owner types.OwnerRef) (*models.Cart, error) {
	return s.cart, nil
}

func (s *stubService) Get(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef) (*models.Cart, error) {
	return s.cart, s.err
}

func (s *stubService) AddItem(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, variantID uuid.UUID, quantity int) (*models.Cart, error) {
	s.addVariantID = variantID
	s.addQuantity = quantity
	return s.cart, s.err
}

func (s *stubService) UpdateItemQuantity(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	return s.cart, s.err
}

func (s *stubService) RemoveItem(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, itemID uuid.UUID) (*models.Cart, error) {
	return s.cart, s.err
}

func (s *stubService) ApplyPromotionCode(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, code string) (*models.Cart, error) {
	return s.cart, s.err
}

func (s *stubService) RemovePromotionCode(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, code string) (*models.Cart, error) {
	return s.cart, s.err
}

func (s *stubService) MergeGuestCart(ctx context.Context, sourceCartID uuid.UUID, sessionOwner, userOwner types.OwnerRef) (*cartsvc.MergeResult, error) {
	s.mergeSession = sessionOwner
	if s.err != nil {
		return nil, s.err
	}
	if s.mergeResult != nil {
		return s.mergeResult, nil
	}
	return &cartsvc.MergeResult{Cart: s.cart}, nil
}

func (s *stubService) ConvertToOrder(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, orderID uuid.UUID) (*models.Cart, error) {
	return s.cart, s.err
}

func stubCart() *models.Cart {
	return &models.Cart{
		ID:             uuid.New(),
		Status:         enums.CartStatusActive,
		Currency:       enums.CurrencyUSD,
		SubtotalAmount: decimal.NewFromInt(200),
		TaxAmount:      decimal.NewFromInt(17),
		ShippingAmount: decimal.NewFromInt(5),
		GrandTotal:     decimal.NewFromInt(222),
		ExpiresAt:      time.Now().Add(24 * time.Hour),
		Version:        2,
	}
}

func newTestRouter(svc cartsvc.Service) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	r := chi.NewRouter()
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.Owner(logg))
		r.Get("/", Fetch(svc, logg))
		r.Post("/items", AddItem(svc, logg))
		r.Patch("/items/{itemId}", UpdateItem(svc, logg))
		r.Delete("/items/{itemId}", RemoveItem(svc, logg))
		r.Post("/promotions", ApplyPromotion(svc, logg))
		r.Delete("/promotions/{code}", RemovePromotion(svc, logg))
		r.Post("/merge", Merge(svc, logg))
		r.Post("/convert", Convert(svc, logg))
	})
	return r
}

func doJSON(t *testing.T, handler http.Handler, method, path string, headers map[string]string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func sessionHeaders() map[string]string {
	return map[string]string{"X-Session-Id": "sess-1"}
}

func userHeaders(id uuid.UUID) map[string]string {
	return map[string]string{"X-User-Id": id.String()}
}

func TestFetchReturnsCartEnvelope(t *testing.T) {
	t.Parallel()

	svc := &stubService{cart: stubCart()}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/cart/", sessionHeaders(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data CartView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, svc.cart.ID, envelope.Data.ID)
	assert.Equal(t, "active", envelope.Data.Status)
	assert.True(t, envelope.Data.Totals.GrandTotal.Equal(decimal.NewFromInt(222)))
	assert.Equal(t, 2, envelope.Data.Version)
}

func TestAddItemForwardsPayload(t *testing.T) {
	t.Parallel()

	svc := &stubService{cart: stubCart()}
	router := newTestRouter(svc)
	variantID := uuid.New()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", sessionHeaders(),
		AddItemRequest{VariantID: variantID, Quantity: 3})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, variantID, svc.addVariantID)
	assert.Equal(t, 3, svc.addQuantity)
}

func TestAddItemRejectsZeroQuantity(t *testing.T) {
	t.Parallel()

	svc := &stubService{cart: stubCart()}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", sessionHeaders(),
		map[string]any{"variantId": uuid.NewString(), "quantity": 0})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddItemRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	svc := &stubService{cart: stubCart()}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", sessionHeaders(),
		map[string]any{"variantId": uuid.NewString(), "quantity": 1, "color": "red"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddItemMapsInsufficientInventory(t *testing.T) {
	t.Parallel()

	svc := &stubService{
		cart: stubCart(),
		err: pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient inventory for requested quantity").
			WithDetails(map[string]any{"maxAvailable": 1}),
	}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", sessionHeaders(),
		AddItemRequest{VariantID: uuid.New(), Quantity: 3})

	require.Equal(t, http.StatusConflict, rec.Code)
	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "INSUFFICIENT_INVENTORY", envelope.Error.Code)
	assert.NotNil(t, envelope.Error.Details)
}

func TestUpdateItemRejectsMalformedID(t *testing.T) {
	t.Parallel()

	svc := &stubService{cart: stubCart()}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPatch, "/api/v1/cart/items/not-a-uuid", sessionHeaders(),
		UpdateItemRequest{Quantity: 2})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMergeRequiresUserIdentity(t *testing.T) {
	t.Parallel()

	svc := &stubService{cart: stubCart()}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/merge", sessionHeaders(),
		MergeRequest{SourceCartID: uuid.New(), SessionID: "sess-1"})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMergeReportsFailedLines(t *testing.T) {
	t.Parallel()

	failedVariant := uuid.New()
	svc := &stubService{
		cart: stubCart(),
		mergeResult: &cartsvc.MergeResult{
			Cart: stubCart(),
			Failures: []cartsvc.MergeLineFailure{
				{VariantID: failedVariant, Quantity: 4, Reason: cartsvc.MergeFailureQuantityCap},
			},
		},
	}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/merge", userHeaders(uuid.New()),
		MergeRequest{SourceCartID: uuid.New(), SessionID: "sess-1"})

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data MergeView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.FailedLines, 1)
	assert.Equal(t, failedVariant, envelope.Data.FailedLines[0].VariantID)
	assert.Equal(t, "quantity_cap", envelope.Data.FailedLines[0].Reason)
	assert.Equal(t, "session:sess-1", svc.mergeSession.Key())
}

func TestConvertForwardsOrder(t *testing.T) {
	t.Parallel()

	cart := stubCart()
	cart.Status = enums.CartStatusConverted
	svc := &stubService{cart: cart}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cart/convert", sessionHeaders(),
		ConvertRequest{OrderID: uuid.New()})

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data CartView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "converted", envelope.Data.Status)
}

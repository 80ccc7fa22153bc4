package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

type stubCartService struct {
	cart        *cartsvc.Cart
	result      *cartsvc.MutationResult
	err         error
	lastAdd     cartsvc.AddItemInput
	lastQty     int
	lastCode    string
	lastUserID  string
	lastSession string
	cleared     bool
}

func (s *stubCartService) Get(_ context.Context, sessionID string) (*cartsvc.Cart, error) {
	s.lastSession = sessionID
	return s.cart, s.err
}

func (s *stubCartService) AddItem(_ context.Context, input cartsvc.AddItemInput) (*cartsvc.MutationResult, error) {
	s.lastAdd = input
	return s.result, s.err
}

func (s *stubCartService) UpdateQuantity(_ context.Context, sessionID string, _ uuid.UUID, quantity int) (*cartsvc.MutationResult, error) {
	s.lastSession = sessionID
	s.lastQty = quantity
	return s.result, s.err
}

func (s *stubCartService) RemoveItem(_ context.Context, sessionID string, _ uuid.UUID) (*cartsvc.MutationResult, error) {
	s.lastSession = sessionID
	return s.result, s.err
}

func (s *stubCartService) Clear(_ context.Context, sessionID string) error {
	s.lastSession = sessionID
	s.cleared = true
	return s.err
}

func (s *stubCartService) ApplyCoupon(_ context.Context, sessionID, code, userID string) (*cartsvc.MutationResult, error) {
	s.lastSession = sessionID
	s.lastCode = code
	s.lastUserID = userID
	return s.result, s.err
}

func (s *stubCartService) RemoveCoupon(_ context.Context, sessionID string) (*cartsvc.MutationResult, error) {
	s.lastSession = sessionID
	return s.result, s.err
}

func testPricing() pricing.Config {
	return pricing.Config{
		VATRatePercent:    decimal.NewFromInt(10),
		ShippingThreshold: decimal.NewFromInt(5000),
		FlatShippingFee:   decimal.NewFromInt(100),
	}
}

func sampleCart() *cartsvc.Cart {
	c := cartsvc.New("sess-1")
	c.Version = 3
	c.Items = []cartsvc.Item{{
		LineID:    uuid.New(),
		ProductID: uuid.New(),
		Name:      "Cotton Kurta",
		Quantity:  2,
		Price:     pricing.PriceSnapshot{RegularPrice: decimal.NewFromInt(2400)},
	}}
	return c
}

func sessionRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := middleware.WithSessionID(req.Context(), "sess-1")
	return req.WithContext(ctx)
}

func withLineParam(req *http.Request, lineID string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("lineId", lineID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func decodeCart(t *testing.T, resp *httptest.ResponseRecorder) cartResponse {
	t.Helper()
	var envelope struct {
		Data cartResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope.Data
}

func TestCartFetchRendersRoundedTotals(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	resp := httptest.NewRecorder()
	CartFetch(svc, testPricing(), nil).ServeHTTP(resp, sessionRequest(http.MethodGet, "/api/v1/cart", ""))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastSession != "sess-1" {
		t.Fatalf("expected session from context, got %q", svc.lastSession)
	}
	body := decodeCart(t, resp)
	if body.Totals.Subtotal != "4800.00" || body.Totals.Shipping != "100.00" || body.Totals.VAT != "480.00" || body.Totals.Total != "5380.00" {
		t.Fatalf("unexpected totals %+v", body.Totals)
	}
	if body.ItemCount != 2 || body.Items[0].LineTotal != "4800.00" {
		t.Fatalf("unexpected items %+v", body.Items)
	}
}

func TestCartAddItemSurfacesStockError(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "Only 3 units available").
		WithDetails(map[string]any{"available": 3})}
	productID := uuid.New()
	body := `{"productId":"` + productID.String() + `","quantity":5}`

	resp := httptest.NewRecorder()
	CartAddItem(svc, testPricing(), nil).ServeHTTP(resp, sessionRequest(http.MethodPost, "/api/v1/cart/items", body))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if svc.lastAdd.ProductID != productID || svc.lastAdd.Quantity != 5 || svc.lastAdd.SessionID != "sess-1" {
		t.Fatalf("unexpected add input %+v", svc.lastAdd)
	}
	if !strings.Contains(resp.Body.String(), "Only 3 units available") {
		t.Fatalf("expected stock message in body, got %s", resp.Body.String())
	}
}

func TestCartAddItemRejectsBadPayload(t *testing.T) {
	svc := &stubCartService{}
	resp := httptest.NewRecorder()
	CartAddItem(svc, testPricing(), nil).ServeHTTP(resp, sessionRequest(http.MethodPost, "/api/v1/cart/items", `{"quantity":0}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartUpdateQuantityAllowsZero(t *testing.T) {
	svc := &stubCartService{result: &cartsvc.MutationResult{Cart: cartsvc.New("sess-1")}}
	req := withLineParam(sessionRequest(http.MethodPatch, "/api/v1/cart/items/x", `{"quantity":0}`), uuid.NewString())

	resp := httptest.NewRecorder()
	CartUpdateQuantity(svc, testPricing(), nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastQty != 0 {
		t.Fatalf("expected quantity 0 forwarded, got %d", svc.lastQty)
	}
}

func TestCartUpdateQuantityRequiresUUID(t *testing.T) {
	svc := &stubCartService{}
	req := withLineParam(sessionRequest(http.MethodPatch, "/api/v1/cart/items/nope", `{"quantity":1}`), "nope")

	resp := httptest.NewRecorder()
	CartUpdateQuantity(svc, testPricing(), nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartRemoveItemNotFound(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")}
	req := withLineParam(sessionRequest(http.MethodDelete, "/api/v1/cart/items/x", ""), uuid.NewString())

	resp := httptest.NewRecorder()
	CartRemoveItem(svc, testPricing(), nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestCartClear(t *testing.T) {
	svc := &stubCartService{}
	resp := httptest.NewRecorder()
	CartClear(svc, nil).ServeHTTP(resp, sessionRequest(http.MethodDelete, "/api/v1/cart", ""))

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if !svc.cleared {
		t.Fatalf("expected cart cleared")
	}
}

func TestCartApplyCouponForwardsUser(t *testing.T) {
	c := sampleCart()
	maxDiscount := decimal.NewFromInt(300)
	c.AppliedCoupon = &pricing.AppliedCoupon{
		Code:              "SAVE10",
		DiscountType:      enums.DiscountTypePercent,
		DiscountValue:     decimal.NewFromInt(10),
		MaxDiscountAmount: &maxDiscount,
	}
	svc := &stubCartService{result: &cartsvc.MutationResult{Cart: c}}

	req := sessionRequest(http.MethodPost, "/api/v1/cart/coupon", `{"code":"  save10 "}`)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-9"))
	resp := httptest.NewRecorder()
	CartApplyCoupon(svc, testPricing(), nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastCode != "save10" || svc.lastUserID != "user-9" {
		t.Fatalf("unexpected coupon call code=%q user=%q", svc.lastCode, svc.lastUserID)
	}
	body := decodeCart(t, resp)
	if body.AppliedCoupon == nil || body.AppliedCoupon.DiscountAmount != "300.00" {
		t.Fatalf("expected capped discount 300.00, got %+v", body.AppliedCoupon)
	}
	if body.Totals.Total != "5050.00" {
		t.Fatalf("expected total 5050.00 got %s", body.Totals.Total)
	}
}

func TestCartApplyCouponRejected(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeCouponRejected, "coupon has expired").
		WithDetails(map[string]any{"code": "EXPIRED10", "reason": "expired"})}

	resp := httptest.NewRecorder()
	CartApplyCoupon(svc, testPricing(), nil).ServeHTTP(resp, sessionRequest(http.MethodPost, "/api/v1/cart/coupon", `{"code":"EXPIRED10"}`))

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"reason":"expired"`) {
		t.Fatalf("expected reason in body, got %s", resp.Body.String())
	}
}

func TestCartMutationReportsCouponRemoval(t *testing.T) {
	removed := &pricing.CouponRemoval{Code: "SAVE10", Reason: enums.CouponRejectionReasonBelowMinimum}
	svc := &stubCartService{result: &cartsvc.MutationResult{Cart: sampleCart(), CouponRemoved: removed}}

	resp := httptest.NewRecorder()
	CartRemoveCoupon(svc, testPricing(), nil).ServeHTTP(resp, sessionRequest(http.MethodDelete, "/api/v1/cart/coupon", ""))

	body := decodeCart(t, resp)
	if body.CouponRemoved == nil || body.CouponRemoved.Reason != enums.CouponRejectionReasonBelowMinimum {
		t.Fatalf("expected coupon removal in response, got %+v", body.CouponRemoved)
	}
}

type stubWatcher struct {
	events chan cartsvc.Event
	err    error
}

func (s *stubWatcher) Watch(context.Context, string) (<-chan cartsvc.Event, error) {
	return s.events, s.err
}

func TestCartEventsStreamsUntilChannelCloses(t *testing.T) {
	watcher := &stubWatcher{events: make(chan cartsvc.Event, 2)}
	watcher.events <- cartsvc.Event{Type: enums.CartEventUpdated, SessionID: "sess-1", Version: 4}
	watcher.events <- cartsvc.Event{Type: enums.CartEventCleared, SessionID: "sess-1"}
	close(watcher.events)

	resp := httptest.NewRecorder()
	CartEvents(watcher, nil).ServeHTTP(resp, sessionRequest(http.MethodGet, "/api/v1/cart/events", ""))

	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	out := resp.Body.String()
	if !strings.Contains(out, "event: cart.updated\n") || !strings.Contains(out, "event: cart.cleared\n") {
		t.Fatalf("expected both events in stream, got %q", out)
	}
}

func TestCartEventsRequiresSession(t *testing.T) {
	resp := httptest.NewRecorder()
	CartEvents(&stubWatcher{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart/events", nil))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

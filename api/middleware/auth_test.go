package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/auth"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "storefront"}

type capturedIdentity struct {
	session string
	user    string
	role    string
}

func identityHandler(captured *capturedIdentity) http.Handler {
	return Session(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.session = SessionIDFromContext(r.Context())
		captured.user = UserIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
}

func mintTestToken(t *testing.T, payload auth.SessionTokenPayload) string {
	t.Helper()
	token, err := auth.MintSessionToken(testJWT, time.Now(), time.Hour, payload)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestSessionRejectsMissingToken(t *testing.T) {
	var captured capturedIdentity
	resp := httptest.NewRecorder()
	identityHandler(&captured).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestSessionRejectsInvalidToken(t *testing.T) {
	var captured capturedIdentity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	identityHandler(&captured).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestSessionSeedsGuestContext(t *testing.T) {
	var captured capturedIdentity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, auth.SessionTokenPayload{SessionID: "sess-guest"}))
	resp := httptest.NewRecorder()
	identityHandler(&captured).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.session != "sess-guest" {
		t.Fatalf("expected session sess-guest got %q", captured.session)
	}
	if captured.user != "" {
		t.Fatalf("guest session should carry no user, got %q", captured.user)
	}
}

func TestSessionSeedsSignedInContext(t *testing.T) {
	var captured capturedIdentity
	uid := "user-42"
	token := mintTestToken(t, auth.SessionTokenPayload{SessionID: "sess-1", UserID: &uid, Role: auth.RoleAdmin})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	identityHandler(&captured).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != uid {
		t.Fatalf("expected user %s got %q", uid, captured.user)
	}
	if captured.role != auth.RoleAdmin {
		t.Fatalf("expected admin role got %q", captured.role)
	}
}

func TestSessionAcceptsQueryTokenForEventStreams(t *testing.T) {
	var captured capturedIdentity
	token := mintTestToken(t, auth.SessionTokenPayload{SessionID: "sess-sse"})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/events?access_token="+token, nil)
	resp := httptest.NewRecorder()
	identityHandler(&captured).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || captured.session != "sess-sse" {
		t.Fatalf("expected query token to authenticate, status %d session %q", resp.Code, captured.session)
	}
}

func TestRequireRoleForbidsShoppers(t *testing.T) {
	handler := RequireRole(auth.RoleAdmin, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPatch, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}

	req = req.WithContext(WithRole(req.Context(), auth.RoleAdmin))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
)

func TestMintAndValidate(t *testing.T) {
	auth, err := NewAuthenticator([]byte("secret"), "citadel", time.Minute)
	if err != nil {
		t.Fatalf("NewAuthenticator failed: %v", err)
	}
	token, expires, err := auth.Mint("operator", 0)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if time.Until(expires) > time.Minute || time.Until(expires) < 50*time.Second {
		t.Fatalf("unexpected expiry %v", expires)
	}
	claims, err := auth.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.Subject != "operator" || claims.Issuer != "citadel" || claims.ID == "" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestNewAuthenticatorValidation(t *testing.T) {
	if _, err := NewAuthenticator(nil, "citadel", 0); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewAuthenticator([]byte("s"), "  ", 0); err == nil {
		t.Fatal("expected error for empty issuer")
	}
	auth, _ := NewAuthenticator([]byte("s"), "citadel", 0)
	if _, _, err := auth.Mint(" ", 0); err == nil {
		t.Fatal("expected error for empty subject")
	}
}

func TestValidateRejectsBadTokens(t *testing.T) {
	auth, _ := NewAuthenticator([]byte("secret"), "citadel", time.Minute)
	other, _ := NewAuthenticator([]byte("other-secret"), "citadel", time.Minute)
	foreign, _ := NewAuthenticator([]byte("secret"), "someone-else", time.Minute)

	wrongKey, _, _ := other.Mint("operator", 0)
	wrongIssuer, _, _ := foreign.Mint("operator", 0)

	past, _ := NewAuthenticator([]byte("secret"), "citadel", time.Minute)
	past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, _ := past.Mint("operator", time.Minute)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"iss": "citadel",
		"sub": "operator",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"alg none":     none,
	}
	for name, token := range cases {
		if _, err := auth.Validate(token); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestServerRequiresBearerWhenConfigured(t *testing.T) {
	auth, _ := NewAuthenticator([]byte("secret"), "citadel", time.Minute)
	h := newTestServer(t, func(cfg *Config) { cfg.Auth = auth }).Handler()
	body := `{"mode":"hill","text":"help","key":"3 5 2 7"}`

	rec := do(t, h, http.MethodPost, "/api/v1/encrypt", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d", rec.Code)
	}
	if gjson.Get(rec.Body.String(), "code").String() != "Unauthorized" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/api/v1/encrypt", body, "Authorization", "Bearer nope")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status with bad token = %d", rec.Code)
	}

	token, _, err := auth.Mint("operator", 0)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	rec = do(t, h, http.MethodPost, "/api/v1/encrypt", body, "Authorization", "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with token = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.EqualFold(gjson.Get(rec.Body.String(), "result").String(), "PQEX") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	if rec := do(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz should not require auth, got %d", rec.Code)
	}
}

package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/indivisible/internal/auth"
	"github.com/dukerupert/indivisible/internal/database"
	"github.com/dukerupert/indivisible/internal/store"
)

const testSecret = "test-secret"

func setupAuthMiddlewareDB(t *testing.T) (*store.ProfileStore, *store.HouseholdStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewProfileStore(db), store.NewHouseholdStore(db)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signed(t *testing.T, c Claims, secret string) string {
	t.Helper()
	token, err := SignToken(c, secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func subject(id string) Claims {
	return Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   id,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
}

func TestRequireAuthRejects(t *testing.T) {
	ps, _ := setupAuthMiddlewareDB(t)
	handler := RequireAuth(testSecret, ps, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	expired := subject("u1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not-a-token"},
		{"wrong secret", "Bearer " + signed(t, subject("u1"), "other")},
		{"expired", "Bearer " + signed(t, expired, testSecret)},
		{"no subject", "Bearer " + signed(t, Claims{}, testSecret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestRequireAuthRejectsOtherAlgorithms(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, subject("u1")).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseToken(token, testSecret); err == nil {
		t.Error("HS512 token accepted")
	}
	if _, err := ParseToken(signed(t, subject("u1"), testSecret), ""); err == nil {
		t.Error("token accepted without a configured secret")
	}
}

func TestRequireAuthProvisionsProfile(t *testing.T) {
	ps, _ := setupAuthMiddlewareDB(t)

	var got auth.AuthContext
	handler := RequireAuth(testSecret, ps, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
	}))

	c := subject("7f1c0b8e-0000-4000-8000-000000000001")
	c.Email = "sam@example.com"
	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, c, testSecret))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got.UserID != c.Subject || got.DisplayName != "sam" || got.HouseholdID != "" {
		t.Errorf("auth context = %+v", got)
	}
	p, err := ps.GetByID(context.Background(), c.Subject)
	if err != nil || p == nil {
		t.Fatalf("profile not created: %v", err)
	}
	if p.Email != "sam@example.com" {
		t.Errorf("email = %q", p.Email)
	}
}

func TestRequireAuthExistingMember(t *testing.T) {
	ps, hs := setupAuthMiddlewareDB(t)
	ctx := context.Background()
	h, err := hs.Create(ctx, "Casa")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	p, err := ps.Create(ctx, "", "alex@example.com", "Alex")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if _, err := ps.SetHousehold(ctx, p.ID, &h.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	var got auth.AuthContext
	handler := RequireAuth(testSecret, ps, testLogger())(RequireHousehold(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
	})))

	req := httptest.NewRequest("GET", "/api/lists", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, subject(p.ID), testSecret))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got.HouseholdID != h.ID || got.DisplayName != "Alex" {
		t.Errorf("auth context = %+v", got)
	}
}

func TestRequireHouseholdForbidden(t *testing.T) {
	handler := RequireHousehold(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	req := httptest.NewRequest("GET", "/api/lists", nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: "u1"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequireAuthWebSocketQueryToken(t *testing.T) {
	ps, _ := setupAuthMiddlewareDB(t)
	reached := false
	handler := RequireAuth(testSecret, ps, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest("GET", "/ws?access_token="+signed(t, subject("u-ws"), testSecret), nil)
	req.Header.Set("Upgrade", "websocket")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if !reached {
		t.Error("query token not accepted on upgrade request")
	}
}

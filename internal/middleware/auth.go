package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/indivisible/internal/auth"
	"github.com/dukerupert/indivisible/internal/model"
	"github.com/dukerupert/indivisible/internal/store"
)

// Claims is the token payload issued by the identity provider. Subject is the
// profile id; Email and Name seed the profile on first sight.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// ParseToken validates an HS256 token and returns its claims.
func ParseToken(token, secret string) (*Claims, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("subject claim required")
	}
	return claims, nil
}

// SignToken issues an HS256 token for a profile. Used by the CLI and tests.
func SignToken(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1], true
	}
	// Browsers cannot set headers on WebSocket upgrades.
	if t := r.URL.Query().Get("access_token"); t != "" && r.Header.Get("Upgrade") != "" {
		return t, true
	}
	return "", false
}

// RequireAuth validates the bearer token and populates AuthContext from the
// member's profile. A profile is created for subjects seen for the first time.
func RequireAuth(secret string, profiles *store.ProfileStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "authentication required")
				return
			}
			claims, err := ParseToken(token, secret)
			if err != nil {
				unauthorized(w, "invalid credentials")
				return
			}

			p, err := profiles.GetByID(r.Context(), claims.Subject)
			if err == nil && p == nil {
				p, err = profiles.Create(r.Context(), claims.Subject, claims.Email, displayName(claims))
				if err == nil {
					logger.Info("profile provisioned", "user_id", p.ID)
				}
			}
			if err != nil {
				logger.Error("resolve profile", "user_id", claims.Subject, "error", err)
				writeError(w, http.StatusInternalServerError, "failed to resolve profile")
				return
			}

			ac := auth.AuthContext{UserID: p.ID, DisplayName: p.DisplayName}
			if p.HouseholdID != nil {
				ac.HouseholdID = *p.HouseholdID
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireHousehold rejects members who have not created or joined a
// household yet.
func RequireHousehold(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.InHousehold(r.Context()) {
			writeError(w, http.StatusForbidden, "join a household first")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func displayName(c *Claims) string {
	if c.Name != "" {
		return c.Name
	}
	if i := strings.IndexByte(c.Email, '@'); i > 0 {
		return c.Email[:i]
	}
	return model.DefaultDisplayName
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

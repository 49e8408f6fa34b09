/*
auth.go - JWT session tokens and authentication middleware

PURPOSE:
  Issues and verifies signed bearer tokens so handlers can trust the
  account id on the request without a database hit. Admin-only routes
  additionally check the is_admin claim against the live account row,
  so revoking admin takes effect on the next request, not at token
  expiry.

SEE ALSO:
  - server.go: Where the middleware is mounted
  - handlers.go: Handlers reading the authenticated account id
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const accountIDKey ctxKey = iota

// Claims is the JWT payload for a logged-in session.
type Claims struct {
	AccountID int64 `json:"account_id"`
	IsAdmin   bool  `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
}

func NewTokenIssuer(secret string, expiry time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), expiry: expiry}
}

// Generate returns a signed token for the account.
func (t *TokenIssuer) Generate(accountID int64, isAdmin bool) (string, error) {
	now := time.Now()
	claims := Claims{
		AccountID: accountID,
		IsAdmin:   isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse verifies the token signature and expiry and returns its claims.
func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// RequireAuth rejects requests without a valid bearer token and stores
// the account id in the request context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := h.bearerClaims(w, r)
		if !ok {
			return
		}
		ctx := context.WithValue(r.Context(), accountIDKey, claims.AccountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin is RequireAuth plus a live is_admin check.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := h.bearerClaims(w, r)
		if !ok {
			return
		}
		acct, err := h.Store.Account(r.Context(), claims.AccountID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to verify account", err)
			return
		}
		if acct == nil || !acct.IsAdmin {
			writeError(w, http.StatusForbidden, "Admin access required", nil)
			return
		}
		ctx := context.WithValue(r.Context(), accountIDKey, claims.AccountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) bearerClaims(w http.ResponseWriter, r *http.Request) (*Claims, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
		return nil, false
	}
	claims, err := h.Tokens.Parse(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
		return nil, false
	}
	return claims, true
}

// authedAccountID returns the account id placed in the context by
// RequireAuth. Panics if called from an unauthenticated route.
func authedAccountID(ctx context.Context) int64 {
	return ctx.Value(accountIDKey).(int64)
}

package handlers

import (
	"context"
	"net/http"

	"github.com/bookwell/bookwell/libs/auth"
	"github.com/bookwell/bookwell/libs/httpx"
)

type contextKey string

const claimsKey contextKey = "business-claims"

// RequireBusiness verifies the HS256 bearer token issued by the platform's
// auth service and stashes its claims. Routes behind it are business-scoped:
// handlers must read the business id from the claims, never from the request.
func RequireBusiness(secret string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			claims, err := auth.ParseAndVerifyHS256(token, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if claims.BusinessID == "" {
				writeError(w, http.StatusForbidden, "token has no business scope")
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, *claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BusinessClaims returns the verified claims put there by RequireBusiness.
func BusinessClaims(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(auth.Claims)
	return claims, ok
}

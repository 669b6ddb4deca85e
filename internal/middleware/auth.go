package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"aquasim-server/internal/auth"
	"aquasim-server/internal/shared/errors"
	"aquasim-server/internal/shared/response"
)

type contextKey string

const OperatorContextKey contextKey = "operator"

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// JWTMiddleware authenticates "Authorization: Bearer <token>" against secret
func JWTMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := slog.With(
				"middleware", "jwt",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			logger.Debug("Processing JWT authentication")

			if secret == "" {
				response.Error(w, r, logger, errors.Forbidden("operator authentication is not configured"))
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				response.Error(w, r, logger, errors.Unauthorized("authentication required"))
				return
			}

			claims, err := auth.ValidateToken(secret, token)
			if err != nil {
				response.Error(w, r, logger, errors.Unauthorized("invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), OperatorContextKey, claims)
			logger.Debug("JWT authentication successful", "operator", claims.Operator)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetOperatorFromContext(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(OperatorContextKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

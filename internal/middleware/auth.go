package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/hongminglow/istc-be/internal/auth"
	"github.com/hongminglow/istc-be/internal/http/respond"
)

type claimsKey struct{}

// TokenParser verifies session tokens.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// RevocationChecker reports whether a token id was invalidated by logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// WithClaims returns a copy of ctx carrying the authenticated principal.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFrom returns the principal stored by Authenticate.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims, ok && claims != nil
}

// tokenRejection is the response Authenticate sends for a failed credential.
type tokenRejection struct {
	status  int
	message string
}

// bearerClaims verifies the Authorization header of r. A nil rejection means claims
// is a live, unrevoked principal.
func bearerClaims(r *http.Request, tokens TokenParser, revoked RevocationChecker, logger *slog.Logger) (*auth.Claims, *tokenRejection) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, &tokenRejection{http.StatusUnauthorized, "access denied. no token provided"}
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, &tokenRejection{http.StatusUnauthorized, "invalid authorization header format"}
	}
	token = strings.TrimSpace(token)
	if token == "" || token == "null" || token == "undefined" {
		return nil, &tokenRejection{http.StatusUnauthorized, "access denied. no token provided"}
	}

	claims, err := tokens.Parse(token)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrTokenMalformed):
		return nil, &tokenRejection{http.StatusBadRequest, "malformed token"}
	case errors.Is(err, auth.ErrTokenExpired):
		return nil, &tokenRejection{http.StatusUnauthorized, "token expired"}
	default:
		logger.DebugContext(r.Context(), "token rejected", "error", err)
		return nil, &tokenRejection{http.StatusUnauthorized, "invalid token"}
	}

	if revoked != nil {
		isRevoked, err := revoked.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			logger.ErrorContext(r.Context(), "revocation check failed", "error", err)
			return nil, &tokenRejection{http.StatusInternalServerError, "internal server error"}
		}
		if isRevoked {
			return nil, &tokenRejection{http.StatusUnauthorized, "token has been revoked"}
		}
	}
	return claims, nil
}

// Authenticate requires a valid "Authorization: Bearer <token>" header. A structurally
// broken token is a 400; anything else that fails verification is a 401.
func Authenticate(tokens TokenParser, revoked RevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, rejection := bearerClaims(r, tokens, revoked, logger)
			if rejection != nil {
				respond.Error(w, rejection.status, rejection.message)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuthenticate attaches the principal when the request carries a valid token.
// Requests without one, or with a token that fails verification, continue anonymously.
func OptionalAuthenticate(tokens TokenParser, revoked RevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, rejection := bearerClaims(r, tokens, revoked, logger)
			if rejection != nil {
				logger.DebugContext(r.Context(), "continuing without principal", "reason", rejection.message)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRoles admits principals whose role is in roles. With no roles any
// authenticated principal passes.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r.Context())
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
				respond.Error(w, http.StatusForbidden, "access forbidden: insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Chain applies middlewares so the first one listed runs outermost.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

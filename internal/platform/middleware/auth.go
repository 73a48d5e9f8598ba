package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"qualitrack/pkg/domain"
	dErrors "qualitrack/pkg/domain-errors"
	"qualitrack/pkg/platform/httputil"
	"qualitrack/pkg/requestcontext"
)

// JWTValidator defines the interface for validating bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	UserID string
	Role   string
}

// PrincipalDirectory resolves a validated user id into a full principal
// (role and department membership included). The auth middleware consults it
// on every request so department renames and role changes take effect without
// re-issuing tokens.
type PrincipalDirectory interface {
	LookupPrincipal(ctx context.Context, userID domain.UserID) (domain.Principal, error)
}

// RequireAuth validates the bearer token, resolves the principal, and injects
// it into the request context. Requests without a valid principal get 401.
func RequireAuth(validator JWTValidator, directory PrincipalDirectory, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			userID, err := domain.ParseUserID(claims.UserID)
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject"))
				return
			}

			principal, err := directory.LookupPrincipal(ctx, userID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - unknown principal",
					"user_id", claims.UserID,
					"request_id", GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "unknown principal"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(ctx, principal)))
		})
	}
}

// RequireRole gates a subtree to principals holding one of the given roles.
// Must run after RequireAuth.
func RequireRole(logger *slog.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, ok := requestcontext.Principal(ctx)
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			for _, role := range roles {
				if principal.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			logger.WarnContext(ctx, "role check failed",
				"user_id", principal.UserID.String(),
				"role", string(principal.Role),
				"request_id", GetRequestID(ctx),
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient role"))
		})
	}
}

// Package admin guards the operational endpoints (cache warming and
// invalidation) behind a signed bearer token carrying the admin role.
package admin

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	dErrors "examgate/pkg/domain-errors"
	"examgate/pkg/platform/httputil"
	"examgate/pkg/requestcontext"
)

// RoleAdmin is the role claim value required on operational endpoints.
const RoleAdmin = "admin"

// Claims are the token claims for operational access.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RequireAdmin rejects requests whose bearer token is missing, invalid, or
// lacks the admin role. Tokens are HMAC-signed with the given key.
func RequireAdmin(signingKey []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := bearerToken(r)
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "bearer token required"))
				return
			}

			claims, err := parseClaims(raw, signingKey)
			if err != nil {
				logger.WarnContext(ctx, "admin token rejected",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}

			if claims.Role != RoleAdmin {
				logger.WarnContext(ctx, "admin role missing",
					"request_id", requestcontext.RequestID(ctx),
					"role", claims.Role,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

func parseClaims(raw string, signingKey []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return signingKey, nil
	})
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

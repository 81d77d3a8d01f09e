package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/resolveit/grievance-platform/internal/identity"
	"github.com/resolveit/grievance-platform/internal/shared/config"
	"github.com/resolveit/grievance-platform/internal/shared/types"
)

type contextKey string

const actorContextKey contextKey = "actor"

// Claims extends JWT claims with platform-specific data
type Claims struct {
	jwt.RegisteredClaims
	Username     string `json:"username"`
	Role         string `json:"role"`
	OfficerLevel string `json:"officer_level,omitempty"`
}

// Middleware creates JWT authentication middleware. On success the acting
// identity is stored in the request context; handlers resolve it with
// GetActor and pass it explicitly into the lifecycle.
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			actor := identity.Actor{
				ID:           types.ID(claims.Subject),
				Username:     claims.Username,
				Role:         identity.Role(claims.Role),
				OfficerLevel: identity.OfficerLevel(claims.OfficerLevel),
			}

			ctx := context.WithValue(r.Context(), actorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole restricts a route subtree to the given roles
func RequireRole(roles ...identity.Role) func(http.Handler) http.Handler {
	allowed := make(map[identity.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := GetActor(r.Context())
			if actor.IsSystem() || !allowed[actor.Role] {
				writeError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetActor returns the acting identity from the context, or the zero Actor
func GetActor(ctx context.Context) identity.Actor {
	actor, _ := ctx.Value(actorContextKey).(identity.Actor)
	return actor
}

// WithActor stores an acting identity in the context (used in tests)
func WithActor(ctx context.Context, actor identity.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// IssueToken creates a signed JWT for a user. Used by the dev token
// endpoint; production deployments front the API with an identity provider.
func IssueToken(cfg config.AuthConfig, user *identity.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username:     user.Username,
		Role:         string(user.Role),
		OfficerLevel: string(user.OfficerLevel),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

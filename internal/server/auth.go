package server

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"stowplan/internal/logging"
	"stowplan/internal/planner"
)

// AuthConfig enables bearer JWT auth when JWTSecret is set. Without a
// secret every request is accepted and X-Actor-Id names the actor.
type AuthConfig struct {
	JWTSecret string
}

func (c AuthConfig) Enabled() bool { return strings.TrimSpace(c.JWTSecret) != "" }

type Principal struct {
	ActorID string
	Roles   []string
	Source  string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey{}, p)
	return planner.WithActor(ctx, p.ActorID)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

func authenticateJWT(token string, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("subject claim required")
	}
	return Principal{ActorID: claims.Subject, Roles: claims.Roles, Source: "jwt"}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(basePath string, cfg AuthConfig, log logging.Logger) func(http.Handler) http.Handler {
	healthPath := path.Join(basePath, "health")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// only the API tree is guarded
			if !strings.HasPrefix(req.URL.Path, basePath) || req.URL.Path == healthPath {
				next.ServeHTTP(w, req)
				return
			}
			if !cfg.Enabled() {
				if actor := strings.TrimSpace(req.Header.Get("X-Actor-Id")); actor != "" {
					req = req.WithContext(withPrincipal(req.Context(), Principal{ActorID: actor, Source: "header"}))
				}
				next.ServeHTTP(w, req)
				return
			}

			token, ok := bearerToken(strings.TrimSpace(req.Header.Get("Authorization")))
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			principal, err := authenticateJWT(token, cfg.JWTSecret)
			if err != nil {
				log.Warn(req.Context(), "rejected bearer token", logging.Err(err))
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
		})
	}
}

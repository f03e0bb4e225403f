package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gespadel/gespadel/services"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v4"
)

var ErrNoIdentity = errors.New("identity not found in context")

func GetIdentityFromContext(ctx context.Context) (services.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(services.Identity)
	if !ok {
		return services.Identity{}, ErrNoIdentity
	}
	return identity, nil
}

// WithIdentity stores identity in ctx the way Authenticate does.
func WithIdentity(ctx context.Context, identity services.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func identityFromClaims(claims jwt.MapClaims) (services.Identity, error) {
	sub, err := stringClaim(claims, jwtClaimSubject)
	if err != nil {
		return services.Identity{}, err
	}
	if sub == "" {
		return services.Identity{}, fmt.Errorf("missing '%s' claim in token", jwtClaimSubject)
	}

	identity := services.Identity{ID: sub}
	if identity.Name, err = stringClaim(claims, jwtClaimName); err != nil {
		return services.Identity{}, err
	}
	if identity.Email, err = stringClaim(claims, jwtClaimEmail); err != nil {
		return services.Identity{}, err
	}
	phone, err := stringClaim(claims, jwtClaimPhone)
	if err != nil {
		return services.Identity{}, err
	}
	if phone != "" {
		identity.Phone = &phone
	}
	return identity, nil
}

func stringClaim(claims jwt.MapClaims, name string) (string, error) {
	raw, ok := claims[name]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("invalid type for '%s' claim: expected string, got %T", name, raw)
	}
	return s, nil
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="gespadel"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized: " + err.Error()})
}

// RequestLogger logs one line per request through slog.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.InfoContext(r.Context(), "http request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
					slog.String("request_id", chimw.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

package transport

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lunahq/posada/internal/config"
	"github.com/lunahq/posada/model"
)

// Authenticator verifies bearer tokens issued by the reservation backend and
// places their claims in the request context.
type Authenticator struct {
	secret    []byte
	issuer    string
	audience  string
	roleClaim string
}

// NewAuthenticator creates an Authenticator from identity configuration. The
// HMAC secret is read from the configured environment variable; an empty
// secret disables verification and is rejected.
func NewAuthenticator(cfg config.IdentityConfig) (*Authenticator, error) {
	secret := os.Getenv(cfg.SecretEnv)
	if secret == "" {
		return nil, fmt.Errorf("auth: environment variable %s is not set", cfg.SecretEnv)
	}
	return &Authenticator{
		secret:    []byte(secret),
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		roleClaim: cfg.RoleClaim,
	}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// verified claims in the context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			WriteError(w, model.NewUnauthorizedError("missing bearer token"))
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims, err := a.verify(raw)
		if err != nil {
			WriteError(w, model.NewUnauthorizedError("invalid bearer token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (a *Authenticator) verify(raw string) (map[string]any, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return map[string]any(claims), nil
}

// RequireAdmin rejects requests whose subject does not hold the administrator
// role. Must run after BuildRequestContext.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if !rctx.IsAdmin() {
			WriteForbidden(w, "administrator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

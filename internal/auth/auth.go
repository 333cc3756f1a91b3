// Package auth guards the API with Google identity tokens.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/idtoken"

	"dompet/internal/log"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid identity token")
)

// Validator checks an ID token against an audience.
type Validator interface {
	Validate(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

func (f ValidatorFunc) Validate(ctx context.Context, token, audience string) (*idtoken.Payload, error) {
	return f(ctx, token, audience)
}

// GoogleValidator verifies tokens against Google's published certificates.
func GoogleValidator() Validator {
	return ValidatorFunc(idtoken.Validate)
}

// Identity is the authenticated caller.
type Identity struct {
	Subject string
	Email   string
}

type contextKey struct{}

func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Middleware requires a valid Google ID token issued for audience. The
// token is read from the Authorization header, or from the token query
// parameter for clients that cannot set headers (EventSource). An empty
// audience disables the check.
func Middleware(v Validator, audience string, logger *log.Logger) func(http.Handler) http.Handler {
	logger = logger.WithComponent(log.ComponentAuth)
	return func(next http.Handler) http.Handler {
		if audience == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, ErrMissingToken)
				return
			}

			payload, err := v.Validate(r.Context(), token, audience)
			if err != nil {
				logger.WarnContext(r.Context(), "Identity token rejected",
					log.FieldPath, r.URL.Path,
					log.FieldError, err)
				unauthorized(w, ErrInvalidToken)
				return
			}

			id := Identity{Subject: payload.Subject}
			if email, ok := payload.Claims["email"].(string); ok {
				id.Email = email
			}
			reqLogger := log.FromContext(r.Context()).With(log.FieldSubject, id.Subject)
			ctx := log.NewContext(NewContext(r.Context(), id), reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="dompet"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + err.Error() + `"}`))
}

package http

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/artpar/schemagate/adapters/auth"
	"github.com/artpar/schemagate/pkg/jsonapi"
)

type ctxKey string

const ctxSubjectKey ctxKey = "subject"

// Subject returns the token subject of an authenticated request.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(ctxSubjectKey).(string)
	return s
}

// RequireRole rejects requests without a valid bearer token carrying role.
// A nil token service rejects every request.
func RequireRole(tokens *auth.TokenService, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="schemagate"`)
				writeJSONError(w, r, jsonapi.ErrUnauthorized("Bearer token required"))
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeJSONError(w, r, jsonapi.ErrBadRequest("Authorization must use the Bearer scheme"))
				return
			}

			if tokens == nil {
				writeJSONError(w, r, jsonapi.ErrUnauthorized("Token authentication is not configured"))
				return
			}

			claims, err := tokens.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="schemagate", error="invalid_token"`)
				writeJSONError(w, r, jsonapi.ErrUnauthorized("Invalid or expired token"))
				return
			}

			if claims.Role != role {
				writeJSONError(w, r, jsonapi.ErrForbidden("").Meta("required_role", role))
				return
			}

			ctx := context.WithValue(r.Context(), ctxSubjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRecoverMiddleware turns handler panics into JSON:API 500 responses.
func NewRecoverMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("path", r.URL.Path).
					Msg("handler panic")

				if r.Header.Get("Connection") != "Upgrade" {
					writeJSONError(w, r, jsonapi.ErrInternal(""))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/grocery-pos/internal/common"
)

// Middleware authenticates requests with actor tokens.
type Middleware struct {
	Tokens *Tokens
}

// RequireAuth rejects requests without a valid bearer token and stores the
// actor on the request context otherwise.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Tokens == nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "authentication not configured", nil)
			return
		}
		token := bearer(r)
		if token == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		actor, err := m.Tokens.Parse(token)
		if err != nil {
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithActor(r.Context(), actor)))
	})
}

// RequirePermission answers 403 unless the authenticated actor holds perm.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := common.ActorFrom(r.Context())
			if !ok {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
				return
			}
			if !actor.Can(perm) {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "missing permission "+perm, map[string]any{"permission": perm})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearer(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

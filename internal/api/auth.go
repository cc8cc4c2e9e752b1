package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/synastry-app/synastry-api/internal/apperr"
)

// Sessions resolves bearer tokens to user IDs. An unknown or expired token
// resolves to an empty string, not an error.
type Sessions interface {
	GetSessionUserID(ctx context.Context, token string) (string, error)
}

type ctxKey int

const userIDKey ctxKey = iota

// UserID returns the authenticated user ID stored by requireSession.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

// requireSession rejects requests without a valid session token.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, eris.Wrap(apperr.ErrUnauthenticated, "missing bearer token"))
			return
		}

		userID, err := s.sessions.GetSessionUserID(r.Context(), token)
		if err != nil {
			writeError(w, eris.Wrap(err, "api: resolve session"))
			return
		}
		if userID == "" {
			writeError(w, eris.Wrap(apperr.ErrUnauthenticated, "invalid or expired session"))
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// requireCronSecret guards machine-triggered job routes.
func (s *Server) requireCronSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if s.cronSecret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cronSecret)) != 1 {
			writeError(w, eris.Wrap(apperr.ErrUnauthenticated, "invalid cron secret"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

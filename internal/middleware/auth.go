package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/mtaani/noticeboard/internal/auth"
	"github.com/mtaani/noticeboard/internal/store"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "noticeboard_session"

func identityFromRequest(r *http.Request, sessionStore *store.SessionStore, userStore *store.UserStore) (auth.Identity, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return auth.Identity{}, false
	}

	sess, err := sessionStore.GetByToken(cookie.Value)
	if err != nil || sess == nil {
		return auth.Identity{}, false
	}

	user, err := userStore.GetByID(sess.UserID)
	if err != nil || user == nil {
		return auth.Identity{}, false
	}

	return auth.Identity{
		UserID:        user.ID,
		Email:         user.Email,
		Name:          user.Name,
		EmailVerified: user.EmailVerified,
		SessionID:     sess.ID,
	}, true
}

// RequireAuth validates the session cookie and populates the request identity.
// Requests without a valid session get a JSON 401.
func RequireAuth(sessionStore *store.SessionStore, userStore *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := identityFromRequest(r, sessionStore, userStore)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "sign in required"})
				return
			}

			ctx := auth.WithIdentity(r.Context(), ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth populates the identity when a valid session is present and
// passes the request through either way. Board reads are public but still
// want to know who is asking.
func OptionalAuth(sessionStore *store.SessionStore, userStore *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ident, ok := identityFromRequest(r, sessionStore, userStore); ok {
				r = r.WithContext(auth.WithIdentity(r.Context(), ident))
			}
			next.ServeHTTP(w, r)
		})
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mtaani/noticeboard/internal/auth"
	"github.com/mtaani/noticeboard/internal/cooldown"
	"github.com/mtaani/noticeboard/internal/email"
	"github.com/mtaani/noticeboard/internal/middleware"
	"github.com/mtaani/noticeboard/internal/model"
	"github.com/mtaani/noticeboard/internal/store"
)

const minPasswordLen = 6

type AuthHandler struct {
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	tokenStore   *store.VerificationTokenStore
	emailClient  *email.Client
	cooldowns    *cooldown.Tracker
	logger       *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	ss *store.SessionStore,
	ts *store.VerificationTokenStore,
	ec *email.Client,
	cd *cooldown.Tracker,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:    us,
		sessionStore: ss,
		tokenStore:   ts,
		emailClient:  ec,
		cooldowns:    cd,
		logger:       logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// userResponse is the identity payload. CooldownSeconds is the live
// resend-verification countdown, 0 when idle.
type userResponse struct {
	ID              int64  `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	EmailVerified   bool   `json:"email_verified"`
	CooldownSeconds int    `json:"cooldown_seconds"`
}

func (h *AuthHandler) userPayload(u *model.User) userResponse {
	return userResponse{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		EmailVerified:   u.EmailVerified,
		CooldownSeconds: h.cooldowns.Remaining(u.ID),
	}
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   90 * 24 * 60 * 60, // matches session expiry
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// sendVerification issues a fresh token and emails the link. The cooldown
// starts only when the provider accepted the message; a failed send leaves
// the user free to retry immediately.
func (h *AuthHandler) sendVerification(user *model.User) error {
	vt, err := h.tokenStore.Create(user.ID)
	if err != nil {
		return fmt.Errorf("create verification token: %w", err)
	}
	if err := h.emailClient.SendVerification(user.Email, vt.Token); err != nil {
		return err
	}
	h.cooldowns.Start(user.ID)
	return nil
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < minPasswordLen {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
		return
	}

	existing, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := h.userStore.Create(req.Email, string(hash), req.Name)
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.setSessionCookie(w, r, sess.Token)

	if err := h.sendVerification(user); err != nil {
		// The account exists either way; the user can resend from the banner.
		h.logger.Warn("send verification on signup", "user_id", user.ID, "error", err)
	}

	h.logger.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, h.userPayload(user))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	user, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	// Unverified users still get a session; they can browse and resend the
	// verification email, they just cannot pin notes. Any running cooldown
	// keeps ticking, signing in never starts or resets one.
	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.setSessionCookie(w, r, sess.Token)

	writeJSON(w, http.StatusOK, h.userPayload(user))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if sess, err := h.sessionStore.GetByToken(cookie.Value); err == nil && sess != nil {
			h.sessionStore.Delete(sess.ID)
		}
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// ResendVerification re-sends the verification link. Only allowed from the
// idle cooldown state; during a cooldown the request is rejected with the
// seconds remaining and no email call is made.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}

	user, err := h.userStore.GetByID(ident.UserID)
	if err != nil || user == nil {
		h.logger.Error("resend lookup", "user_id", ident.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user.EmailVerified {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_verified"})
		return
	}

	if remaining := h.cooldowns.Remaining(user.ID); remaining > 0 {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":            "please wait before requesting another email",
			"cooldown_seconds": remaining,
		})
		return
	}

	if err := h.sendVerification(user); err != nil {
		if errors.Is(err, email.ErrRateLimited) {
			// The provider's limit governs here; no local cooldown is
			// synthesized, the user may retry once the provider relents.
			writeError(w, http.StatusServiceUnavailable, "email service is busy, try again in a while")
			return
		}
		h.logger.Error("resend verification", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send verification email")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "sent",
		"cooldown_seconds": h.cooldowns.Remaining(user.ID),
	})
}

// Me returns the current identity, re-read from the user store so a freshly
// clicked verification link is reflected without signing in again.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}

	user, err := h.userStore.GetByID(ident.UserID)
	if err != nil {
		h.logger.Error("me lookup", "user_id", ident.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}

	writeJSON(w, http.StatusOK, h.userPayload(user))
}

// Verify is the email link target. It consumes the token and flips the
// user's verified flag; the response is a plain page since the click lands
// in a bare browser tab, not the app.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing verification token", http.StatusBadRequest)
		return
	}

	vt, err := h.tokenStore.GetValid(token)
	if err != nil {
		h.logger.Error("verify token lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if vt == nil {
		http.Error(w, "This verification link is invalid or has expired. Request a new one from the board.", http.StatusBadRequest)
		return
	}

	if err := h.userStore.MarkVerified(vt.UserID); err != nil {
		h.logger.Error("mark verified", "user_id", vt.UserID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err := h.tokenStore.MarkUsed(vt.ID); err != nil {
		h.logger.Error("mark token used", "token_id", vt.ID, "error", err)
	}

	h.logger.Info("email verified", "user_id", vt.UserID)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<p>Email verified. You can close this tab and return to the board.</p>`)
}

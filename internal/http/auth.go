package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bidhub/procurement/internal/authz"
	httpmiddleware "github.com/bidhub/procurement/internal/http/middleware"
	"github.com/bidhub/procurement/internal/service"
	"github.com/bidhub/procurement/internal/util"
)

const refreshCookie = "procurement_refresh"

// Login authenticates with e-mail and password.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON", nil)
		return
	}
	if err := util.ValidateEmail(payload.Email); err != nil {
		WriteAppError(w, r, err)
		return
	}
	if err := util.LoginPassword(payload.Password); err != nil {
		WriteAppError(w, r, err)
		return
	}

	result, err := h.auth.Login(r.Context(), strings.TrimSpace(payload.Email), payload.Password)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}
	h.writeLoginSuccess(w, result)
}

// Refresh rotates the refresh token from the cookie or the JSON body.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := getRefreshFromRequest(r)
	if token == "" {
		WriteError(w, http.StatusUnauthorized, "AUTH", "missing refresh token", nil)
		return
	}

	result, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}
	h.writeLoginSuccess(w, result)
}

// Logout drops the refresh session, if any, and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := getRefreshFromRequest(r); token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			log.Warn().Err(err).Msg("logout: session not removed")
		}
	}
	h.setRefreshCookie(w, "", time.Time{})
	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// MeResponse is the authenticated user's projection.
type MeResponse struct {
	*authz.User
	RoleNames       []string `json:"roleNames"`
	PermissionNames []string `json:"permissionNames"`
	IsAdmin         bool     `json:"isAdmin"`
	IsDemo          bool     `json:"isDemo"`
}

// Me returns the current user with derived role and permission names.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := httpmiddleware.CurrentUser(r.Context())
	WriteJSON(w, http.StatusOK, MeResponse{
		User:            user,
		RoleNames:       authz.RoleNames(user),
		PermissionNames: authz.PermissionNames(user),
		IsAdmin:         authz.IsAdmin(user),
		IsDemo:          authz.IsDemoAccount(user),
	})
}

func (h *Handler) handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrRefreshInvalid):
		WriteError(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	case errors.Is(err, service.ErrAccountDisabled):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	default:
		log.Error().Err(err).Msg("authentication failed")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "authentication failed", nil)
	}
}

func (h *Handler) writeLoginSuccess(w http.ResponseWriter, result *service.LoginResult) {
	h.setRefreshCookie(w, result.RefreshToken, result.RefreshExpiry)
	WriteJSON(w, http.StatusOK, result)
}

func getRefreshFromRequest(r *http.Request) string {
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		return c.Value
	}
	var payload struct {
		RefreshToken string `json:"refreshToken"`
	}
	if r.Body != nil && decodeJSON(r, &payload) == nil {
		return strings.TrimSpace(payload.RefreshToken)
	}
	return ""
}

// setRefreshCookie clears the cookie when token is empty.
func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	cookie := &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/auth",
		Expires:  expires,
		HttpOnly: true,
		Secure:   !h.devCookies,
		SameSite: sameSite,
	}
	if token == "" {
		cookie.Expires = time.Time{}
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/olegiv/blockpress/internal/middleware"
	"github.com/olegiv/blockpress/internal/service"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !requireJSON(w, r, &req) {
		return
	}

	if h.login != nil {
		if locked, remaining := h.login.IsAccountLocked(req.Email); locked {
			writeLocked(w, remaining)
			return
		}
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if h.login != nil && errors.Is(err, service.ErrInvalidCredentials) {
			if locked, d := h.login.RecordFailedAttempt(req.Email); locked {
				writeLocked(w, d)
				return
			}
			WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid email or password", map[string]string{
				"remainingAttempts": strconv.Itoa(h.login.GetRemainingAttempts(req.Email)),
			})
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	if h.login != nil {
		h.login.RecordSuccessfulLogin(req.Email)
	}
	h.setTokenCookie(w, res.Token, h.auth.TokenTTL())
	WriteSuccess(w, res, nil)
}

// Logout handles POST /api/v1/auth/logout. Tokens are stateless, so logging
// out only clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.setTokenCookie(w, "", -1)
	WriteSuccess(w, map[string]bool{"success": true}, nil)
}

// Me handles GET /api/v1/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Me(r.Context(), middleware.GetUser(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, user, nil)
}

// setTokenCookie writes the httpOnly session cookie. A negative ttl
// deletes it.
func (h *Handler) setTokenCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	c := &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	} else {
		c.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, c)
}

func writeLocked(w http.ResponseWriter, remaining time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(remaining.Seconds()))))
	WriteError(w, http.StatusTooManyRequests, "account_locked",
		"Too many failed login attempts. Please try again later.", nil)
}

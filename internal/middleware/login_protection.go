// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	maxLockout         = 24 * time.Hour
	loginSweepInterval = 10 * time.Minute
	maxTrackedIPs      = 10000
)

// LoginProtectionConfig holds configuration for login protection.
type LoginProtectionConfig struct {
	// IPRateLimit is login attempts per second allowed from one IP.
	IPRateLimit float64
	IPBurst     int

	// MaxFailedAttempts within AttemptWindow locks the account.
	MaxFailedAttempts int
	AttemptWindow     time.Duration

	// LockoutDuration is the first lockout. Each further lockout doubles it,
	// up to one day.
	LockoutDuration time.Duration

	Logger *slog.Logger
}

// DefaultLoginProtectionConfig allows a burst of five logins per IP, then
// one every two seconds, and locks an account for 15 minutes after five
// failures in 15 minutes.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit:       0.5,
		IPBurst:           5,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AttemptWindow:     15 * time.Minute,
	}
}

func (c LoginProtectionConfig) withDefaults() LoginProtectionConfig {
	def := DefaultLoginProtectionConfig()
	if c.IPRateLimit <= 0 {
		c.IPRateLimit = def.IPRateLimit
	}
	if c.IPBurst <= 0 {
		c.IPBurst = def.IPBurst
	}
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = def.LockoutDuration
	}
	if c.AttemptWindow <= 0 {
		c.AttemptWindow = def.AttemptWindow
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// accountState is the failure history of one account.
type accountState struct {
	failures    int
	windowStart time.Time
	lockedUntil time.Time
	lockouts    int
}

// LoginProtection throttles login attempts per client IP and locks accounts
// after repeated failures. Accounts are keyed by lower-cased email.
type LoginProtection struct {
	cfg    LoginProtectionConfig
	ips    *limiterCache[string]
	logger *slog.Logger

	mu       sync.Mutex
	accounts map[string]*accountState

	now  func() time.Time
	done chan struct{}
	once sync.Once
}

// NewLoginProtection creates login protection and starts its background
// sweep. Call Stop to end it.
func NewLoginProtection(cfg LoginProtectionConfig) *LoginProtection {
	cfg = cfg.withDefaults()
	lp := &LoginProtection{
		cfg:      cfg,
		ips:      newLimiterCache[string](cfg.IPRateLimit, cfg.IPBurst),
		logger:   cfg.Logger,
		accounts: make(map[string]*accountState),
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go lp.run()
	return lp
}

// CheckIPRateLimit reports whether another login from ip is allowed now.
func (lp *LoginProtection) CheckIPRateLimit(ip string) bool {
	return lp.ips.get(ip).Allow()
}

// IsAccountLocked reports whether the account is locked and for how long.
func (lp *LoginProtection) IsAccountLocked(email string) (bool, time.Duration) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	st, ok := lp.accounts[accountKey(email)]
	if !ok {
		return false, 0
	}
	now := lp.now()
	if now.Before(st.lockedUntil) {
		return true, st.lockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailedAttempt counts a failed login. When the failure locks the
// account it returns true and the lockout duration.
func (lp *LoginProtection) RecordFailedAttempt(email string) (bool, time.Duration) {
	key := accountKey(email)
	now := lp.now()

	lp.mu.Lock()
	defer lp.mu.Unlock()

	st, ok := lp.accounts[key]
	if !ok {
		st = &accountState{}
		lp.accounts[key] = st
	}
	if st.failures == 0 || now.Sub(st.windowStart) > lp.cfg.AttemptWindow {
		st.failures = 0
		st.windowStart = now
	}
	st.failures++
	lp.logger.Debug("failed login recorded", "email", key, "failures", st.failures)

	if st.failures < lp.cfg.MaxFailedAttempts {
		return false, 0
	}

	d := lp.lockoutFor(st.lockouts)
	st.lockedUntil = now.Add(d)
	st.lockouts++
	st.failures = 0
	lp.logger.Warn("account locked after failed logins",
		"email", key, "lockouts", st.lockouts, "duration", d)
	return true, d
}

// lockoutFor doubles the base lockout for every previous lockout.
func (lp *LoginProtection) lockoutFor(previous int) time.Duration {
	d := lp.cfg.LockoutDuration
	for range previous {
		d *= 2
		if d >= maxLockout {
			return maxLockout
		}
	}
	return d
}

// RecordSuccessfulLogin forgets the account's failure history.
func (lp *LoginProtection) RecordSuccessfulLogin(email string) {
	lp.mu.Lock()
	delete(lp.accounts, accountKey(email))
	lp.mu.Unlock()
}

// GetRemainingAttempts returns how many failures the account has left
// before it is locked.
func (lp *LoginProtection) GetRemainingAttempts(email string) int {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	st, ok := lp.accounts[accountKey(email)]
	if !ok || lp.now().Sub(st.windowStart) > lp.cfg.AttemptWindow {
		return lp.cfg.MaxFailedAttempts
	}
	return max(lp.cfg.MaxFailedAttempts-st.failures, 0)
}

// Stop ends the background sweep. It is safe to call more than once.
func (lp *LoginProtection) Stop() {
	lp.once.Do(func() { close(lp.done) })
}

func (lp *LoginProtection) run() {
	ticker := time.NewTicker(loginSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			lp.sweep()
		case <-lp.done:
			return
		}
	}
}

// sweep drops accounts whose lockout and attempt window have both passed.
func (lp *LoginProtection) sweep() {
	if lp.ips.clearIfExceeds(maxTrackedIPs) {
		lp.logger.Info("login IP limiters cleared", "limit", maxTrackedIPs)
	}

	now := lp.now()
	lp.mu.Lock()
	defer lp.mu.Unlock()
	for key, st := range lp.accounts {
		if now.After(st.lockedUntil) && now.Sub(st.windowStart) > lp.cfg.AttemptWindow {
			delete(lp.accounts, key)
		}
	}
}

// Middleware applies the per-IP limit to POST requests.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				if ip := getClientIP(r); !lp.CheckIPRateLimit(ip) {
					lp.logger.Warn("login rate limit exceeded", "ip", ip)
					WriteAPIError(w, http.StatusTooManyRequests, "rate_limit_exceeded",
						"Too many login attempts. Please wait a moment and try again.", nil)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accountKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

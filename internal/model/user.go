// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and types used throughout the application
// including Post, Block, User, Image and Event.
package model

import "time"

// User roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents a blockpress account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsAdmin returns true if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// AuthUser is the verified caller of an operation. A nil *AuthUser is an
// anonymous caller.
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IsAdmin returns true if the caller has admin role. Safe on nil.
func (a *AuthUser) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// Owns returns true if the caller is the given author. Safe on nil.
func (a *AuthUser) Owns(authorID string) bool {
	return a != nil && authorID != "" && a.ID == authorID
}

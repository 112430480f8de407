package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID         int64    `json:"id"`
	Email      string   `json:"email"`
	Name       string   `json:"name"`
	Role       UserRole `json:"role"`
	OfficeID   *int64   `json:"office_id,omitempty"`
	EmployeeID *int64   `json:"employee_id,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID     int64    `json:"user_id"`
	Role       UserRole `json:"role"`
	OfficeID   *int64   `json:"office_id,omitempty"`
	EmployeeID *int64   `json:"employee_id,omitempty"`
	Email      string   `json:"email"`
	jwt.RegisteredClaims
}

// Principal converts the token claims into the authorization view.
func (c *JWTClaims) Principal() Principal {
	return Principal{UserID: c.UserID, Role: c.Role, OfficeID: c.OfficeID, EmployeeID: c.EmployeeID}
}

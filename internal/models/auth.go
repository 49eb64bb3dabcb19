package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OperatorRole gates the ops API.
type OperatorRole string

const (
	RoleAdmin  OperatorRole = "admin"
	RoleViewer OperatorRole = "viewer"
)

// OperatorClaims is the JWT payload accepted by the ops API.
type OperatorClaims struct {
	Role OperatorRole `json:"role"`
	jwt.RegisteredClaims
}

// IssuedToken is returned by the token command.
type IssuedToken struct {
	AccessToken string    `json:"access_token"`
	Subject     string    `json:"subject"`
	Role        string    `json:"role"`
	ExpiresAt   time.Time `json:"expires_at"`
}

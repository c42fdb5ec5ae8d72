package models

import "github.com/golang-jwt/jwt/v5"

// AdminClaims is the payload of an admin access token. Subject is always
// "admin"; there is a single operator account.
//
// It lives in models because both services (issuing) and middleware
// (verifying) need it.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

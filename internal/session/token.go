package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what can be read from a bearer token without verifying it.
// Tokens are opaque to the client; this is for display and diagnostics only.
type TokenInfo struct {
	IsJWT     bool
	Subject   string
	ExpiresAt time.Time
}

// InspectToken reads the registered claims of a JWT bearer token without checking its
// signature. Non-JWT tokens yield a zero TokenInfo.
func InspectToken(token string) TokenInfo {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}
	}
	info := TokenInfo{IsJWT: true, Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info
}

// Expired reports whether the token carries an expiry before now.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

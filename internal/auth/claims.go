package auth

import "time"

// AccessClaims are the claims carried by an access token. v4.local tokens are
// encrypted, so clients cannot read them.
type AccessClaims struct {
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"` // user ID
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// UserID returns the acting user.
func (c *AccessClaims) UserID() string {
	return c.Subject
}

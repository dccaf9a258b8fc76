// Package tokens issues and validates device bearer tokens for the packet
// ingress endpoint.
package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

const issuer = "powerhawk-enrich"

// DeviceClaims bind a token to one device MAC identifier.
type DeviceClaims struct {
	MacID string `json:"mac_id"`
	jwt.RegisteredClaims
}

// DeviceTokens signs and verifies HS256 device tokens.
type DeviceTokens struct {
	secret []byte
	ttl    time.Duration
}

// NewDeviceTokens creates a signer/verifier. A zero ttl issues tokens without expiry.
func NewDeviceTokens(secret string, ttl time.Duration) *DeviceTokens {
	return &DeviceTokens{secret: []byte(secret), ttl: ttl}
}

// Issue returns a signed token for macID.
func (d *DeviceTokens) Issue(macID string) (string, error) {
	now := time.Now()
	claims := DeviceClaims{
		MacID: macID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   macID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	if d.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(d.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(d.secret)
}

// Verify parses and validates tokenString.
func (d *DeviceTokens) Verify(tokenString string) (*DeviceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DeviceClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return d.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*DeviceClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

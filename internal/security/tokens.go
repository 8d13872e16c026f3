// Package security validates identity-provider JWTs presented on the
// WebSocket handshake. The hub never issues tokens; authentication is owned
// by the external identity service and this package only verifies.
package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidPublicKey is returned when the configured key cannot be parsed.
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// ConnectionClaims holds the JWT claims a client presents when opening a
// realtime connection.
type ConnectionClaims struct {
	jwt.RegisteredClaims
	OrgID       string `json:"org_id"`
	DisplayName string `json:"display_name"`
}

// TokenValidator verifies RS256/ES256 access tokens against the identity
// provider's public key.
type TokenValidator struct {
	publicKey crypto.PublicKey
	issuer    string
	audience  string
}

// NewTokenValidator returns a validator for tokens signed by the key in
// pemOrPath (inline PEM or a path to a PEM file), with the given expected
// issuer and audience.
func NewTokenValidator(pemOrPath, issuer, audience string) (*TokenValidator, error) {
	key, err := LoadPublicKey(pemOrPath)
	if err != nil {
		return nil, err
	}
	return &TokenValidator{publicKey: key, issuer: issuer, audience: audience}, nil
}

// ValidateConnection parses and validates the token (signature, exp, iss, aud)
// and returns the identity it binds: userID (sub), tenantID (org_id), and
// display name.
func (v *TokenValidator) ValidateConnection(tokenString string) (userID, tenantID, displayName string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &ConnectionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return v.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return v.publicKey, nil
		}
		return nil, ErrInvalidToken
	})
	if err != nil {
		return "", "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*ConnectionClaims)
	if !ok || !token.Valid {
		return "", "", "", ErrInvalidToken
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return "", "", "", ErrInvalidToken
	}
	if v.audience != "" {
		audOk := false
		for _, a := range claims.Audience {
			if a == v.audience {
				audOk = true
				break
			}
		}
		if !audOk {
			return "", "", "", ErrInvalidToken
		}
	}
	if claims.Subject == "" || claims.OrgID == "" {
		return "", "", "", ErrInvalidToken
	}
	return claims.Subject, claims.OrgID, claims.DisplayName, nil
}

// LoadPublicKey parses an RSA or ECDSA public key from inline PEM or a PEM file path.
func LoadPublicKey(pemOrPath string) (crypto.PublicKey, error) {
	data := []byte(pemOrPath)
	if _, err := os.Stat(pemOrPath); err == nil {
		b, err := os.ReadFile(pemOrPath)
		if err != nil {
			return nil, err
		}
		data = b
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPublicKey
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		// PKCS#1 RSA keys ("RSA PUBLIC KEY" blocks) are still common.
		if rsaKey, rsaErr := x509.ParsePKCS1PublicKey(block.Bytes); rsaErr == nil {
			return rsaKey, nil
		}
		return nil, ErrInvalidPublicKey
	}
	switch key.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
		return key, nil
	default:
		return nil, ErrInvalidPublicKey
	}
}

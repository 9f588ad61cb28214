package jwt

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoKeys       = errors.New("jwt: no verification keys configured")
	ErrInvalidToken = errors.New("jwt: invalid token")
)

// Validator verifies ID tokens against a set of PEM certificates. The kid
// header selects the certificate by subject common name.
type Validator struct {
	keys     []*x509.Certificate
	iss, aud string
}

func NewValidator(pubPemPaths []string, issuer, audience string) (*Validator, error) {
	var certs []*x509.Certificate
	for _, p := range pubPemPaths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		block, _ := pem.Decode(b)
		if block == nil {
			return nil, errors.New("jwt: invalid pem " + p)
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, c)
	}
	return &Validator{keys: certs, iss: issuer, aud: audience}, nil
}

// Enabled reports whether any key is configured.
func (v *Validator) Enabled() bool { return v != nil && len(v.keys) > 0 }

func (v *Validator) Verify(tokenStr string) (jwt.MapClaims, error) {
	if !v.Enabled() {
		return nil, ErrNoKeys
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "ES256"})}
	if v.iss != "" {
		opts = append(opts, jwt.WithIssuer(v.iss))
	}
	if v.aud != "" {
		opts = append(opts, jwt.WithAudience(v.aud))
	}
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		for _, c := range v.keys {
			if c.Subject.CommonName == kid {
				return c.PublicKey, nil
			}
		}
		return v.keys[0].PublicKey, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Subject verifies tokenStr and returns its sub claim.
func (v *Validator) Subject(tokenStr string) (string, error) {
	claims, err := v.Verify(tokenStr)
	if err != nil {
		return "", err
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

package guard

import (
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

const adminClaim = "adm"

// TokenVerifier issues and checks HS256 admin tokens.
type TokenVerifier struct {
	secret []byte
	issuer string
}

func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Issue signs an admin token for userID valid for ttl from now.
func (v *TokenVerifier) Issue(userID string, ttl time.Duration, now time.Time) (string, error) {
	if len(v.secret) == 0 {
		return "", fmt.Errorf("admin token secret is not configured")
	}
	if userID == "" {
		return "", fmt.Errorf("user is required")
	}
	claims := jwt.MapClaims{
		"iss":      v.issuer,
		"sub":      userID,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
		adminClaim: true,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify checks signature, expiry, issuer and the admin claim and returns the subject.
func (v *TokenVerifier) Verify(tokenString string) (string, error) {
	if len(v.secret) == 0 {
		return "", fmt.Errorf("admin token secret is not configured")
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse admin token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid admin token")
	}
	if !claims.VerifyIssuer(v.issuer, true) {
		return "", errors.New("admin token issuer mismatch")
	}
	if isAdmin, _ := claims[adminClaim].(bool); !isAdmin {
		return "", errors.New("token carries no admin grant")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("admin token has no subject")
	}
	return sub, nil
}

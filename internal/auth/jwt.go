package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const linkIssuer = "wbor-twilio"

// LinkManager issues and verifies short-lived recording download links.
type LinkManager struct {
	secret []byte
	ttl    time.Duration
}

func NewLinkManager(secret string, ttl time.Duration) (*LinkManager, error) {
	if secret == "" {
		return nil, errors.New("RECORDING_LINK_SECRET is required")
	}
	if ttl <= 0 {
		return nil, errors.New("link ttl must be > 0")
	}
	return &LinkManager{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a token for callID, returning it with its expiry.
func (m *LinkManager) Issue(now time.Time, callID string) (string, time.Time, error) {
	if callID == "" {
		return "", time.Time{}, errors.New("call_id is required")
	}
	exp := now.Add(m.ttl)
	claims := LinkClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    linkIssuer,
			Subject:   callID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		CallID:  callID,
		Purpose: linkPurpose,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

// Verify checks signature, expiry and that the token was issued for callID.
func (m *LinkManager) Verify(tokenString, callID string, now time.Time) (LinkClaims, error) {
	var claims LinkClaims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(linkIssuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30*time.Second), // clock skew tolerance
	)

	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return LinkClaims{}, err
	}

	if claims.Purpose != linkPurpose {
		return LinkClaims{}, errors.New("purpose mismatch")
	}
	if claims.CallID == "" || claims.CallID != callID {
		return LinkClaims{}, errors.New("call_id mismatch")
	}
	return claims, nil
}

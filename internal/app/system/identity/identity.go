// internal/app/system/identity/identity.go

// Package identity verifies the bearer tokens presented by API and chat
// clients. Accounts are provisioned by an external login service that
// shares the HS256 signing secret; this service only validates tokens and
// maps them to stored users.
package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidToken is returned for any token that fails verification:
// bad signature, wrong issuer, expired, or malformed subject.
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier signs and verifies HS256 bearer tokens whose subject is
// the hex user id.
type TokenVerifier struct {
	secret []byte
	issuer string
}

func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Sign issues a token for the given user. Used by tests and by the local
// development login endpoint; production tokens come from the external
// login service with the same secret and issuer.
func (v *TokenVerifier) Sign(userID primitive.ObjectID, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    v.issuer,
		Subject:   userID.Hex(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify checks the token signature, issuer, and expiry, and returns the
// user id from the subject claim.
func (v *TokenVerifier) Verify(token string) (primitive.ObjectID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return primitive.NilObjectID, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return primitive.NilObjectID, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return primitive.NilObjectID, ErrInvalidToken
	}

	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidToken
	}
	return id, nil
}

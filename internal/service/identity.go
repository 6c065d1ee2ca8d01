package service

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/inkboard/inkboard/internal/domain"
	"github.com/inkboard/inkboard/internal/repository"
)

// IdentityVerifier resolves a bearer credential to an identity record.
// It runs once per connection, before any room event is accepted.
type IdentityVerifier struct {
	users  repository.UserRepository
	secret []byte
}

func NewIdentityVerifier(users repository.UserRepository, jwtSecret string) *IdentityVerifier {
	return &IdentityVerifier{
		users:  users,
		secret: []byte(jwtSecret),
	}
}

// Verify parses and validates the credential and looks up its subject.
// Failure modes map onto the handshake taxonomy: ErrUnauthenticated for a
// missing credential, ErrInvalidCredential for anything that fails to
// parse or verify, ErrUnknownIdentity when the token is fine but no
// identity record matches.
func (v *IdentityVerifier) Verify(ctx context.Context, credential string) (*domain.User, error) {
	if credential == "" {
		return nil, ErrUnauthenticated
	}

	token, err := jwt.Parse(credential, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredential
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidCredential
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, ErrInvalidCredential
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	user, err := v.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving identity: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		return nil, ErrUnknownIdentity
	}
	return user, nil
}

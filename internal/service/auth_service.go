package service

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type IAuthService interface {
	// Verify reports whether the candidate matches the shared secret.
	Verify(candidate string) bool
}

type authService struct {
	secret []byte
	hashed bool
}

// NewAuthService accepts either a plaintext secret or a bcrypt hash ("$2a$...").
func NewAuthService(secret string) IAuthService {
	return &authService{
		secret: []byte(secret),
		hashed: strings.HasPrefix(secret, "$2"),
	}
}

func (s *authService) Verify(candidate string) bool {
	if s.hashed {
		return bcrypt.CompareHashAndPassword(s.secret, []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare(s.secret, []byte(candidate)) == 1
}

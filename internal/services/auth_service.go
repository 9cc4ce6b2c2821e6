package services

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"satchel/internal/domain"
	"satchel/internal/jwtutil"
	"satchel/internal/repos"
)

var ErrBadCreds = errors.New("invalid email or password")

type AuthService struct {
	Users *repos.UserRepo
	JWT   *jwtutil.JWTUtil
}

func NewAuthService(users *repos.UserRepo, jwt *jwtutil.JWTUtil) *AuthService {
	return &AuthService{Users: users, JWT: jwt}
}

func (s *AuthService) check(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		return nil, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	return u, nil
}

// Login binds the back-office session sid to the user.
func (s *AuthService) Login(ctx context.Context, sid, email, password string) (*domain.User, error) {
	u, err := s.check(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.Users.BindSession(ctx, sid, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthService) Logout(ctx context.Context, sid string) error {
	return s.Users.UnbindSession(ctx, sid)
}

func (s *AuthService) CurrentUser(ctx context.Context, sid string) (*domain.User, error) {
	return s.Users.SessionUser(ctx, sid)
}

// IssueToken exchanges storefront credentials for a bearer token.
func (s *AuthService) IssueToken(ctx context.Context, email, password string) (string, *domain.User, error) {
	u, err := s.check(ctx, email, password)
	if err != nil {
		return "", nil, err
	}
	tok, err := s.JWT.GenerateToken(u.ID, u.Email, u.Role)
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}

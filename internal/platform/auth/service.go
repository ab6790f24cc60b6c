package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccountDisabled      = errors.New("account disabled")
)

type AuthService interface {
	Login(ctx context.Context, id, password string) (string, error)
}

type Service struct {
	store  AccountStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

func NewService(db *sql.DB, secret []byte, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{store: NewStore(db), secret: secret, ttl: ttl, now: time.Now, log: log}
}

func (s *Service) Login(ctx context.Context, id, password string) (string, error) {
	acct, err := s.store.GetByID(ctx, id)
	if err != nil {
		s.log.Error("load account", zap.String("user_id", id), zap.Error(err))
		return "", err
	}
	if acct == nil {
		return "", ErrAuthenticationFailed
	}
	if acct.IsDisabled {
		return "", ErrAccountDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return "", ErrAuthenticationFailed
	}

	token, err := IssueToken(s.secret, acct.ID, acct.Role, s.now(), s.ttl)
	if err != nil {
		return "", err
	}
	s.log.Info("login", zap.String("user_id", acct.ID), zap.String("role", acct.Role))
	return token, nil
}

// IssueToken は RequireAuth が受理する HS256 トークンを発行する
func IssueToken(secret []byte, userID, role string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Package auth contains the login service: credential checks against the
// stored user map, rate limiting, and session token issue/verify.
package auth

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/scoutpluse/scoutsync/internal/errs"
	"github.com/scoutpluse/scoutsync/internal/limiter"
	"github.com/scoutpluse/scoutsync/internal/model"
	"github.com/scoutpluse/scoutsync/internal/store"
)

// DefaultTTL bounds session token lifetime.
const DefaultTTL = 24 * time.Hour

// Session is an issued token and its expiry.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      model.User `json:"user"`
}

// Service authenticates users and issues HS256 session tokens.
type Service struct {
	store   *store.Store
	lim     limiter.Limiter
	signKey []byte
	ttl     time.Duration
	log     *zap.Logger
}

// New constructs a Service. A non-positive ttl falls back to DefaultTTL.
func New(st *store.Store, lim limiter.Limiter, signKey []byte, ttl time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: st, lim: lim, signKey: signKey, ttl: ttl, log: log}
}

// Login authenticates with rate limiting by (email, ip). Credentials are
// compared against the stored user map; a wrong password and an unknown
// email are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password, ip string) (Session, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return Session{}, err
	}
	if !allowed {
		return Session{}, errs.ErrRateLimited
	}

	u, ok := s.store.GetUsers(ctx)[email]
	if !ok || subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			s.log.Warn("login blocked", zap.String("email", email))
			return Session{}, errs.ErrRateLimited
		}
		// hide existence of the account on wrong password
		return Session{}, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, email, ipHash)

	token, exp, err := s.issueToken(u.ID)
	if err != nil {
		return Session{}, err
	}
	u.Password = ""
	s.log.Info("user logged in", zap.String("user", u.ID), zap.String("role", u.Role))
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}

func (s *Service) issueToken(userID string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// Verify parses and validates a session token, returning the user id.
func (s *Service) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.ErrInvalidToken
		}
		return s.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return "", errs.ErrInvalidToken
	}
	v := jwt.NewValidator(jwt.WithLeeway(30 * time.Second))
	if err := v.Validate(&claims); err != nil {
		return "", errs.ErrInvalidToken
	}
	return claims.Subject, nil
}

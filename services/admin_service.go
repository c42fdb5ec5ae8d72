package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg"
)

const (
	adminSubject = "admin"
	tokenIssuer  = "uyjoy"
)

// AdminToken is the login response.
type AdminToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AdminService authenticates the single operator account.
type AdminService interface {
	// Enabled reports whether a password hash is configured.
	Enabled() bool

	// Login checks password and issues an access token. Repeated failures
	// from one IP are throttled.
	Login(password, ip string) (*AdminToken, error)

	// ValidateToken verifies signature, issuer, subject and expiry.
	ValidateToken(token string) (*models.AdminClaims, error)
}

type adminService struct {
	passwordHash []byte
	jwtSecret    []byte
	tokenTTL     time.Duration
	limiter      Limiter
	log          *zap.Logger
	now          func() time.Time
}

// NewAdminService is the constructor. An empty hash disables the admin API.
func NewAdminService(passwordHash, jwtSecret string, tokenTTL time.Duration, limiter Limiter, log *zap.Logger) AdminService {
	return &adminService{
		passwordHash: []byte(passwordHash),
		jwtSecret:    []byte(jwtSecret),
		tokenTTL:     tokenTTL,
		limiter:      limiter,
		log:          log,
		now:          time.Now,
	}
}

func (s *adminService) Enabled() bool {
	return len(s.passwordHash) > 0
}

func (s *adminService) Login(password, ip string) (*AdminToken, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("%w: admin access is disabled", pkg.ErrForbidden)
	}
	if s.limiter != nil && !s.limiter.Allow(ip) {
		return nil, &RateLimitError{RetryAfter: s.limiter.RetryAfterSeconds(ip)}
	}

	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		s.log.Warn("admin login failed", zap.String("ip", ip))
		return nil, fmt.Errorf("%w: invalid password", pkg.ErrUnauthorized)
	}

	now := s.now()
	expires := now.Add(s.tokenTTL)
	claims := &models.AdminClaims{
		Role: adminSubject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminSubject,
			Issuer:    tokenIssuer,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign admin token: %w", err)
	}

	if r, ok := s.limiter.(interface{ Reset(key string) }); ok {
		r.Reset(ip)
	}

	s.log.Info("admin logged in", zap.String("ip", ip))
	return &AdminToken{AccessToken: signed, ExpiresAt: expires}, nil
}

func (s *adminService) ValidateToken(tokenString string) (*models.AdminClaims, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("%w: admin access is disabled", pkg.ErrForbidden)
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.AdminClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(adminSubject),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.AdminClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", pkg.ErrUnauthorized)
	}
	return claims, nil
}

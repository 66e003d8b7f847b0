package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"alcyxob/analysis-portal/internal/domain"
	"alcyxob/analysis-portal/internal/repository"
	"alcyxob/analysis-portal/internal/session"
)

const tokenIssuer = "analysis-portal"

// Claims is the JWT payload.
type Claims struct {
	UserID string      `json:"uid"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Caller turns verified claims into the identity services expect.
func (c *Claims) Caller() domain.Caller {
	return domain.Caller{UserID: c.UserID, Role: c.Role}
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (token string, user *domain.User, err error)
	Logout(ctx context.Context, claims *Claims) error
	Authenticate(ctx context.Context, token string) (*Claims, error)
	Me(ctx context.Context, caller domain.Caller) (*domain.User, error)
	// RevokeUser invalidates every token issued to userID so far.
	RevokeUser(ctx context.Context, userID string) error
}

// authService implements the AuthService interface.
type authService struct {
	log           *zap.Logger
	userRepo      repository.UserRepository
	revoker       session.Revoker
	jwtSecret     []byte
	jwtExpiration time.Duration
	now           func() time.Time
}

// NewAuthService creates a new instance of authService.
func NewAuthService(log *zap.Logger, userRepo repository.UserRepository, revoker session.Revoker, jwtSecret string, jwtExpiration time.Duration) (AuthService, error) {
	if jwtSecret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	if jwtExpiration <= 0 {
		jwtExpiration = 24 * time.Hour
	}
	return &authService{
		log:           log,
		userRepo:      userRepo,
		revoker:       revoker,
		jwtSecret:     []byte(jwtSecret),
		jwtExpiration: jwtExpiration,
		now:           time.Now,
	}, nil
}

// Login checks the password and issues a token.
func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.TrimSpace(email)
	var v ValidationError
	if email == "" {
		v.add("email", "is required")
	}
	if password == "" {
		v.add("password", "is required")
	}
	if err := v.err(); err != nil {
		return "", nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrUnauthenticated.New("invalid email or password")
		}
		return "", nil, upstream(s.log, "load user", err)
	}

	// Password mismatch maps to the same failure as an unknown email
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrUnauthenticated.New("invalid email or password")
	}

	token, err := s.generateJWT(user)
	if err != nil {
		s.log.Error("failed to sign token", zap.Error(err))
		return "", nil, errors.New("failed to generate authentication token")
	}
	return token, user, nil
}

// generateJWT creates a new JWT token for the given user.
func (s *authService) generateJWT(user *domain.User) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// Authenticate verifies the signature and expiry and rejects revoked tokens.
func (s *authService) Authenticate(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthenticated.New("invalid or expired token")
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, ErrUnauthenticated.New("invalid token claims")
	}

	if claims.ID != "" {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, upstream(s.log, "check token revocation", err)
		}
		if revoked {
			return nil, ErrUnauthenticated.New("token has been revoked")
		}
	}

	cutoff, err := s.revoker.RevokedAfter(ctx, claims.UserID)
	if err != nil {
		return nil, upstream(s.log, "check user revocation", err)
	}
	// IssuedAt has second precision.
	if !cutoff.IsZero() && (claims.IssuedAt == nil || claims.IssuedAt.Time.Before(cutoff.Truncate(time.Second))) {
		return nil, ErrUnauthenticated.New("token has been revoked")
	}
	return claims, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *authService) Logout(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		return upstream(s.log, "revoke token", err)
	}
	return nil
}

func (s *authService) Me(ctx context.Context, caller domain.Caller) (*domain.User, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated.New("account no longer exists")
		}
		return nil, upstream(s.log, "load user", err)
	}
	return user, nil
}

func (s *authService) RevokeUser(ctx context.Context, userID string) error {
	if err := s.revoker.RevokeUser(ctx, userID, s.now()); err != nil {
		return upstream(s.log, "revoke user tokens", err)
	}
	return nil
}

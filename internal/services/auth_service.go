package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prudhvinik1/livesync/internal/logging"
	"github.com/prudhvinik1/livesync/internal/models"
	"github.com/prudhvinik1/livesync/internal/repositories"
	"github.com/prudhvinik1/livesync/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionExpired     = errors.New("session expired")
)

// AuthService signs principals in and out. A token is only honoured while
// the session it names still exists.
type AuthService struct {
	accountRepo repositories.AccountRepository
	sessionRepo repositories.SessionRepository
	jwtSecret   []byte
	jwtExpiry   time.Duration
	logger      *zap.Logger
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	AccountID uuid.UUID `json:"account_id"`
}

type TokenClaims struct {
	AccountID uuid.UUID
	SessionID string
}

// Principal is the owner id rows of this account carry.
func (c TokenClaims) Principal() string {
	return c.AccountID.String()
}

func NewAuthService(
	accountRepo repositories.AccountRepository,
	sessionRepo repositories.SessionRepository,
	jwtSecret string,
	jwtExpiry time.Duration,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		accountRepo: accountRepo,
		sessionRepo: sessionRepo,
		jwtSecret:   []byte(jwtSecret),
		jwtExpiry:   jwtExpiry,
		logger:      logging.OrNop(logger),
	}
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*models.Account, error) {
	if err := utils.ValidateEmail(email); err != nil {
		return nil, err
	}

	_, err := s.accountRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailExists
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	account := &models.Account{Email: email, PasswordHash: hashed}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account registered", zap.Stringer("account_id", account.ID))
	return account, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	account, err := s.accountRepo.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if !utils.CheckPassword(account.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	session := &models.Session{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		ExpiresAt: now.Add(s.jwtExpiry),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.generateToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("account signed in",
		zap.Stringer("account_id", account.ID),
		zap.String("session_id", session.ID))

	return &LoginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		AccountID: account.ID,
	}, nil
}

func (s *AuthService) generateToken(session *models.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   session.AccountID.String(),
		ID:        session.ID,
		IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// VerifyToken checks the signature and expiry of a token without looking
// its session up.
func (s *AuthService) VerifyToken(tokenString string) (*TokenClaims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	return &TokenClaims{AccountID: accountID, SessionID: claims.ID}, nil
}

// Authenticate verifies the token and that its session is still live.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*TokenClaims, error) {
	claims, err := s.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.GetByID(ctx, claims.SessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session.AccountID != claims.AccountID {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.VerifyToken(tokenString)
	if err != nil {
		return err
	}

	err = s.sessionRepo.Delete(ctx, claims.SessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrSessionExpired
	}
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *AuthService) LogoutAll(ctx context.Context, tokenString string) error {
	claims, err := s.Authenticate(ctx, tokenString)
	if err != nil {
		return err
	}

	if err := s.sessionRepo.DeleteAllForAccount(ctx, claims.AccountID); err != nil {
		return fmt.Errorf("failed to logout all sessions: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuthConfig holds the HS256 signing parameters.
type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
	Issuer   string
	// Leeway tolerates clock skew between replicas when checking exp and nbf.
	Leeway time.Duration
}

// AuthService logs accounts in and verifies bearer tokens for the JWT middleware.
type AuthService struct {
	repo      authUserRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	parser    *jwt.Parser
	now       func() time.Time
	// compared when the email is unknown so both failure paths cost one bcrypt run
	decoyHash []byte
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = 24 * time.Hour
	}
	decoy, _ := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.MinCost)
	return &AuthService{
		repo:      repo,
		validator: validate,
		logger:    logger,
		config:    config,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(config.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(config.Leeway),
		),
		now:       func() time.Time { return time.Now().UTC() },
		decoyHash: decoy,
	}
}

// Login checks the credentials and issues an access token. Unknown emails and wrong
// passwords produce the same error; both are written to the audit trail.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid login payload")
	}
	email := req.NormalizedEmail()

	user, err := s.repo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_ = bcrypt.CompareHashAndPassword(s.decoyHash, []byte(req.Password))
		s.audit(ctx, nil, models.AuditActionLoginFailed, req, map[string]string{"email": email, "reason": "unknown_account"})
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	case err != nil:
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.audit(ctx, &user.ID, models.AuditActionLoginFailed, req, map[string]string{"reason": "bad_password"})
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}
	// Checked after the password so the response does not reveal which accounts exist.
	if !user.Active {
		s.audit(ctx, &user.ID, models.AuditActionLoginFailed, req, map[string]string{"reason": "inactive"})
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	token, expiresAt, err := s.issue(user)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to create access token")
	}

	loginAt := s.now()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, loginAt); err != nil {
		s.logger.Warn("last login not recorded", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.audit(ctx, &user.ID, models.AuditActionLogin, req, map[string]string{"role": string(user.Role)})

	info := user.Info()
	info.LastLogin = &loginAt
	return &models.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		ExpiresIn:   int64(s.config.TokenTTL.Seconds()),
		User:        info,
	}, nil
}

// ValidateToken verifies signature, issuer and expiry and returns the claims.
func (s *AuthService) ValidateToken(raw string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrUnauthorized, err, "invalid token")
	}
	if !token.Valid || claims.UserID == "" || claims.Subject != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if _, ok := models.ParseUserRole(string(claims.Role)); !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unknown role in token")
	}
	return claims, nil
}

// Me returns the account behind the token.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to fetch user")
	}
	info := user.Info()
	return &info, nil
}

func (s *AuthService) issue(user *models.User) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.config.TokenTTL)
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *AuthService) audit(ctx context.Context, userID *string, action string, req models.LoginRequest, detail map[string]string) {
	body, _ := json.Marshal(detail)
	entry := &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "auth",
		ResourceID: userID,
		NewValues:  body,
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("login audit not recorded", zap.String("action", action), zap.Error(err))
	}
}

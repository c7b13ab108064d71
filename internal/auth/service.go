package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/internal/users"
	pkgauth "github.com/farmarket/farmarket-backend/pkg/auth"
	"github.com/farmarket/farmarket-backend/pkg/auth/session"
	"github.com/farmarket/farmarket-backend/pkg/config"
	"github.com/farmarket/farmarket-backend/pkg/db"
	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/email"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/logger"
	"github.com/farmarket/farmarket-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// resetTokenTTL bounds how long a password reset link stays valid.
const resetTokenTTL = 10 * time.Minute

// Service defines the behavior needed by the auth controller.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error)
	Logout(ctx context.Context, accessID string) error
	VerifyEmail(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, emailAddr string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type service struct {
	db          *db.Client
	users       users.Repository
	session     sessionManager
	mailer      email.Sender
	logg        *logger.Logger
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	publicURL   string
}

// ServiceParams bundles the dependencies required to build an auth service.
// Mailer and Logger are optional; without a mailer, password reset is refused
// and verification emails are skipped.
type ServiceParams struct {
	DB             *db.Client
	UserRepo       users.Repository
	SessionManager sessionManager
	Mailer         email.Sender
	Logger         *logger.Logger
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	PublicBaseURL  string
}

// NewService constructs an auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager required")
	}
	return &service{
		db:          params.DB,
		users:       params.UserRepo,
		session:     params.SessionManager,
		mailer:      params.Mailer,
		logg:        params.Logger,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		publicURL:   strings.TrimRight(strings.TrimSpace(params.PublicBaseURL), "/"),
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	verificationToken, err := newSecureToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint verification token")
	}

	var created *models.User
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.users.WithTx(tx)

		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user := &models.User{
			Email:             email,
			PasswordHash:      passwordHash,
			FirstName:         strings.TrimSpace(req.FirstName),
			LastName:          strings.TrimSpace(req.LastName),
			Phone:             req.Phone,
			Role:              enums.UserRoleCustomer,
			IsActive:          true,
			VerificationToken: &verificationToken,
		}
		user, err := repo.Create(ctx, user)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		// Every customer gets an empty cart up front.
		if err := tx.WithContext(ctx).Create(&models.Cart{CustomerID: user.ID}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
		}

		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The account is usable right away; the verification mail is best effort.
	s.sendVerificationEmail(ctx, created, verificationToken)

	return s.issueTokens(ctx, created, time.Now().UTC())
}

func (s *service) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "verification token is required")
	}

	user, err := s.users.FindByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "verification token is invalid")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup verification token")
	}

	updates := map[string]any{
		"is_email_verified":  true,
		"verification_token": nil,
	}
	if err := s.users.Update(ctx, user.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark email verified")
	}
	return nil
}

func (s *service) ForgotPassword(ctx context.Context, emailAddr string) error {
	normalized := strings.ToLower(strings.TrimSpace(emailAddr))
	if normalized == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if s.mailer == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "email delivery is not configured")
	}

	user, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no account with that email")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	token, err := newSecureToken()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint reset token")
	}
	expiresAt := time.Now().UTC().Add(resetTokenTTL)

	updates := map[string]any{
		"reset_password_token":      token,
		"reset_password_expires_at": expiresAt,
	}
	if err := s.users.Update(ctx, user.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store reset token")
	}

	link := s.publicURL + "/api/v1/auth/reset-password/" + token
	msg := email.Message{
		To:      user.Email,
		Subject: "Reset your Farmarket password",
		TextBody: fmt.Sprintf(
			"Use the link below within %d minutes to choose a new password:\n\n%s\n\nIf you did not request this, ignore this message.",
			int(resetTokenTTL.Minutes()), link,
		),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		// An undeliverable token is a dead end, clear it so a retry can mint
		// a fresh one.
		rollback := map[string]any{
			"reset_password_token":      nil,
			"reset_password_expires_at": nil,
		}
		if rbErr := s.users.Update(ctx, user.ID, rollback); rbErr != nil && s.logg != nil {
			s.logg.Error(ctx, "failed to clear reset token after send failure", rbErr)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send reset email")
	}
	return nil
}

func (s *service) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reset token is required")
	}

	user, err := s.users.FindByResetToken(ctx, token, time.Now().UTC())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "reset token is invalid or has expired")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup reset token")
	}

	passwordHash, err := security.HashPassword(newPassword, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	updates := map[string]any{
		"password_hash":             passwordHash,
		"reset_password_token":      nil,
		"reset_password_expires_at": nil,
	}
	if err := s.users.Update(ctx, user.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store new password")
	}
	return nil
}

func (s *service) sendVerificationEmail(ctx context.Context, user *models.User, token string) {
	if s.mailer == nil {
		return
	}
	link := s.publicURL + "/api/v1/auth/verify-email/" + token
	msg := email.Message{
		To:      user.Email,
		Subject: "Confirm your Farmarket email",
		TextBody: fmt.Sprintf(
			"Welcome to Farmarket, %s!\n\nConfirm your email address by opening the link below:\n\n%s",
			user.FirstName, link,
		),
	}
	if err := s.mailer.Send(ctx, msg); err != nil && s.logg != nil {
		s.logg.Error(ctx, "verification email failed", err)
	}
}

func newSecureToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	return s.issueTokens(ctx, user, now)
}

func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error) {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, req.AccessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}

	newAccessID, newRefresh, err := s.session.Rotate(ctx, claims.ID, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	payload := pkgauth.AccessTokenPayload{
		UserID:   claims.UserID,
		Role:     claims.Role,
		FarmerID: claims.FarmerID,
		JTI:      newAccessID,
	}
	accessToken, err := pkgauth.MintAccessToken(s.jwtCfg, time.Now().UTC(), payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: newRefresh}, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) issueTokens(ctx context.Context, user *models.User, now time.Time) (*LoginResponse, error) {
	var farmerID *uuid.UUID
	if user.Farmer != nil {
		id := user.Farmer.ID
		farmerID = &id
	}

	accessID := session.NewAccessID()
	payload := pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		Role:     user.Role,
		FarmerID: farmerID,
		JTI:      accessID,
	}
	accessToken, err := pkgauth.MintAccessToken(s.jwtCfg, now, payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.session.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         users.FromModel(user),
	}, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := strings.TrimSpace(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, strings.ToLower(input))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

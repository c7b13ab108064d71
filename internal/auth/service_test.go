package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/farmarket/farmarket-backend/internal/users"
	pkgauth "github.com/farmarket/farmarket-backend/pkg/auth"
	"github.com/farmarket/farmarket-backend/pkg/auth/session"
	"github.com/farmarket/farmarket-backend/pkg/config"
	"github.com/farmarket/farmarket-backend/pkg/db"
	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/email"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/security"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "farmarket",
		ExpirationMinutes: 30,
	}
}

func openAuthTestDB(t *testing.T) *db.Client {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ddl := `CREATE TABLE carts (
		id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
		customer_id TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`
	if err := conn.Exec(ddl).Error; err != nil {
		t.Fatalf("create carts table: %v", err)
	}
	return db.NewWithConn(conn)
}

type stubUserRepo struct {
	user *models.User

	created     *models.User
	lastLoginID uuid.UUID
	updates     []map[string]any
}

func (s *stubUserRepo) WithTx(tx *gorm.DB) users.Repository { return s }

func (s *stubUserRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New()
	s.created = user
	return user, nil
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) FindByVerificationToken(_ context.Context, token string) (*models.User, error) {
	if s.user == nil || s.user.VerificationToken == nil || *s.user.VerificationToken != token {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) FindByResetToken(_ context.Context, token string, now time.Time) (*models.User, error) {
	if s.user == nil || s.user.ResetPasswordToken == nil || *s.user.ResetPasswordToken != token {
		return nil, gorm.ErrRecordNotFound
	}
	if s.user.ResetPasswordExpiresAt == nil || !s.user.ResetPasswordExpiresAt.After(now) {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) Update(_ context.Context, id uuid.UUID, updates map[string]any) error {
	s.updates = append(s.updates, updates)
	if s.user == nil || s.user.ID != id {
		return nil
	}
	if token, ok := updates["reset_password_token"]; ok {
		if value, isString := token.(string); isString {
			s.user.ResetPasswordToken = &value
		} else {
			s.user.ResetPasswordToken = nil
		}
	}
	if expiry, ok := updates["reset_password_expires_at"]; ok {
		if value, isTime := expiry.(time.Time); isTime {
			s.user.ResetPasswordExpiresAt = &value
		} else {
			s.user.ResetPasswordExpiresAt = nil
		}
	}
	return nil
}

func (s *stubUserRepo) TouchLastLogin(_ context.Context, id uuid.UUID) error {
	s.lastLoginID = id
	return nil
}

type stubSessionManager struct {
	refreshToken string
	rotateErr    error
	revoked      []string
	generated    []string
}

func (s *stubSessionManager) Generate(_ context.Context, accessID string) (string, error) {
	s.generated = append(s.generated, accessID)
	return s.refreshToken, nil
}

func (s *stubSessionManager) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	return "rotated-session", "rotated-refresh", nil
}

func (s *stubSessionManager) Revoke(_ context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}

type fakeMailer struct {
	sent    []email.Message
	sendErr error
}

func (f *fakeMailer) Send(_ context.Context, msg email.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

type authFixture struct {
	service Service
	repo    *stubUserRepo
	session *stubSessionManager
	mailer  *fakeMailer
	client  *db.Client
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	repo := &stubUserRepo{}
	sessionMgr := &stubSessionManager{refreshToken: "refresh-token"}
	mailer := &fakeMailer{}
	client := openAuthTestDB(t)
	svc, err := NewService(ServiceParams{
		DB:             client,
		UserRepo:       repo,
		SessionManager: sessionMgr,
		Mailer:         mailer,
		JWTConfig:      testJWTConfig(),
		PublicBaseURL:  "https://farmarket.test",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &authFixture{service: svc, repo: repo, session: sessionMgr, mailer: mailer, client: client}
}

func (f *authFixture) seedUser(t *testing.T, email, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	f.repo.user = &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Dana",
		LastName:     "Kim",
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}
	return f.repo.user
}

func TestRegisterCreatesCustomerWithCart(t *testing.T) {
	f := newAuthFixture(t)

	resp, err := f.service.Register(context.Background(), RegisterRequest{
		FirstName: " Dana ",
		LastName:  "Kim",
		Email:     " Dana.Kim@Example.com ",
		Password:  "long-enough-secret",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if f.repo.created == nil {
		t.Fatal("user must be persisted")
	}
	if f.repo.created.Email != "dana.kim@example.com" {
		t.Fatalf("expected normalized email, got %q", f.repo.created.Email)
	}
	if f.repo.created.Role != enums.UserRoleCustomer {
		t.Fatalf("expected customer role, got %s", f.repo.created.Role)
	}

	var cartCount int64
	if err := f.client.DB().Model(&models.Cart{}).
		Where("customer_id = ?", f.repo.created.ID).
		Count(&cartCount).Error; err != nil {
		t.Fatalf("count carts: %v", err)
	}
	if cartCount != 1 {
		t.Fatalf("expected one cart for the new customer, got %d", cartCount)
	}

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != f.repo.created.ID {
		t.Fatalf("expected user id claim %s, got %s", f.repo.created.ID, claims.UserID)
	}
	if resp.RefreshToken != "refresh-token" {
		t.Fatalf("expected stub refresh token, got %q", resp.RefreshToken)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "dana.kim@example.com", "password-one")

	_, err := f.service.Register(context.Background(), RegisterRequest{
		FirstName: "Dana",
		LastName:  "Kim",
		Email:     "dana.kim@example.com",
		Password:  "password-two",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginSuccess(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "dana.kim@example.com", "correct-horse")

	resp, err := f.service.Login(context.Background(), LoginRequest{
		Email:    "Dana.Kim@Example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if f.repo.lastLoginID != user.ID {
		t.Fatalf("expected last login touch for %s, got %s", user.ID, f.repo.lastLoginID)
	}
	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.UserRoleCustomer {
		t.Fatalf("expected customer role claim, got %s", claims.Role)
	}
	if claims.ID == "" {
		t.Fatal("access token must carry a session id")
	}
	if len(f.session.generated) != 1 || f.session.generated[0] != claims.ID {
		t.Fatalf("refresh token must be bound to the session id, got %v", f.session.generated)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "dana.kim@example.com", "correct-horse")

	_, err := f.service.Login(context.Background(), LoginRequest{
		Email:    "dana.kim@example.com",
		Password: "wrong-horse",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "dana.kim@example.com", "correct-horse")
	user.IsActive = false

	_, err := f.service.Login(context.Background(), LoginRequest{
		Email:    "dana.kim@example.com",
		Password: "correct-horse",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "dana.kim@example.com", "correct-horse")

	resp, err := f.service.Login(context.Background(), LoginRequest{
		Email:    "dana.kim@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	pair, err := f.service.Refresh(context.Background(), RefreshRequest{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.RefreshToken != "rotated-refresh" {
		t.Fatalf("expected rotated refresh token, got %q", pair.RefreshToken)
	}
	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), pair.AccessToken)
	if err != nil {
		t.Fatalf("parse rotated access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("rotated token must keep the user id, got %s", claims.UserID)
	}
	if claims.ID != "rotated-session" {
		t.Fatalf("rotated token must carry the new session id, got %q", claims.ID)
	}
}

func TestRefreshRejectsStaleRefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "dana.kim@example.com", "correct-horse")
	f.session.rotateErr = session.ErrInvalidRefreshToken

	resp, err := f.service.Login(context.Background(), LoginRequest{
		Email:    "dana.kim@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	_, err = f.service.Refresh(context.Background(), RefreshRequest{
		AccessToken:  resp.AccessToken,
		RefreshToken: "reused-or-forged",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.Refresh(context.Background(), RefreshRequest{
		AccessToken:  "not-a-jwt",
		RefreshToken: "whatever",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newAuthFixture(t)

	if err := f.service.Logout(context.Background(), "session-1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(f.session.revoked) != 1 || f.session.revoked[0] != "session-1" {
		t.Fatalf("expected revoke of session-1, got %v", f.session.revoked)
	}
}

func TestLogoutRequiresSessionID(t *testing.T) {
	f := newAuthFixture(t)

	err := f.service.Logout(context.Background(), "  ")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRegisterMintsVerificationToken(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.Register(context.Background(), RegisterRequest{
		FirstName: "Dana",
		LastName:  "Kim",
		Email:     "dana.kim@example.com",
		Password:  "long-enough-secret",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if f.repo.created.VerificationToken == nil || *f.repo.created.VerificationToken == "" {
		t.Fatal("new account must carry a verification token")
	}
	if len(f.mailer.sent) != 1 {
		t.Fatalf("expected one verification email, got %d", len(f.mailer.sent))
	}
	msg := f.mailer.sent[0]
	if msg.To != "dana.kim@example.com" {
		t.Fatalf("verification email went to %q", msg.To)
	}
	if !strings.Contains(msg.TextBody, "/verify-email/"+*f.repo.created.VerificationToken) {
		t.Fatalf("verification email must link the token, got %q", msg.TextBody)
	}
}

func TestRegisterSurvivesMailFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.mailer.sendErr = errors.New("mail api down")

	resp, err := f.service.Register(context.Background(), RegisterRequest{
		FirstName: "Dana",
		LastName:  "Kim",
		Email:     "dana.kim@example.com",
		Password:  "long-enough-secret",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("registration must still issue tokens when the mail send fails")
	}
}

func TestVerifyEmailMarksAccountVerified(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "dana.kim@example.com", "correct-horse")
	token := "a1b2c3"
	user.VerificationToken = &token

	if err := f.service.VerifyEmail(context.Background(), "a1b2c3"); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if len(f.repo.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(f.repo.updates))
	}
	updates := f.repo.updates[0]
	if verified, ok := updates["is_email_verified"].(bool); !ok || !verified {
		t.Fatalf("expected is_email_verified=true, got %v", updates["is_email_verified"])
	}
	if updates["verification_token"] != nil {
		t.Fatalf("verification token must be cleared, got %v", updates["verification_token"])
	}
}

func TestVerifyEmailUnknownToken(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "dana.kim@example.com", "correct-horse")

	err := f.service.VerifyEmail(context.Background(), "no-such-token")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestForgotPasswordEmailsResetLink(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "dana.kim@example.com", "correct-horse")

	if err := f.service.ForgotPassword(context.Background(), "Dana.Kim@Example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if user.ResetPasswordToken == nil || *user.ResetPasswordToken == "" {
		t.Fatal("reset token must be stored")
	}
	if user.ResetPasswordExpiresAt == nil || !user.ResetPasswordExpiresAt.After(time.Now()) {
		t.Fatal("reset token must carry a future expiry")
	}
	if remaining := time.Until(*user.ResetPasswordExpiresAt); remaining > resetTokenTTL {
		t.Fatalf("reset expiry exceeds the ttl: %s", remaining)
	}
	if len(f.mailer.sent) != 1 {
		t.Fatalf("expected one reset email, got %d", len(f.mailer.sent))
	}
	if !strings.Contains(f.mailer.sent[0].TextBody, "/reset-password/"+*user.ResetPasswordToken) {
		t.Fatalf("reset email must link the token, got %q", f.mailer.sent[0].TextBody)
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	err := f.service.ForgotPassword(context.Background(), "nobody@example.com")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestForgotPasswordClearsTokenWhenMailFails(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "dana.kim@example.com", "correct-horse")
	f.mailer.sendErr = errors.New("mail api down")

	err := f.service.ForgotPassword(context.Background(), "dana.kim@example.com")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if user.ResetPasswordToken != nil {
		t.Fatal("undeliverable reset token must be cleared")
	}
	if user.ResetPasswordExpiresAt != nil {
		t.Fatal("reset expiry must be cleared with the token")
	}
}

func TestResetPasswordReplacesHash(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "dana.kim@example.com", "correct-horse")
	token := "d4e5f6"
	expiry := time.Now().UTC().Add(5 * time.Minute)
	user.ResetPasswordToken = &token
	user.ResetPasswordExpiresAt = &expiry

	if err := f.service.ResetPassword(context.Background(), "d4e5f6", "brand-new-secret"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if len(f.repo.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(f.repo.updates))
	}
	updates := f.repo.updates[0]
	hash, ok := updates["password_hash"].(string)
	if !ok || hash == "" {
		t.Fatal("a new password hash must be stored")
	}
	valid, err := security.VerifyPassword("brand-new-secret", hash)
	if err != nil || !valid {
		t.Fatalf("stored hash must verify the new password (valid=%v err=%v)", valid, err)
	}
	if updates["reset_password_token"] != nil || updates["reset_password_expires_at"] != nil {
		t.Fatal("reset token must be cleared after use")
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "dana.kim@example.com", "correct-horse")
	token := "d4e5f6"
	expiry := time.Now().UTC().Add(-time.Minute)
	user.ResetPasswordToken = &token
	user.ResetPasswordExpiresAt = &expiry

	err := f.service.ResetPassword(context.Background(), "d4e5f6", "brand-new-secret")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

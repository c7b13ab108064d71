package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

type stubUserRepo struct {
	user *models.User

	updatedID uuid.UUID
	updates   map[string]any
}

func (s *stubUserRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubUserRepo) Create(context.Context, *models.User) (*models.User, error) {
	panic("not implemented")
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.user
	return &clone, nil
}

func (s *stubUserRepo) FindByEmail(context.Context, string) (*models.User, error) {
	panic("not implemented")
}

func (s *stubUserRepo) FindByVerificationToken(context.Context, string) (*models.User, error) {
	panic("not implemented")
}

func (s *stubUserRepo) FindByResetToken(context.Context, string, time.Time) (*models.User, error) {
	panic("not implemented")
}

func (s *stubUserRepo) Update(_ context.Context, id uuid.UUID, updates map[string]any) error {
	s.updatedID = id
	s.updates = updates
	if s.user != nil && s.user.ID == id {
		if first, ok := updates["first_name"].(string); ok {
			s.user.FirstName = first
		}
		if last, ok := updates["last_name"].(string); ok {
			s.user.LastName = last
		}
	}
	return nil
}

func (s *stubUserRepo) TouchLastLogin(context.Context, uuid.UUID) error {
	panic("not implemented")
}

type usersFixture struct {
	service Service
	repo    *stubUserRepo
}

func newUsersFixture(t *testing.T) *usersFixture {
	t.Helper()
	repo := &stubUserRepo{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &usersFixture{service: svc, repo: repo}
}

func (f *usersFixture) seedUser() *models.User {
	f.repo.user = &models.User{
		ID:        uuid.New(),
		Email:     "dana.kim@example.com",
		FirstName: "Dana",
		LastName:  "Kim",
		IsActive:  true,
	}
	return f.repo.user
}

func TestGetProfile(t *testing.T) {
	f := newUsersFixture(t)
	user := f.seedUser()

	got, err := f.service.GetProfile(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Email != user.Email {
		t.Fatalf("expected email %q, got %q", user.Email, got.Email)
	}
}

func TestGetProfileUnknownUser(t *testing.T) {
	f := newUsersFixture(t)

	_, err := f.service.GetProfile(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetProfileRequiresIdentity(t *testing.T) {
	f := newUsersFixture(t)

	_, err := f.service.GetProfile(context.Background(), uuid.Nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestUpdateProfileAppliesChangedFields(t *testing.T) {
	f := newUsersFixture(t)
	user := f.seedUser()

	first := "Daria"
	got, err := f.service.UpdateProfile(context.Background(), user.ID, UpdateProfileInput{
		FirstName: &first,
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if got.FirstName != "Daria" {
		t.Fatalf("expected renamed user, got %q", got.FirstName)
	}
	if _, ok := f.repo.updates["last_name"]; ok {
		t.Fatal("untouched field must not be written")
	}
}

func TestUpdateProfileRejectsEmptyName(t *testing.T) {
	f := newUsersFixture(t)
	user := f.seedUser()

	empty := ""
	_, err := f.service.UpdateProfile(context.Background(), user.ID, UpdateProfileInput{
		FirstName: &empty,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.repo.updates != nil {
		t.Fatal("invalid input must not reach the repository")
	}
}

func TestUpdateProfileRejectsIncompleteAddress(t *testing.T) {
	f := newUsersFixture(t)
	user := f.seedUser()

	_, err := f.service.UpdateProfile(context.Background(), user.ID, UpdateProfileInput{
		Address: &types.Address{City: "Riverside"},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateProfileWithoutChangesReturnsCurrent(t *testing.T) {
	f := newUsersFixture(t)
	user := f.seedUser()

	got, err := f.service.UpdateProfile(context.Background(), user.ID, UpdateProfileInput{})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected current profile, got %s", got.ID)
	}
	if f.repo.updates != nil {
		t.Fatal("empty input must not write")
	}
}

func TestDeactivate(t *testing.T) {
	f := newUsersFixture(t)
	user := f.seedUser()

	if err := f.service.Deactivate(context.Background(), user.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if active, ok := f.repo.updates["is_active"].(bool); !ok || active {
		t.Fatalf("expected is_active false write, got %v", f.repo.updates)
	}
}

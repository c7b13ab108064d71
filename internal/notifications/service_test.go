package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
)

type stubNotificationsRepo struct {
	rows   []models.Notification
	unread int64

	created   *models.Notification
	markedID  uuid.UUID
	markRows  int64
	markedAll bool
}

func (s *stubNotificationsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubNotificationsRepo) Create(_ context.Context, notification *models.Notification) error {
	notification.ID = uuid.New()
	notification.CreatedAt = time.Now()
	s.created = notification
	return nil
}

func (s *stubNotificationsRepo) List(_ context.Context, userID uuid.UUID, unreadOnly bool, params pagination.Params) ([]models.Notification, int64, error) {
	return s.rows, int64(len(s.rows)), nil
}

func (s *stubNotificationsRepo) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	return s.unread, nil
}

func (s *stubNotificationsRepo) MarkRead(_ context.Context, userID, notificationID uuid.UUID, at time.Time) (int64, error) {
	s.markedID = notificationID
	return s.markRows, nil
}

func (s *stubNotificationsRepo) MarkAllRead(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	s.markedAll = true
	return s.unread, nil
}

func (s *stubNotificationsRepo) DeleteReadOlderThan(context.Context, time.Time) (int64, error) {
	panic("not implemented")
}

type stubPusher struct {
	pushes []uuid.UUID
}

func (s *stubPusher) Push(userID uuid.UUID, notification *NotificationDTO) {
	s.pushes = append(s.pushes, userID)
}

func TestCreateNotificationAppliesDefaultsAndPushes(t *testing.T) {
	repo := &stubNotificationsRepo{}
	pusher := &stubPusher{}
	svc, err := NewService(repo, pusher)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	userID := uuid.New()

	dto, err := svc.Create(context.Background(), CreateInput{
		UserID:  userID,
		Type:    enums.NotificationTypeOrderConfirmed,
		Title:   "Order confirmed",
		Message: "Your order is being prepared",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if dto.Priority != enums.NotificationPriorityMedium {
		t.Fatalf("expected default priority, got %s", dto.Priority)
	}
	if dto.Channel != enums.NotificationChannelInApp {
		t.Fatalf("expected in-app channel, got %s", dto.Channel)
	}
	if len(pusher.pushes) != 1 || pusher.pushes[0] != userID {
		t.Fatalf("expected realtime push to %s, got %v", userID, pusher.pushes)
	}
}

func TestCreateNotificationWithoutPusher(t *testing.T) {
	repo := &stubNotificationsRepo{}
	svc, err := NewService(repo, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, err := svc.Create(context.Background(), CreateInput{
		UserID:  uuid.New(),
		Type:    enums.NotificationTypeSystem,
		Title:   "Maintenance",
		Message: "Scheduled downtime tonight",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if repo.created == nil {
		t.Fatal("notification must be persisted")
	}
}

func TestCreateNotificationValidation(t *testing.T) {
	svc, err := NewService(&stubNotificationsRepo{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.Create(context.Background(), CreateInput{
		UserID: uuid.New(),
		Type:   enums.NotificationTypeOrderConfirmed,
		Title:  "Missing message",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkReadUnknownNotification(t *testing.T) {
	repo := &stubNotificationsRepo{markRows: 0}
	svc, err := NewService(repo, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	err = svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkRead(t *testing.T) {
	repo := &stubNotificationsRepo{markRows: 1}
	svc, err := NewService(repo, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	notificationID := uuid.New()
	if err := svc.MarkRead(context.Background(), uuid.New(), notificationID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if repo.markedID != notificationID {
		t.Fatalf("expected mark of %s, got %s", notificationID, repo.markedID)
	}
}

func TestMarkAllRead(t *testing.T) {
	repo := &stubNotificationsRepo{unread: 7}
	svc, err := NewService(repo, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	count, err := svc.MarkAllRead(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if count != 7 || !repo.markedAll {
		t.Fatalf("expected 7 rows marked, got %d", count)
	}
}

func TestUnreadCountRequiresIdentity(t *testing.T) {
	svc, err := NewService(&stubNotificationsRepo{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.UnreadCount(context.Background(), uuid.Nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

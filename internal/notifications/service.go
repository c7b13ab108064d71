package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
	"github.com/farmarket/farmarket-backend/pkg/pagination"
	"github.com/farmarket/farmarket-backend/pkg/types"
)

// NotificationDTO is one in-app message rendered for clients.
type NotificationDTO struct {
	ID        uuid.UUID                  `json:"id"`
	Type      enums.NotificationType     `json:"type"`
	Title     string                     `json:"title"`
	Message   string                     `json:"message"`
	Data      *types.JSONMap             `json:"data,omitempty"`
	Priority  enums.NotificationPriority `json:"priority"`
	Channel   enums.NotificationChannel  `json:"channel"`
	IsRead    bool                       `json:"isRead"`
	ReadAt    *time.Time                 `json:"readAt,omitempty"`
	CreatedAt time.Time                  `json:"createdAt"`
}

// CreateInput describes a notification produced by an event consumer.
type CreateInput struct {
	UserID   uuid.UUID
	Type     enums.NotificationType
	Title    string
	Message  string
	Data     *types.JSONMap
	Priority enums.NotificationPriority
	Channel  enums.NotificationChannel
}

// Pusher delivers a notification to connected realtime clients.
type Pusher interface {
	Push(userID uuid.UUID, notification *NotificationDTO)
}

// Service defines notification list/read/create operations.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, params pagination.Params) ([]*NotificationDTO, int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Create(ctx context.Context, input CreateInput) (*NotificationDTO, error)
}

type service struct {
	repo   Repository
	pusher Pusher
	now    func() time.Time
}

// NewService wires notifications dependencies. The pusher is optional,
// workers without a websocket hub pass nil.
func NewService(repo Repository, pusher Pusher) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifications repository required")
	}
	return &service{
		repo:   repo,
		pusher: pusher,
		now:    time.Now,
	}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, params pagination.Params) ([]*NotificationDTO, int64, error) {
	if userID == uuid.Nil {
		return nil, 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	params = params.Normalize()
	rows, total, err := s.repo.List(ctx, userID, unreadOnly, params)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	dtos := make([]*NotificationDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, fromModel(&rows[i]))
	}
	return dtos, total, nil
}

func (s *service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return count, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	rows, err := s.repo.MarkRead(ctx, userID, notificationID, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*NotificationDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}
	if input.Title == "" || input.Message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title and message required")
	}
	priority := input.Priority
	if priority == "" {
		priority = enums.NotificationPriorityMedium
	}
	channel := input.Channel
	if channel == "" {
		channel = enums.NotificationChannelInApp
	}

	notification := &models.Notification{
		UserID:   input.UserID,
		Type:     input.Type,
		Title:    input.Title,
		Message:  input.Message,
		Data:     input.Data,
		Priority: priority,
		Channel:  channel,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}

	dto := fromModel(notification)
	if s.pusher != nil {
		s.pusher.Push(input.UserID, dto)
	}
	return dto, nil
}

func fromModel(n *models.Notification) *NotificationDTO {
	return &NotificationDTO{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		Priority:  n.Priority,
		Channel:   n.Channel,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

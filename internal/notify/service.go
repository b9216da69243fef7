package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/papertrade/api/internal/api"
	"github.com/papertrade/api/internal/auth"
	"github.com/papertrade/api/internal/model"
	"github.com/papertrade/api/internal/store"
)

// Service owns the notification endpoints and is the helper other
// services call to record a notification for a user.
type Service struct {
	store store.Store
}

// NewService creates the notification service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Push records a notification for a user. Failures are logged, not
// propagated: a missing notification must never fail the action that
// produced it.
func (s *Service) Push(ctx context.Context, userID, kind, message string) {
	n := &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      kind,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		slog.Error("create notification failed", "user", userID, "type", kind, "err", err)
	}
}

// List handles GET /notifications
func (s *Service) List(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	items, err := s.store.ListNotificationsByUser(r.Context(), user.ID)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}
	if items == nil {
		items = []model.Notification{}
	}
	api.OK(w, http.StatusOK, items)
}

// MarkRead handles PUT /notifications/{notificationID}/read
func (s *Service) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id := chi.URLParam(r, "notificationID")

	if err := s.store.MarkNotificationRead(r.Context(), id, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "notification not found")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to update notification")
		return
	}
	api.OKMessage(w, http.StatusOK, "notification marked read", nil)
}

// MarkAllRead handles PUT /notifications/read-all
func (s *Service) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	if err := s.store.MarkAllNotificationsRead(r.Context(), user.ID); err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to update notifications")
		return
	}
	api.OKMessage(w, http.StatusOK, "all notifications marked read", nil)
}

// Delete handles DELETE /notifications/{notificationID}
func (s *Service) Delete(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id := chi.URLParam(r, "notificationID")

	if err := s.store.DeleteNotification(r.Context(), id, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "notification not found")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to delete notification")
		return
	}
	api.OKMessage(w, http.StatusOK, "notification deleted", nil)
}

package dto

import (
	"time"

	"notification-hub-be/internal/model"
)

type BroadcastRequest struct {
	Title string `json:"title" validate:"required,max=120"`
	Body  string `json:"body" validate:"required,max=2000"`
}

type TargetRequest struct {
	TargetUsername string `json:"target_username" validate:"required,max=100"`
	Title          string `json:"title" validate:"required,max=120"`
	Body           string `json:"body" validate:"required,max=2000"`
}

// NotificationMessage is what gets pushed over a channel and returned to the
// sender. Delivered is only meaningful for a targeted send.
type NotificationMessage struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Sender    string    `json:"sender"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"created_at"`
	Delivered bool      `json:"delivered"`
}

// NotificationView is one row of a user's list, with their read flag.
type NotificationView struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Sender    string    `json:"sender"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

type AdminSendResult struct {
	Message   *NotificationMessage `json:"message"`
	Delivered bool                 `json:"delivered"`
	Replayed  bool                 `json:"replayed"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

type MarkAllReadResponse struct {
	Marked int64 `json:"marked"`
}

func NewNotificationMessage(n *model.Notification) *NotificationMessage {
	return &NotificationMessage{
		ID:        n.ID,
		Title:     n.Title,
		Body:      n.Body,
		Sender:    n.Sender,
		Target:    n.Target(),
		CreatedAt: n.CreatedAt,
	}
}

func NewNotificationView(n model.Notification, read bool) NotificationView {
	return NotificationView{
		ID:        n.ID,
		Title:     n.Title,
		Body:      n.Body,
		Sender:    n.Sender,
		Target:    n.Target(),
		CreatedAt: n.CreatedAt,
		Read:      read,
	}
}

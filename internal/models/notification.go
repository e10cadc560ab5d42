// Package models defines the value types the engine exchanges with the
// external task store.
package models

import "time"

// NotificationType classifies what kind of task activity produced a notification.
type NotificationType string

const (
	NotificationAssignment      NotificationType = "assignment"
	NotificationMention         NotificationType = "mention"
	NotificationResponseRequest NotificationType = "response_request"
	NotificationThreadUpdate    NotificationType = "thread_update"
	NotificationStatusChange    NotificationType = "status_change"
)

// ActorKind distinguishes human users from agents, for both message authors
// and notification recipients.
type ActorKind string

const (
	ActorUser  ActorKind = "user"
	ActorAgent ActorKind = "agent"
)

// Notification is a routed fact about task or thread activity awaiting
// delivery to a recipient. The store creates it; the delivery loop consumes
// it exactly once and marks a terminal outcome; the engine never deletes one.
type Notification struct {
	ID            string           `json:"id"`
	Type          NotificationType `json:"type"`
	RecipientID   string           `json:"recipient_id"`
	RecipientKind ActorKind        `json:"recipient_kind"`
	TaskID        string           `json:"task_id,omitempty"`
	MessageID     string           `json:"message_id,omitempty"`
	AccountID     string           `json:"account_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

package models

import "time"

// Message is one entry in a task thread.
type Message struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	AuthorID   string    `json:"author_id"`
	AuthorKind ActorKind `json:"author_kind"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

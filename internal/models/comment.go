package models

import "time"

type Comment struct {
	Id        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type CommentUpdate struct {
	Content string `json:"content"`
}

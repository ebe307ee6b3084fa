package model

import "time"

// Comment belongs to a post by id. Deleting the post deletes its comments.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

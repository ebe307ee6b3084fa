package model

import "time"

// Post is a feed entry with an optional image.
//
// Likes, LikeCount and CommentCount are owned by the post and only change
// through the engagement operations (toggle like, create/delete comment).
// LikeCount always equals len(Likes).
type Post struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	Text         string    `json:"text"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	Likes        []string  `json:"likes"`
	LikeCount    int       `json:"likesCount"`
	CommentCount int       `json:"commentsCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// LikedBy reports whether userID is in the post's liker set.
func (p *Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

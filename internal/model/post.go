package model

import "time"

// Post is a blog post. It always belongs to exactly one User (UserID).
//
// Author and AuthorImage are not columns of the posts table: listing queries
// join them in from users so templates can show who wrote each post without
// a second lookup.
type Post struct {
	ID          string    `json:"id"          db:"id"`
	UserID      string    `json:"userId"      db:"user_id"`
	Title       string    `json:"title"       db:"title"`
	Text        string    `json:"text"        db:"text"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
	Author      string    `json:"author"      db:"author"`
	AuthorImage string    `json:"authorImage" db:"author_image"`
}

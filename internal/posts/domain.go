package posts

import (
	"time"

	"github.com/pressroom/pressroom/internal/shared"
)

// Post is a blog entry. Slug is derived from Title on every write.
type Post struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	AuthorName string    `json:"author_name"`
	Title      string    `json:"title"`
	Slug       string    `json:"slug"`
	Body       string    `json:"body"`
	Published  bool      `json:"published"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OwnerID lets the gate compare ownership.
func (p Post) OwnerID() int64 { return p.UserID }

// Input is the create/edit form payload.
type Input struct {
	Title string `form:"title" validate:"required,max=255"`
	Body  string `form:"body" validate:"required"`
}

// Page is one page of a post listing.
type Page struct {
	Posts      []Post            `json:"posts"`
	Pagination shared.Pagination `json:"pagination"`
}

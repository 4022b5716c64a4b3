package links

import "time"

// Link is an immutable entry on the link board.
type Link struct {
	ID          string
	Title       string
	URL         string
	Description string
	CreatedAt   time.Time
}

// Input is the submission form payload.
type Input struct {
	Title       string `form:"title" validate:"required,max=255"`
	URL         string `form:"url" validate:"required,max=255"`
	Description string `form:"description" validate:"max=255"`
}

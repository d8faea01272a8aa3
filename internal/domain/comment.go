package domain

import "time"

// Comment is one entry of a ticket conversation. Comments are never edited.
type Comment struct {
	ID          int64
	TicketID    int64
	UserID      int64
	Body        string
	CreatedAt   time.Time
	Attachments []Attachment
}

// Attachment stores metadata for a file uploaded with a comment.
type Attachment struct {
	ID        int64
	CommentID int64
	Filename  string
	Path      string
	MimeType  string
	Size      int64
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Announcement is a public notice shown on the portal.
type Announcement struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
}

// SeedAnnouncements is the reference set used when no stored announcements exist.
func SeedAnnouncements() []Announcement {
	epoch := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	return []Announcement{
		{
			ID:          uuid.MustParse("7d0f3c4e-2d6b-4a51-9a43-0c7f6f2b1a01"),
			Title:       "Online document requests",
			Body:        "QRT IDs, certificates and blotter reports can now be requested online.",
			PublishedAt: epoch,
		},
		{
			ID:          uuid.MustParse("7d0f3c4e-2d6b-4a51-9a43-0c7f6f2b1a02"),
			Title:       "Verify your documents",
			Body:        "Every issued document carries a reference number that anyone can verify.",
			PublishedAt: epoch,
		},
	}
}

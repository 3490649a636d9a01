package store

import (
	"encoding/json"
	"time"

	"hackerfolio/api/internal/component"
	"hackerfolio/api/internal/position"
)

type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

type Portfolio struct {
	ID          string
	UserID      string
	IsPublished bool
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Section struct {
	ID          string
	PortfolioID string
	Name        string
	Visible     bool
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Component rows carry the owning portfolio id, resolved through the section,
// so callers can lock the right scope before mutating.
type Component struct {
	ID          string
	SectionID   string
	PortfolioID string
	Type        component.Type
	Data        json.RawMessage
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func SectionItems(sections []Section) []position.Item {
	items := make([]position.Item, len(sections))
	for i, section := range sections {
		items[i] = position.Item{ID: section.ID, Position: section.Position}
	}
	return items
}

func ComponentItems(components []Component) []position.Item {
	items := make([]position.Item, len(components))
	for i, item := range components {
		items[i] = position.Item{ID: item.ID, Position: item.Position}
	}
	return items
}

package app

import (
	"encoding/json"
	"time"

	"hackerfolio/api/internal/component"
	"hackerfolio/api/internal/store"
)

type PortfolioView struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	IsPublished bool              `json:"isPublished"`
	PublishedAt *time.Time        `json:"publishedAt"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	Sections    []SectionTreeView `json:"sections"`
}

type SectionView struct {
	ID          string    `json:"id"`
	PortfolioID string    `json:"portfolioId"`
	Name        string    `json:"name"`
	Visible     bool      `json:"visible"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SectionTreeView is a section inside the portfolio tree. Components is never
// nil so an empty section renders as "components": [].
type SectionTreeView struct {
	SectionView
	Components []ComponentView `json:"components"`
}

type ComponentView struct {
	ID        string          `json:"id"`
	SectionID string          `json:"sectionId"`
	Type      component.Type  `json:"type"`
	Data      json.RawMessage `json:"data"`
	Position  int             `json:"position"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func portfolioView(portfolio store.Portfolio, sections []SectionTreeView) PortfolioView {
	if sections == nil {
		sections = []SectionTreeView{}
	}
	return PortfolioView{
		ID:          portfolio.ID,
		UserID:      portfolio.UserID,
		IsPublished: portfolio.IsPublished,
		PublishedAt: portfolio.PublishedAt,
		CreatedAt:   portfolio.CreatedAt,
		UpdatedAt:   portfolio.UpdatedAt,
		Sections:    sections,
	}
}

func sectionView(section store.Section) SectionView {
	return SectionView{
		ID:          section.ID,
		PortfolioID: section.PortfolioID,
		Name:        section.Name,
		Visible:     section.Visible,
		Position:    section.Position,
		CreatedAt:   section.CreatedAt,
		UpdatedAt:   section.UpdatedAt,
	}
}

func sectionViews(sections []store.Section) []SectionView {
	views := make([]SectionView, len(sections))
	for i, section := range sections {
		views[i] = sectionView(section)
	}
	return views
}

func componentView(item store.Component) ComponentView {
	return ComponentView{
		ID:        item.ID,
		SectionID: item.SectionID,
		Type:      item.Type,
		Data:      item.Data,
		Position:  item.Position,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func componentViews(items []store.Component) []ComponentView {
	views := make([]ComponentView, len(items))
	for i, item := range items {
		views[i] = componentView(item)
	}
	return views
}

// Package publish renders a portfolio into a JSON snapshot and stores it where
// the public site can read it.
package publish

import (
	"context"
	"encoding/json"
	"time"

	"hackerfolio/api/internal/component"
	"hackerfolio/api/internal/store"
)

// Sink stores published snapshots by key. Put overwrites; Delete of a
// missing key is not an error.
type Sink interface {
	Put(ctx context.Context, key string, body []byte) error
	Delete(ctx context.Context, key string) error
}

type Snapshot struct {
	PortfolioID string            `json:"portfolioId"`
	UserID      string            `json:"userId"`
	PublishedAt time.Time         `json:"publishedAt"`
	Sections    []SnapshotSection `json:"sections"`
}

type SnapshotSection struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Position   int                 `json:"position"`
	Components []SnapshotComponent `json:"components"`
}

type SnapshotComponent struct {
	ID       string          `json:"id"`
	Type     component.Type  `json:"type"`
	Position int             `json:"position"`
	Data     json.RawMessage `json:"data"`
}

// SnapshotKey is the object key of userID's published portfolio.
func SnapshotKey(userID string) string {
	return "portfolios/" + userID + "/snapshot.json"
}

// BuildSnapshot keeps visible sections only, in position order, each with its
// components in position order. components is keyed by section id.
func BuildSnapshot(portfolio store.Portfolio, sections []store.Section, components map[string][]store.Component, at time.Time) Snapshot {
	snapshot := Snapshot{
		PortfolioID: portfolio.ID,
		UserID:      portfolio.UserID,
		PublishedAt: at,
		Sections:    make([]SnapshotSection, 0, len(sections)),
	}
	for _, section := range sections {
		if !section.Visible {
			continue
		}
		items := components[section.ID]
		out := SnapshotSection{
			ID:         section.ID,
			Name:       section.Name,
			Position:   section.Position,
			Components: make([]SnapshotComponent, 0, len(items)),
		}
		for _, item := range items {
			out.Components = append(out.Components, SnapshotComponent{
				ID:       item.ID,
				Type:     item.Type,
				Position: item.Position,
				Data:     item.Data,
			})
		}
		snapshot.Sections = append(snapshot.Sections, out)
	}
	return snapshot
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hackerfolio/api/internal/position"
)

type memoryTx struct {
	portfolio  Portfolio
	sections   map[string]Section
	components map[string]Component
}

func (t *memoryTx) Portfolio() Portfolio {
	return t.portfolio
}

func (t *memoryTx) Sections(context.Context) ([]Section, error) {
	return filterSections(t.sections, t.portfolio.ID), nil
}

func (t *memoryTx) InsertSection(_ context.Context, section Section) error {
	if _, ok := t.sections[section.ID]; ok {
		return fmt.Errorf("insert section: duplicate id %s", section.ID)
	}
	section.PortfolioID = t.portfolio.ID
	t.sections[section.ID] = section
	return nil
}

func (t *memoryTx) UpdateSection(_ context.Context, section Section) error {
	current, ok := t.sections[section.ID]
	if !ok {
		return ErrNotFound
	}
	current.Name = section.Name
	current.Visible = section.Visible
	current.UpdatedAt = section.UpdatedAt
	t.sections[section.ID] = current
	return nil
}

func (t *memoryTx) DeleteSection(_ context.Context, sectionID string) error {
	if _, ok := t.sections[sectionID]; !ok {
		return ErrNotFound
	}
	delete(t.sections, sectionID)
	for id, item := range t.components {
		if item.SectionID == sectionID {
			delete(t.components, id)
		}
	}
	return nil
}

func (t *memoryTx) MoveSections(_ context.Context, changes []position.Change) error {
	for _, change := range changes {
		section, ok := t.sections[change.ID]
		if !ok || section.Position != change.From {
			return fmt.Errorf("move section %s from %d: %w", change.ID, change.From, position.ErrNotContiguous)
		}
		section.Position = change.To
		t.sections[change.ID] = section
	}
	return nil
}

func (t *memoryTx) Components(_ context.Context, sectionID string) ([]Component, error) {
	return filterComponents(t.components, sectionID), nil
}

func (t *memoryTx) CountComponents(context.Context) (int, error) {
	return len(t.components), nil
}

func (t *memoryTx) InsertComponent(_ context.Context, item Component) error {
	if _, ok := t.sections[item.SectionID]; !ok {
		return ErrNotFound
	}
	if _, ok := t.components[item.ID]; ok {
		return fmt.Errorf("insert component: duplicate id %s", item.ID)
	}
	item.PortfolioID = t.portfolio.ID
	t.components[item.ID] = item
	return nil
}

func (t *memoryTx) UpdateComponentData(_ context.Context, componentID string, data json.RawMessage, updatedAt time.Time) error {
	item, ok := t.components[componentID]
	if !ok {
		return ErrNotFound
	}
	item.Data = append(json.RawMessage(nil), data...)
	item.UpdatedAt = updatedAt
	t.components[componentID] = item
	return nil
}

func (t *memoryTx) DeleteComponent(_ context.Context, componentID string) error {
	if _, ok := t.components[componentID]; !ok {
		return ErrNotFound
	}
	delete(t.components, componentID)
	return nil
}

func (t *memoryTx) MoveComponents(_ context.Context, sectionID string, changes []position.Change) error {
	for _, change := range changes {
		item, ok := t.components[change.ID]
		if !ok || item.SectionID != sectionID || item.Position != change.From {
			return fmt.Errorf("move component %s from %d: %w", change.ID, change.From, position.ErrNotContiguous)
		}
		item.Position = change.To
		t.components[change.ID] = item
	}
	return nil
}

func (t *memoryTx) SetPublished(_ context.Context, published bool, at time.Time) error {
	t.portfolio.IsPublished = published
	t.portfolio.PublishedAt = nil
	if published {
		publishedAt := at
		t.portfolio.PublishedAt = &publishedAt
	}
	t.portfolio.UpdatedAt = at
	return nil
}

func (t *memoryTx) checkContiguous() error {
	sections := filterSections(t.sections, t.portfolio.ID)
	if err := position.CheckContiguous(SectionItems(sections)); err != nil {
		return fmt.Errorf("sections of %s: %w", t.portfolio.ID, err)
	}
	for _, section := range sections {
		if err := position.CheckContiguous(ComponentItems(filterComponents(t.components, section.ID))); err != nil {
			return fmt.Errorf("components of %s: %w", section.ID, err)
		}
	}
	return nil
}

package app

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"hackerfolio/api/internal/metrics"
	"hackerfolio/api/internal/position"
	"hackerfolio/api/internal/store"
	"hackerfolio/api/internal/util"
)

const maxSectionName = 100

type CreateSectionRequest struct {
	Name    string `json:"name"`
	Visible *bool  `json:"visible"`
}

type UpdateSectionRequest struct {
	Name    *string `json:"name"`
	Visible *bool   `json:"visible"`
}

// ListSections returns the caller's sections in position order. A caller
// without a portfolio has none.
func (s *Service) ListSections(ctx context.Context, userID string) ([]SectionView, error) {
	portfolio, err := s.store.GetPortfolio(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return []SectionView{}, nil
	}
	if err != nil {
		return nil, err
	}
	sections, err := s.store.ListSections(ctx, userID, portfolio.ID)
	if err != nil {
		return nil, err
	}
	return sectionViews(sections), nil
}

// CreateSection appends a section, creating the portfolio on first save.
func (s *Service) CreateSection(ctx context.Context, userID string, req CreateSectionRequest) (SectionView, error) {
	name, err := sectionName(req.Name)
	if err != nil {
		return SectionView{}, err
	}
	visible := true
	if req.Visible != nil {
		visible = *req.Visible
	}

	portfolio, err := s.store.EnsurePortfolio(ctx, userID, util.NewID(), s.now())
	if err != nil {
		return SectionView{}, err
	}

	var created store.Section
	err = s.store.InPortfolio(ctx, userID, portfolio.ID, func(tx store.Tx) error {
		sections, err := tx.Sections(ctx)
		if err != nil {
			return err
		}
		if err := position.CheckCapacity(position.ScopeSection, len(sections), s.cfg.SectionLimit); err != nil {
			return err
		}
		now := s.now()
		created = store.Section{
			ID:          util.NewID(),
			PortfolioID: portfolio.ID,
			Name:        name,
			Visible:     visible,
			Position:    position.NextPosition(store.SectionItems(sections)),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.InsertSection(ctx, created)
	})
	if err != nil {
		return SectionView{}, s.rejected(ctx, "section_limit", err)
	}
	metrics.ObserveMutation("section", "create", 0)
	return sectionView(created), nil
}

// UpdateSection changes name and visibility. Position is only changed by
// ReorderSection.
func (s *Service) UpdateSection(ctx context.Context, userID, sectionID string, req UpdateSectionRequest) (SectionView, error) {
	var name string
	if req.Name != nil {
		var err error
		if name, err = sectionName(*req.Name); err != nil {
			return SectionView{}, err
		}
	}

	section, err := s.ownSection(ctx, userID, sectionID)
	if err != nil {
		return SectionView{}, err
	}
	if req.Name == nil && req.Visible == nil {
		return sectionView(section), nil
	}

	err = s.store.InPortfolio(ctx, userID, section.PortfolioID, func(tx store.Tx) error {
		current, err := findSection(ctx, tx, sectionID)
		if err != nil {
			return err
		}
		if req.Name != nil {
			current.Name = name
		}
		if req.Visible != nil {
			current.Visible = *req.Visible
		}
		current.UpdatedAt = s.now()
		section = current
		return tx.UpdateSection(ctx, current)
	})
	if err != nil {
		return SectionView{}, err
	}
	metrics.ObserveMutation("section", "update", 0)
	return sectionView(section), nil
}

// DeleteSection removes a section with its components and closes the gap it
// leaves in the portfolio.
func (s *Service) DeleteSection(ctx context.Context, userID, sectionID string) error {
	section, err := s.ownSection(ctx, userID, sectionID)
	if err != nil {
		return err
	}

	var shifted int
	err = s.store.InPortfolio(ctx, userID, section.PortfolioID, func(tx store.Tx) error {
		sections, err := tx.Sections(ctx)
		if err != nil {
			return err
		}
		if err := canDeleteSection(tx.Portfolio(), len(sections)); err != nil {
			return err
		}
		changes, err := position.CloseGap(store.SectionItems(sections), sectionID)
		if errors.Is(err, position.ErrItemNotFound) {
			return notFound()
		}
		if err != nil {
			return err
		}
		if err := tx.DeleteSection(ctx, sectionID); err != nil {
			return err
		}
		shifted = len(changes)
		return tx.MoveSections(ctx, changes)
	})
	if err != nil {
		return s.rejected(ctx, "last_section", err)
	}
	metrics.ObserveMutation("section", "delete", shifted)
	return nil
}

// ReorderSection moves a section to target and shifts the sections between
// its old and new slot.
func (s *Service) ReorderSection(ctx context.Context, userID, sectionID string, target int) (SectionView, error) {
	section, err := s.ownSection(ctx, userID, sectionID)
	if err != nil {
		return SectionView{}, err
	}

	var shifted int
	err = s.store.InPortfolio(ctx, userID, section.PortfolioID, func(tx store.Tx) error {
		sections, err := tx.Sections(ctx)
		if err != nil {
			return err
		}
		changes, err := position.Reorder(store.SectionItems(sections), sectionID, target)
		if err != nil {
			return reorderError(err)
		}
		if err := tx.MoveSections(ctx, changes); err != nil {
			return err
		}
		if len(changes) > 0 {
			shifted = len(changes) - 1
		}
		section, err = findSection(ctx, tx, sectionID)
		return err
	})
	if err != nil {
		return SectionView{}, err
	}
	metrics.ObserveMutation("section", "reorder", shifted)
	return sectionView(section), nil
}

func (s *Service) ownSection(ctx context.Context, userID, sectionID string) (store.Section, error) {
	if !util.ValidID(sectionID) {
		return store.Section{}, notFound()
	}
	section, err := s.store.GetSection(ctx, userID, sectionID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Section{}, notFound()
	}
	return section, err
}

// findSection re-reads a section inside the locked scope; a concurrent delete
// that committed first makes it disappear.
func findSection(ctx context.Context, tx store.Tx, sectionID string) (store.Section, error) {
	sections, err := tx.Sections(ctx)
	if err != nil {
		return store.Section{}, err
	}
	for _, section := range sections {
		if section.ID == sectionID {
			return section, nil
		}
	}
	return store.Section{}, notFound()
}

func sectionName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", invalidField("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxSectionName {
		return "", invalidField("name", "must be at most 100 characters")
	}
	return name, nil
}

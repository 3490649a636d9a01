package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"hackerfolio/api/internal/component"
	"hackerfolio/api/internal/metrics"
	"hackerfolio/api/internal/position"
	"hackerfolio/api/internal/store"
	"hackerfolio/api/internal/util"
)

type CreateComponentRequest struct {
	Type component.Type  `json:"type"`
	Data json.RawMessage `json:"data"`
}

type UpdateComponentRequest struct {
	Data json.RawMessage `json:"data"`
}

func (s *Service) ListComponents(ctx context.Context, userID, sectionID string) ([]ComponentView, error) {
	section, err := s.ownSection(ctx, userID, sectionID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListComponents(ctx, userID, section.ID)
	if err != nil {
		return nil, err
	}
	return componentViews(items), nil
}

// CreateComponent validates data against its type and appends the component
// to the section.
func (s *Service) CreateComponent(ctx context.Context, userID, sectionID string, req CreateComponentRequest) (ComponentView, error) {
	section, err := s.ownSection(ctx, userID, sectionID)
	if err != nil {
		return ComponentView{}, err
	}
	if !req.Type.Valid() {
		return ComponentView{}, invalidField("type", "must be one of the supported component types")
	}
	data, err := decodeData(req.Type, req.Data)
	if err != nil {
		return ComponentView{}, err
	}

	var created store.Component
	err = s.store.InPortfolio(ctx, userID, section.PortfolioID, func(tx store.Tx) error {
		if _, err := findSection(ctx, tx, sectionID); err != nil {
			return err
		}
		count, err := s.componentCount(ctx, tx, sectionID)
		if err != nil {
			return err
		}
		if err := position.CheckCapacity(position.ScopeComponent, count, s.cfg.ComponentLimit); err != nil {
			return err
		}
		siblings, err := tx.Components(ctx, sectionID)
		if err != nil {
			return err
		}
		now := s.now()
		created = store.Component{
			ID:          util.NewID(),
			SectionID:   sectionID,
			PortfolioID: section.PortfolioID,
			Type:        req.Type,
			Data:        data,
			Position:    position.NextPosition(store.ComponentItems(siblings)),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.InsertComponent(ctx, created)
	})
	if err != nil {
		return ComponentView{}, s.rejected(ctx, "component_limit", err)
	}
	metrics.ObserveMutation("component", "create", 0)
	return componentView(created), nil
}

// UpdateComponent replaces a component's data. The payload is validated
// against the stored type; the type itself never changes.
func (s *Service) UpdateComponent(ctx context.Context, userID, componentID string, req UpdateComponentRequest) (ComponentView, error) {
	item, err := s.ownComponent(ctx, userID, componentID)
	if err != nil {
		return ComponentView{}, err
	}
	data, err := decodeData(item.Type, req.Data)
	if err != nil {
		return ComponentView{}, err
	}

	err = s.store.InPortfolio(ctx, userID, item.PortfolioID, func(tx store.Tx) error {
		current, err := findComponent(ctx, tx, item.SectionID, componentID)
		if err != nil {
			return err
		}
		current.Data = data
		current.UpdatedAt = s.now()
		item = current
		return tx.UpdateComponentData(ctx, componentID, data, current.UpdatedAt)
	})
	if err != nil {
		return ComponentView{}, err
	}
	metrics.ObserveMutation("component", "update", 0)
	return componentView(item), nil
}

// DeleteComponent removes a component and closes the gap in its section.
// Sections may be left empty.
func (s *Service) DeleteComponent(ctx context.Context, userID, componentID string) error {
	item, err := s.ownComponent(ctx, userID, componentID)
	if err != nil {
		return err
	}

	var shifted int
	err = s.store.InPortfolio(ctx, userID, item.PortfolioID, func(tx store.Tx) error {
		siblings, err := tx.Components(ctx, item.SectionID)
		if err != nil {
			return err
		}
		changes, err := position.CloseGap(store.ComponentItems(siblings), componentID)
		if errors.Is(err, position.ErrItemNotFound) {
			return notFound()
		}
		if err != nil {
			return err
		}
		if err := tx.DeleteComponent(ctx, componentID); err != nil {
			return err
		}
		shifted = len(changes)
		return tx.MoveComponents(ctx, item.SectionID, changes)
	})
	if err != nil {
		return err
	}
	metrics.ObserveMutation("component", "delete", shifted)
	return nil
}

func (s *Service) ReorderComponent(ctx context.Context, userID, componentID string, target int) (ComponentView, error) {
	item, err := s.ownComponent(ctx, userID, componentID)
	if err != nil {
		return ComponentView{}, err
	}

	var shifted int
	err = s.store.InPortfolio(ctx, userID, item.PortfolioID, func(tx store.Tx) error {
		siblings, err := tx.Components(ctx, item.SectionID)
		if err != nil {
			return err
		}
		changes, err := position.Reorder(store.ComponentItems(siblings), componentID, target)
		if err != nil {
			return reorderError(err)
		}
		if err := tx.MoveComponents(ctx, item.SectionID, changes); err != nil {
			return err
		}
		if len(changes) > 0 {
			shifted = len(changes) - 1
		}
		item, err = findComponent(ctx, tx, item.SectionID, componentID)
		return err
	})
	if err != nil {
		return ComponentView{}, err
	}
	metrics.ObserveMutation("component", "reorder", shifted)
	return componentView(item), nil
}

func (s *Service) ownComponent(ctx context.Context, userID, componentID string) (store.Component, error) {
	if !util.ValidID(componentID) {
		return store.Component{}, notFound()
	}
	item, err := s.store.GetComponent(ctx, userID, componentID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Component{}, notFound()
	}
	return item, err
}

func findComponent(ctx context.Context, tx store.Tx, sectionID, componentID string) (store.Component, error) {
	items, err := tx.Components(ctx, sectionID)
	if err != nil {
		return store.Component{}, err
	}
	for _, item := range items {
		if item.ID == componentID {
			return item, nil
		}
	}
	return store.Component{}, notFound()
}

// decodeData validates raw against t and returns its canonical encoding.
func decodeData(t component.Type, raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, invalidField("data", "is required")
	}
	data, err := component.Decode(t, raw)
	if err != nil {
		return nil, err
	}
	encoded, err := component.Encode(data)
	if err != nil {
		return nil, domainError(http.StatusInternalServerError, "SERVER_ERROR", "Could not encode component data", nil)
	}
	return encoded, nil
}

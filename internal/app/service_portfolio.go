package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"hackerfolio/api/internal/metrics"
	"hackerfolio/api/internal/publish"
	"hackerfolio/api/internal/store"
	"hackerfolio/api/internal/util"
)

// GetPortfolio returns the caller's portfolio with its sections and their
// components, all in position order.
func (s *Service) GetPortfolio(ctx context.Context, userID string) (PortfolioView, error) {
	portfolio, err := s.store.GetPortfolio(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return PortfolioView{}, notFound()
	}
	if err != nil {
		return PortfolioView{}, err
	}
	return s.loadPortfolioView(ctx, userID, portfolio)
}

// EnsurePortfolio creates the caller's portfolio on first save and returns
// the existing one afterwards.
func (s *Service) EnsurePortfolio(ctx context.Context, userID string) (PortfolioView, error) {
	portfolio, err := s.store.EnsurePortfolio(ctx, userID, util.NewID(), s.now())
	if err != nil {
		return PortfolioView{}, err
	}
	return s.loadPortfolioView(ctx, userID, portfolio)
}

func (s *Service) loadPortfolioView(ctx context.Context, userID string, portfolio store.Portfolio) (PortfolioView, error) {
	sections, err := s.store.ListSections(ctx, userID, portfolio.ID)
	if err != nil {
		return PortfolioView{}, err
	}
	views := make([]SectionTreeView, 0, len(sections))
	for _, section := range sections {
		items, err := s.store.ListComponents(ctx, userID, section.ID)
		if err != nil {
			return PortfolioView{}, err
		}
		views = append(views, SectionTreeView{
			SectionView: sectionView(section),
			Components:  componentViews(items),
		})
	}
	return portfolioView(portfolio, views), nil
}

// Publish writes a snapshot of the visible sections to the sink and marks the
// portfolio published. The snapshot is taken under the portfolio lock so it
// matches the positions committed with the flag.
func (s *Service) Publish(ctx context.Context, userID string) (PortfolioView, error) {
	portfolio, err := s.ownPortfolio(ctx, userID)
	if err != nil {
		return PortfolioView{}, err
	}

	err = s.store.InPortfolio(ctx, userID, portfolio.ID, func(tx store.Tx) error {
		sections, err := tx.Sections(ctx)
		if err != nil {
			return err
		}
		if len(sections) == 0 {
			return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Add at least one section before publishing", nil)
		}
		components := make(map[string][]store.Component, len(sections))
		for _, section := range sections {
			items, err := tx.Components(ctx, section.ID)
			if err != nil {
				return err
			}
			components[section.ID] = items
		}

		at := s.now()
		body, err := json.Marshal(publish.BuildSnapshot(tx.Portfolio(), sections, components, at))
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		if err := s.sink.Put(ctx, publish.SnapshotKey(userID), body); err != nil {
			return fmt.Errorf("put snapshot: %w", err)
		}
		if err := tx.SetPublished(ctx, true, at); err != nil {
			return err
		}
		portfolio = tx.Portfolio()
		return nil
	})
	if err != nil {
		s.observePublish(ctx, "publish", err)
		return PortfolioView{}, err
	}
	s.observePublish(ctx, "publish", nil)
	return s.loadPortfolioView(ctx, userID, portfolio)
}

func (s *Service) Unpublish(ctx context.Context, userID string) (PortfolioView, error) {
	portfolio, err := s.ownPortfolio(ctx, userID)
	if err != nil {
		return PortfolioView{}, err
	}

	err = s.store.InPortfolio(ctx, userID, portfolio.ID, func(tx store.Tx) error {
		if err := s.sink.Delete(ctx, publish.SnapshotKey(userID)); err != nil {
			return fmt.Errorf("delete snapshot: %w", err)
		}
		if err := tx.SetPublished(ctx, false, s.now()); err != nil {
			return err
		}
		portfolio = tx.Portfolio()
		return nil
	})
	if err != nil {
		s.observePublish(ctx, "unpublish", err)
		return PortfolioView{}, err
	}
	s.observePublish(ctx, "unpublish", nil)
	return s.loadPortfolioView(ctx, userID, portfolio)
}

func (s *Service) ownPortfolio(ctx context.Context, userID string) (store.Portfolio, error) {
	portfolio, err := s.store.GetPortfolio(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Portfolio{}, notFound()
	}
	return portfolio, err
}

func (s *Service) observePublish(ctx context.Context, operation string, err error) {
	if err == nil {
		metrics.PublishOperations.WithLabelValues(operation, "success").Inc()
		s.log(ctx).Info("portfolio "+operation+"ed", zap.String("operation", operation))
		return
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return
	}
	metrics.PublishOperations.WithLabelValues(operation, "error").Inc()
}

package app

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"hackerfolio/api/internal/config"
	"hackerfolio/api/internal/metrics"
	"hackerfolio/api/internal/position"
	"hackerfolio/api/internal/store"
)

// canDeleteSection refuses to remove the only section of an unpublished
// portfolio. Published portfolios may be emptied.
func canDeleteSection(portfolio store.Portfolio, sectionCount int) error {
	if !portfolio.IsPublished && sectionCount == 1 {
		return domainError(http.StatusConflict, "CANNOT_DELETE_LAST_REQUIRED",
			"An unpublished portfolio must keep at least one section", nil)
	}
	return nil
}

// componentCount is the number of components the capacity guard compares
// against the limit for a new component in sectionID.
func (s *Service) componentCount(ctx context.Context, tx store.Tx, sectionID string) (int, error) {
	if s.cfg.ComponentLimitScope == config.LimitScopePortfolio {
		return tx.CountComponents(ctx)
	}
	items, err := tx.Components(ctx, sectionID)
	return len(items), err
}

// rejected records a guard refusal. Other errors pass through untouched.
func (s *Service) rejected(ctx context.Context, reason string, err error) error {
	var limit *position.LimitError
	if errors.As(err, &limit) {
		metrics.GuardRejections.WithLabelValues(reason).Inc()
		s.log(ctx).Info("capacity guard rejected insert",
			zap.String("scope", limit.Scope),
			zap.Int("limit", limit.Limit),
			zap.String("component_limit_scope", s.cfg.ComponentLimitScope))
		return limitReached(limit)
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr.Code == "CANNOT_DELETE_LAST_REQUIRED" {
		metrics.GuardRejections.WithLabelValues(reason).Inc()
		s.log(ctx).Info("deletion guard rejected delete")
	}
	return err
}

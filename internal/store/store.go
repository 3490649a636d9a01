package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"hackerfolio/api/internal/position"
)

var (
	// ErrNotFound covers missing rows and rows owned by another user.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned by CreateUser for a duplicate email.
	ErrEmailTaken = errors.New("email already registered")
)

// Tx is a portfolio-scoped unit of work. The owning portfolio is locked for
// the lifetime of the Tx, so reads and writes made through it cannot interleave
// with another mutation of the same portfolio. Returning an error from the
// callback passed to InPortfolio discards every write.
type Tx interface {
	Portfolio() Portfolio

	// Sections returns the portfolio's sections ordered by position.
	Sections(ctx context.Context) ([]Section, error)
	InsertSection(ctx context.Context, section Section) error
	// UpdateSection persists name, visibility and updated_at.
	UpdateSection(ctx context.Context, section Section) error
	DeleteSection(ctx context.Context, sectionID string) error
	MoveSections(ctx context.Context, changes []position.Change) error

	// Components returns one section's components ordered by position.
	Components(ctx context.Context, sectionID string) ([]Component, error)
	// CountComponents counts components across every section of the portfolio.
	CountComponents(ctx context.Context) (int, error)
	InsertComponent(ctx context.Context, item Component) error
	UpdateComponentData(ctx context.Context, componentID string, data json.RawMessage, updatedAt time.Time) error
	DeleteComponent(ctx context.Context, componentID string) error
	MoveComponents(ctx context.Context, sectionID string, changes []position.Change) error

	SetPublished(ctx context.Context, published bool, at time.Time) error
}

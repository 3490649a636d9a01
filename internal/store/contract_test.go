package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hackerfolio/api/internal/component"
	"hackerfolio/api/internal/position"
	"hackerfolio/api/internal/util"
)

// portfolioStore is the surface shared by PostgresStore and MemoryStore.
type portfolioStore interface {
	CreateUser(ctx context.Context, user User) error
	GetUserByEmail(ctx context.Context, email string) (User, error)
	EnsurePortfolio(ctx context.Context, userID, portfolioID string, now time.Time) (Portfolio, error)
	GetPortfolio(ctx context.Context, userID string) (Portfolio, error)
	ListSections(ctx context.Context, userID, portfolioID string) ([]Section, error)
	GetSection(ctx context.Context, userID, sectionID string) (Section, error)
	ListComponents(ctx context.Context, userID, sectionID string) ([]Component, error)
	GetComponent(ctx context.Context, userID, componentID string) (Component, error)
	InPortfolio(ctx context.Context, userID, portfolioID string, fn func(Tx) error) error
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	ConsumeRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

func seedUser(t *testing.T, s portfolioStore, email string) (User, Portfolio) {
	t.Helper()
	ctx := context.Background()
	user := User{ID: util.NewID(), Email: email, DisplayName: email, PasswordHash: "x", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateUser(ctx, user))
	portfolio, err := s.EnsurePortfolio(ctx, user.ID, util.NewID(), time.Now().UTC())
	require.NoError(t, err)
	return user, portfolio
}

func addSections(t *testing.T, s portfolioStore, userID, portfolioID string, names ...string) []Section {
	t.Helper()
	var created []Section
	err := s.InPortfolio(context.Background(), userID, portfolioID, func(tx Tx) error {
		existing, err := tx.Sections(context.Background())
		if err != nil {
			return err
		}
		next := position.NextPosition(SectionItems(existing))
		for _, name := range names {
			now := time.Now().UTC()
			section := Section{ID: util.NewID(), Name: name, Visible: true, Position: next, CreatedAt: now, UpdatedAt: now}
			if err := tx.InsertSection(context.Background(), section); err != nil {
				return err
			}
			section.PortfolioID = portfolioID
			created = append(created, section)
			next++
		}
		return nil
	})
	require.NoError(t, err)
	return created
}

func sectionNames(sections []Section) []string {
	names := make([]string, len(sections))
	for i, section := range sections {
		names[i] = section.Name
	}
	return names
}

func runStoreContract(t *testing.T, newStore func(t *testing.T) portfolioStore) {
	ctx := context.Background()

	t.Run("ensure portfolio is idempotent", func(t *testing.T) {
		s := newStore(t)
		user, first := seedUser(t, s, "idempotent@example.com")
		second, err := s.EnsurePortfolio(ctx, user.ID, util.NewID(), time.Now())
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		got, err := s.GetPortfolio(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		assert.False(t, got.IsPublished)
	})

	t.Run("duplicate email", func(t *testing.T) {
		s := newStore(t)
		seedUser(t, s, "dup@example.com")
		err := s.CreateUser(ctx, User{ID: util.NewID(), Email: "dup@example.com", DisplayName: "d", PasswordHash: "x", CreatedAt: time.Now()})
		require.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("reorder and close gap", func(t *testing.T) {
		s := newStore(t)
		user, portfolio := seedUser(t, s, "order@example.com")
		sections := addSections(t, s, user.ID, portfolio.ID, "A", "B", "C", "D")

		err := s.InPortfolio(ctx, user.ID, portfolio.ID, func(tx Tx) error {
			current, err := tx.Sections(ctx)
			if err != nil {
				return err
			}
			changes, err := position.Reorder(SectionItems(current), sections[3].ID, 0)
			if err != nil {
				return err
			}
			return tx.MoveSections(ctx, changes)
		})
		require.NoError(t, err)

		listed, err := s.ListSections(ctx, user.ID, portfolio.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"D", "A", "B", "C"}, sectionNames(listed))

		err = s.InPortfolio(ctx, user.ID, portfolio.ID, func(tx Tx) error {
			current, err := tx.Sections(ctx)
			if err != nil {
				return err
			}
			changes, err := position.CloseGap(SectionItems(current), sections[0].ID)
			if err != nil {
				return err
			}
			if err := tx.DeleteSection(ctx, sections[0].ID); err != nil {
				return err
			}
			return tx.MoveSections(ctx, changes)
		})
		require.NoError(t, err)

		listed, err = s.ListSections(ctx, user.ID, portfolio.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"D", "B", "C"}, sectionNames(listed))
		require.NoError(t, position.CheckContiguous(SectionItems(listed)))
	})

	t.Run("failed callback rolls back", func(t *testing.T) {
		s := newStore(t)
		user, portfolio := seedUser(t, s, "rollback@example.com")
		sections := addSections(t, s, user.ID, portfolio.ID, "A", "B")
		boom := errors.New("boom")

		err := s.InPortfolio(ctx, user.ID, portfolio.ID, func(tx Tx) error {
			if err := tx.MoveSections(ctx, []position.Change{
				{ID: sections[0].ID, From: 0, To: 1},
				{ID: sections[1].ID, From: 1, To: 0},
			}); err != nil {
				return err
			}
			if err := tx.DeleteSection(ctx, sections[0].ID); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		listed, err := s.ListSections(ctx, user.ID, portfolio.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, sectionNames(listed))
	})

	t.Run("stale move is a contiguity failure", func(t *testing.T) {
		s := newStore(t)
		user, portfolio := seedUser(t, s, "stale@example.com")
		sections := addSections(t, s, user.ID, portfolio.ID, "A", "B")
		componentID := util.NewID()
		now := time.Now().UTC()
		require.NoError(t, s.InPortfolio(ctx, user.ID, portfolio.ID, func(tx Tx) error {
			return tx.InsertComponent(ctx, Component{
				ID: componentID, SectionID: sections[0].ID, Type: component.TypeText,
				Data: json.RawMessage(`{"content":"hi"}`), Position: 0, CreatedAt: now, UpdatedAt: now,
			})
		}))

		err := s.InPortfolio(ctx, user.ID, portfolio.ID, func(tx Tx) error {
			return tx.MoveSections(ctx, []position.Change{{ID: sections[1].ID, From: 0, To: 1}})
		})
		require.ErrorIs(t, err, position.ErrNotContiguous)
		assert.NotErrorIs(t, err, ErrNotFound)

		err = s.InPortfolio(ctx, user.ID, portfolio.ID, func(tx Tx) error {
			return tx.MoveComponents(ctx, sections[0].ID, []position.Change{{ID: componentID, From: 3, To: 0}})
		})
		require.ErrorIs(t, err, position.ErrNotContiguous)
		assert.NotErrorIs(t, err, ErrNotFound)

		listed, err := s.ListSections(ctx, user.ID, portfolio.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, sectionNames(listed))
	})

	t.Run("components", func(t *testing.T) {
		s := newStore(t)
		user, portfolio := seedUser(t, s, "components@example.com")
		section := addSections(t, s, user.ID, portfolio.ID, "Work")[0]
		ids := []string{util.NewID(), util.NewID()}

		err := s.InPortfolio(ctx, user.ID, portfolio.ID, func(tx Tx) error {
			for i, id := range ids {
				now := time.Now().UTC()
				if err := tx.InsertComponent(ctx, Component{
					ID: id, SectionID: section.ID, Type: component.TypeText,
					Data: json.RawMessage(`{"content":"hi"}`), Position: i, CreatedAt: now, UpdatedAt: now,
				}); err != nil {
					return err
				}
			}
			count, err := tx.CountComponents(ctx)
			if err != nil {
				return err
			}
			if count != 2 {
				return errors.New("expected two components")
			}
			return tx.UpdateComponentData(ctx, ids[1], json.RawMessage(`{"content":"bye"}`), time.Now().UTC())
		})
		require.NoError(t, err)

		got, err := s.GetComponent(ctx, user.ID, ids[1])
		require.NoError(t, err)
		assert.Equal(t, portfolio.ID, got.PortfolioID)
		assert.Equal(t, section.ID, got.SectionID)
		assert.Equal(t, 1, got.Position)
		assert.JSONEq(t, `{"content":"bye"}`, string(got.Data))

		listed, err := s.ListComponents(ctx, user.ID, section.ID)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, ids[0], listed[0].ID)

		err = s.InPortfolio(ctx, user.ID, portfolio.ID, func(tx Tx) error {
			return tx.DeleteSection(ctx, section.ID)
		})
		require.NoError(t, err)
		_, err = s.GetComponent(ctx, user.ID, ids[0])
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("other users see nothing", func(t *testing.T) {
		s := newStore(t)
		owner, portfolio := seedUser(t, s, "owner@example.com")
		intruder, _ := seedUser(t, s, "intruder@example.com")
		section := addSections(t, s, owner.ID, portfolio.ID, "Private")[0]

		_, err := s.GetSection(ctx, intruder.ID, section.ID)
		require.ErrorIs(t, err, ErrNotFound)

		listed, err := s.ListSections(ctx, intruder.ID, portfolio.ID)
		require.NoError(t, err)
		assert.Empty(t, listed)

		err = s.InPortfolio(ctx, intruder.ID, portfolio.ID, func(Tx) error {
			t.Fatal("callback must not run for a foreign portfolio")
			return nil
		})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("refresh session is consumed once", func(t *testing.T) {
		s := newStore(t)
		user, _ := seedUser(t, s, "refresh@example.com")
		require.NoError(t, s.SaveRefreshSession(ctx, "live", user.ID, time.Now().Add(time.Hour)))
		require.NoError(t, s.SaveRefreshSession(ctx, "revoked", user.ID, time.Now().Add(time.Hour)))
		require.NoError(t, s.RevokeRefreshSession(ctx, "revoked"))

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins []string
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				userID, err := s.ConsumeRefreshSession(ctx, "live")
				if err != nil {
					assert.ErrorIs(t, err, ErrNotFound)
					return
				}
				mu.Lock()
				wins = append(wins, userID)
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, []string{user.ID}, wins)

		_, err := s.ConsumeRefreshSession(ctx, "revoked")
		require.ErrorIs(t, err, ErrNotFound)
		_, err = s.ConsumeRefreshSession(ctx, "never-issued")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("publish flag", func(t *testing.T) {
		s := newStore(t)
		user, portfolio := seedUser(t, s, "publish@example.com")
		at := time.Now().UTC().Truncate(time.Second)

		err := s.InPortfolio(ctx, user.ID, portfolio.ID, func(tx Tx) error {
			if err := tx.SetPublished(ctx, true, at); err != nil {
				return err
			}
			if !tx.Portfolio().IsPublished {
				return errors.New("tx portfolio not updated")
			}
			return nil
		})
		require.NoError(t, err)

		got, err := s.GetPortfolio(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, got.IsPublished)
		require.NotNil(t, got.PublishedAt)
		assert.True(t, got.PublishedAt.Equal(at))
	})
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hackerfolio/api/internal/component"
	"hackerfolio/api/internal/position"
)

const (
	portfolioColumns = `id, user_id, is_published, published_at, created_at, updated_at`
	sectionColumns   = `s.id, s.portfolio_id, s.name, s.visible, s.position, s.created_at, s.updated_at`
	componentColumns = `c.id, c.section_id, s.portfolio_id, c.type, c.data, c.position, c.created_at, c.updated_at`
)

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// asUser runs fn in a transaction whose row-level-security identity is userID.
func (s *PostgresStore) asUser(ctx context.Context, userID string, readOnly bool, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT set_config('app.current_user_id', $1, true)`, userID); err != nil {
		return fmt.Errorf("set current user: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPortfolio(ctx context.Context, userID string) (Portfolio, error) {
	var portfolio Portfolio
	err := s.asUser(ctx, userID, true, func(tx *sql.Tx) error {
		var err error
		portfolio, err = scanPortfolio(tx.QueryRowContext(ctx,
			`SELECT `+portfolioColumns+` FROM portfolios WHERE user_id=$1`, userID))
		return err
	})
	return portfolio, err
}

func (s *PostgresStore) EnsurePortfolio(ctx context.Context, userID, portfolioID string, now time.Time) (Portfolio, error) {
	var portfolio Portfolio
	err := s.asUser(ctx, userID, false, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO portfolios (id, user_id, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT (user_id) DO NOTHING
		`, portfolioID, userID, now); err != nil {
			return fmt.Errorf("ensure portfolio: %w", err)
		}
		var err error
		portfolio, err = scanPortfolio(tx.QueryRowContext(ctx,
			`SELECT `+portfolioColumns+` FROM portfolios WHERE user_id=$1`, userID))
		return err
	})
	return portfolio, err
}

func (s *PostgresStore) ListSections(ctx context.Context, userID, portfolioID string) ([]Section, error) {
	var sections []Section
	err := s.asUser(ctx, userID, true, func(tx *sql.Tx) error {
		var err error
		sections, err = querySections(ctx, tx, `
			SELECT `+sectionColumns+`
			FROM sections s
			JOIN portfolios p ON p.id = s.portfolio_id
			WHERE s.portfolio_id=$1 AND p.user_id=$2
			ORDER BY s.position
		`, portfolioID, userID)
		return err
	})
	return sections, err
}

func (s *PostgresStore) GetSection(ctx context.Context, userID, sectionID string) (Section, error) {
	var section Section
	err := s.asUser(ctx, userID, true, func(tx *sql.Tx) error {
		var err error
		section, err = scanSection(tx.QueryRowContext(ctx, `
			SELECT `+sectionColumns+`
			FROM sections s
			JOIN portfolios p ON p.id = s.portfolio_id
			WHERE s.id=$1 AND p.user_id=$2
		`, sectionID, userID))
		return err
	})
	return section, err
}

func (s *PostgresStore) ListComponents(ctx context.Context, userID, sectionID string) ([]Component, error) {
	var items []Component
	err := s.asUser(ctx, userID, true, func(tx *sql.Tx) error {
		var err error
		items, err = queryComponents(ctx, tx, `
			SELECT `+componentColumns+`
			FROM components c
			JOIN sections s ON s.id = c.section_id
			JOIN portfolios p ON p.id = s.portfolio_id
			WHERE c.section_id=$1 AND p.user_id=$2
			ORDER BY c.position
		`, sectionID, userID)
		return err
	})
	return items, err
}

func (s *PostgresStore) GetComponent(ctx context.Context, userID, componentID string) (Component, error) {
	var item Component
	err := s.asUser(ctx, userID, true, func(tx *sql.Tx) error {
		var err error
		item, err = scanComponent(tx.QueryRowContext(ctx, `
			SELECT `+componentColumns+`
			FROM components c
			JOIN sections s ON s.id = c.section_id
			JOIN portfolios p ON p.id = s.portfolio_id
			WHERE c.id=$1 AND p.user_id=$2
		`, componentID, userID))
		return err
	})
	return item, err
}

// InPortfolio locks the portfolio row owned by userID and runs fn against it.
func (s *PostgresStore) InPortfolio(ctx context.Context, userID, portfolioID string, fn func(Tx) error) error {
	return s.asUser(ctx, userID, false, func(tx *sql.Tx) error {
		portfolio, err := scanPortfolio(tx.QueryRowContext(ctx,
			`SELECT `+portfolioColumns+` FROM portfolios WHERE id=$1 AND user_id=$2 FOR UPDATE`, portfolioID, userID))
		if err != nil {
			return err
		}
		return fn(&postgresTx{tx: tx, portfolio: portfolio})
	})
}

type postgresTx struct {
	tx        *sql.Tx
	portfolio Portfolio
}

func (t *postgresTx) Portfolio() Portfolio {
	return t.portfolio
}

func (t *postgresTx) Sections(ctx context.Context) ([]Section, error) {
	return querySections(ctx, t.tx, `
		SELECT `+sectionColumns+`
		FROM sections s
		WHERE s.portfolio_id=$1
		ORDER BY s.position
	`, t.portfolio.ID)
}

func (t *postgresTx) InsertSection(ctx context.Context, section Section) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sections (id, portfolio_id, name, visible, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, section.ID, t.portfolio.ID, section.Name, section.Visible, section.Position, section.CreatedAt, section.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert section: %w", err)
	}
	return nil
}

func (t *postgresTx) UpdateSection(ctx context.Context, section Section) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE sections SET name=$3, visible=$4, updated_at=$5
		WHERE id=$1 AND portfolio_id=$2
	`, section.ID, t.portfolio.ID, section.Name, section.Visible, section.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return expectOneRow(result)
}

func (t *postgresTx) DeleteSection(ctx context.Context, sectionID string) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM sections WHERE id=$1 AND portfolio_id=$2`, sectionID, t.portfolio.ID)
	if err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return expectOneRow(result)
}

func (t *postgresTx) MoveSections(ctx context.Context, changes []position.Change) error {
	for _, change := range changes {
		result, err := t.tx.ExecContext(ctx, `
			UPDATE sections SET position=$3
			WHERE id=$1 AND portfolio_id=$2 AND position=$4
		`, change.ID, t.portfolio.ID, change.To, change.From)
		if err != nil {
			return fmt.Errorf("move section %s: %w", change.ID, err)
		}
		if err := expectMoved(result); err != nil {
			return fmt.Errorf("move section %s from %d: %w", change.ID, change.From, err)
		}
	}
	return nil
}

func (t *postgresTx) Components(ctx context.Context, sectionID string) ([]Component, error) {
	return queryComponents(ctx, t.tx, `
		SELECT `+componentColumns+`
		FROM components c
		JOIN sections s ON s.id = c.section_id
		WHERE c.section_id=$1 AND s.portfolio_id=$2
		ORDER BY c.position
	`, sectionID, t.portfolio.ID)
}

func (t *postgresTx) CountComponents(ctx context.Context) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM components c
		JOIN sections s ON s.id = c.section_id
		WHERE s.portfolio_id=$1
	`, t.portfolio.ID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count components: %w", err)
	}
	return count, nil
}

func (t *postgresTx) InsertComponent(ctx context.Context, item Component) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO components (id, section_id, type, data, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.SectionID, string(item.Type), string(item.Data), item.Position, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert component: %w", err)
	}
	return nil
}

func (t *postgresTx) UpdateComponentData(ctx context.Context, componentID string, data json.RawMessage, updatedAt time.Time) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE components c SET data=$3, updated_at=$4
		FROM sections s
		WHERE c.id=$1 AND s.id = c.section_id AND s.portfolio_id=$2
	`, componentID, t.portfolio.ID, string(data), updatedAt)
	if err != nil {
		return fmt.Errorf("update component: %w", err)
	}
	return expectOneRow(result)
}

func (t *postgresTx) DeleteComponent(ctx context.Context, componentID string) error {
	result, err := t.tx.ExecContext(ctx, `
		DELETE FROM components c
		USING sections s
		WHERE c.id=$1 AND s.id = c.section_id AND s.portfolio_id=$2
	`, componentID, t.portfolio.ID)
	if err != nil {
		return fmt.Errorf("delete component: %w", err)
	}
	return expectOneRow(result)
}

func (t *postgresTx) MoveComponents(ctx context.Context, sectionID string, changes []position.Change) error {
	for _, change := range changes {
		result, err := t.tx.ExecContext(ctx, `
			UPDATE components c SET position=$3
			FROM sections s
			WHERE c.id=$1 AND c.section_id=$2 AND c.position=$4
				AND s.id = c.section_id AND s.portfolio_id=$5
		`, change.ID, sectionID, change.To, change.From, t.portfolio.ID)
		if err != nil {
			return fmt.Errorf("move component %s: %w", change.ID, err)
		}
		if err := expectMoved(result); err != nil {
			return fmt.Errorf("move component %s from %d: %w", change.ID, change.From, err)
		}
	}
	return nil
}

func (t *postgresTx) SetPublished(ctx context.Context, published bool, at time.Time) error {
	var publishedAt *time.Time
	if published {
		publishedAt = &at
	}
	_, err := t.tx.ExecContext(ctx, `
		UPDATE portfolios SET is_published=$2, published_at=$3, updated_at=$4
		WHERE id=$1
	`, t.portfolio.ID, published, publishedAt, at)
	if err != nil {
		return fmt.Errorf("set published: %w", err)
	}
	t.portfolio.IsPublished = published
	t.portfolio.PublishedAt = publishedAt
	t.portfolio.UpdatedAt = at
	return nil
}

func expectOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected != 1 {
		return ErrNotFound
	}
	return nil
}

// expectMoved reports a move whose row was not at the planned position.
func expectMoved(result sql.Result) error {
	if err := expectOneRow(result); errors.Is(err, ErrNotFound) {
		return position.ErrNotContiguous
	} else if err != nil {
		return err
	}
	return nil
}

func scanPortfolio(row rowScanner) (Portfolio, error) {
	var (
		portfolio   Portfolio
		publishedAt sql.NullTime
	)
	err := row.Scan(&portfolio.ID, &portfolio.UserID, &portfolio.IsPublished, &publishedAt, &portfolio.CreatedAt, &portfolio.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Portfolio{}, ErrNotFound
	}
	if err != nil {
		return Portfolio{}, fmt.Errorf("scan portfolio: %w", err)
	}
	if publishedAt.Valid {
		portfolio.PublishedAt = &publishedAt.Time
	}
	return portfolio, nil
}

func scanSection(row rowScanner) (Section, error) {
	var section Section
	err := row.Scan(&section.ID, &section.PortfolioID, &section.Name, &section.Visible, &section.Position, &section.CreatedAt, &section.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Section{}, ErrNotFound
	}
	if err != nil {
		return Section{}, fmt.Errorf("scan section: %w", err)
	}
	return section, nil
}

func scanComponent(row rowScanner) (Component, error) {
	var (
		item Component
		typ  string
		data []byte
	)
	err := row.Scan(&item.ID, &item.SectionID, &item.PortfolioID, &typ, &data, &item.Position, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Component{}, ErrNotFound
	}
	if err != nil {
		return Component{}, fmt.Errorf("scan component: %w", err)
	}
	item.Type = component.Type(typ)
	item.Data = json.RawMessage(data)
	return item, nil
}

func querySections(ctx context.Context, q queryer, query string, args ...any) ([]Section, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	sections := make([]Section, 0)
	for rows.Next() {
		section, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

func queryComponents(ctx context.Context, q queryer, query string, args ...any) ([]Component, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	defer rows.Close()

	items := make([]Component, 0)
	for rows.Next() {
		item, err := scanComponent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	return items, nil
}

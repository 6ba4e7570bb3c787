package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"worklenz/finance/internal/models"
)

// RateCardSpec describes an organization rate card on create or update.
type RateCardSpec struct {
	Name     string          `json:"name"`
	Currency string          `json:"currency"`
	Roles    []RateCardInput `json:"roles"`
}

func (spec *RateCardSpec) normalize() error {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return fmt.Errorf("rate card name must not be empty: %w", ErrInvalid)
	}
	spec.Currency = strings.ToUpper(strings.TrimSpace(spec.Currency))
	if spec.Currency == "" {
		spec.Currency = "USD"
	}
	seen := make(map[string]struct{}, len(spec.Roles))
	for _, r := range spec.Roles {
		if _, dup := seen[r.JobTitleID]; dup {
			return fmt.Errorf("job title %s listed twice: %w", r.JobTitleID, ErrInvalid)
		}
		seen[r.JobTitleID] = struct{}{}
	}
	return validateRateCardInputs(spec.Roles)
}

// CreateRateCard stores a new organization rate card with its roles.
func (s *Store) CreateRateCard(ctx context.Context, spec RateCardSpec) (models.RateCard, error) {
	if err := spec.normalize(); err != nil {
		return models.RateCard{}, err
	}

	id := newID()
	var out models.RateCard
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		if err := checkRateCardName(ctx, tx, spec.Name, ""); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO finance_rate_cards(id, name, currency) VALUES(?, ?, ?)`, id, spec.Name, spec.Currency); err != nil {
			return fmt.Errorf("insert rate card: %w", err)
		}
		if err := replaceRateCardRoles(ctx, tx, id, spec.Roles); err != nil {
			return err
		}
		var err error
		out, err = getRateCard(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.RateCard{}, err
	}
	return out, nil
}

// ListRateCards returns all organization rate cards by name, roles included.
func (s *Store) ListRateCards(ctx context.Context) ([]models.RateCard, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, currency, created_at, updated_at FROM finance_rate_cards ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list rate cards: %w", err)
	}
	defer rows.Close()

	cards := []models.RateCard{}
	index := map[string]int{}
	for rows.Next() {
		var c models.RateCard
		if err := rows.Scan(&c.ID, &c.Name, &c.Currency, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rate card: %w", err)
		}
		c.Roles = []models.RateCardRate{}
		index[c.ID] = len(cards)
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	roleRows, err := s.db.QueryContext(ctx, `SELECT r.rate_card_id, r.job_title_id, jt.name, r.rate, r.man_day_rate
        FROM finance_rate_card_roles r
        JOIN job_titles jt ON jt.id = r.job_title_id
        ORDER BY jt.name`)
	if err != nil {
		return nil, fmt.Errorf("list rate card roles: %w", err)
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var cardID string
		var r models.RateCardRate
		if err := roleRows.Scan(&cardID, &r.JobTitleID, &r.JobTitle, &r.Rate, &r.ManDayRate); err != nil {
			return nil, fmt.Errorf("scan rate card role: %w", err)
		}
		if i, ok := index[cardID]; ok {
			cards[i].Roles = append(cards[i].Roles, r)
		}
	}
	return cards, roleRows.Err()
}

// GetRateCard fetches one organization rate card.
func (s *Store) GetRateCard(ctx context.Context, id string) (models.RateCard, error) {
	return getRateCard(ctx, s.db, id)
}

func getRateCard(ctx context.Context, q querier, id string) (models.RateCard, error) {
	var c models.RateCard
	err := q.QueryRowContext(ctx, `SELECT id, name, currency, created_at, updated_at FROM finance_rate_cards WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Currency, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RateCard{}, fmt.Errorf("rate card %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.RateCard{}, fmt.Errorf("get rate card: %w", err)
	}

	rows, err := q.QueryContext(ctx, `SELECT r.job_title_id, jt.name, r.rate, r.man_day_rate
        FROM finance_rate_card_roles r
        JOIN job_titles jt ON jt.id = r.job_title_id
        WHERE r.rate_card_id = ?
        ORDER BY jt.name`, id)
	if err != nil {
		return models.RateCard{}, fmt.Errorf("list rate card roles: %w", err)
	}
	defer rows.Close()

	c.Roles = []models.RateCardRate{}
	for rows.Next() {
		var r models.RateCardRate
		if err := rows.Scan(&r.JobTitleID, &r.JobTitle, &r.Rate, &r.ManDayRate); err != nil {
			return models.RateCard{}, fmt.Errorf("scan rate card role: %w", err)
		}
		c.Roles = append(c.Roles, r)
	}
	return c, rows.Err()
}

// UpdateRateCard renames a rate card and replaces its roles.
func (s *Store) UpdateRateCard(ctx context.Context, id string, spec RateCardSpec) (models.RateCard, error) {
	if err := spec.normalize(); err != nil {
		return models.RateCard{}, err
	}

	var out models.RateCard
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		if _, err := getRateCard(ctx, tx, id); err != nil {
			return err
		}
		if err := checkRateCardName(ctx, tx, spec.Name, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE finance_rate_cards SET name = ?, currency = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			spec.Name, spec.Currency, id)
		if err != nil {
			return fmt.Errorf("update rate card: %w", err)
		}
		if err := replaceRateCardRoles(ctx, tx, id, spec.Roles); err != nil {
			return err
		}
		out, err = getRateCard(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.RateCard{}, err
	}
	return out, nil
}

// DeleteRateCard removes an organization rate card. Roles already imported
// into projects are kept.
func (s *Store) DeleteRateCard(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM finance_rate_cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rate card: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("rate card %s: %w", id, ErrNotFound)
	}
	return nil
}

// ImportRateCard copies the roles of an organization rate card into a
// project. Existing project roles for the same job titles take the card's
// rates; other project roles are left alone.
func (s *Store) ImportRateCard(ctx context.Context, projectID, cardID string) ([]models.RateCardRole, error) {
	var out []models.RateCardRole
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		if _, err := getProject(ctx, tx, projectID); err != nil {
			return err
		}
		card, err := getRateCard(ctx, tx, cardID)
		if err != nil {
			return err
		}
		roles := make([]RateCardInput, 0, len(card.Roles))
		for _, r := range card.Roles {
			roles = append(roles, RateCardInput{JobTitleID: r.JobTitleID, Rate: r.Rate, ManDayRate: r.ManDayRate})
		}
		if err := upsertRateCardRoles(ctx, tx, projectID, roles); err != nil {
			return err
		}
		out, err = listRateCardRoles(ctx, tx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("rate card imported", "project_id", projectID, "rate_card_id", cardID, "roles", len(out))
	return out, nil
}

func checkRateCardName(ctx context.Context, tx *sql.Tx, name, selfID string) error {
	taken, err := exists(ctx, tx, `SELECT 1 FROM finance_rate_cards WHERE name = ? AND id <> ?`, name, selfID)
	if err != nil {
		return fmt.Errorf("check rate card name: %w", err)
	}
	if taken {
		return fmt.Errorf("rate card %q already exists: %w", name, ErrConflict)
	}
	return nil
}

func replaceRateCardRoles(ctx context.Context, tx *sql.Tx, cardID string, roles []RateCardInput) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM finance_rate_card_roles WHERE rate_card_id = ?`, cardID); err != nil {
		return fmt.Errorf("clear rate card roles: %w", err)
	}
	for _, r := range roles {
		ok, err := exists(ctx, tx, `SELECT 1 FROM job_titles WHERE id = ?`, r.JobTitleID)
		if err != nil {
			return fmt.Errorf("check job title: %w", err)
		}
		if !ok {
			return fmt.Errorf("job title %s: %w", r.JobTitleID, ErrNotFound)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO finance_rate_card_roles(rate_card_id, job_title_id, rate, man_day_rate) VALUES(?, ?, ?, ?)`,
			cardID, r.JobTitleID, r.Rate, r.ManDayRate)
		if err != nil {
			return fmt.Errorf("insert rate card role: %w", err)
		}
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"worklenz/finance/internal/models"
)

const projectColumns = `id, name, currency, budget, calculation_method, hours_per_day, created_at, updated_at`

// ProjectInput carries the fields of a new project.
type ProjectInput struct {
	Name              string
	Currency          string
	Budget            float64
	CalculationMethod models.CalculationMethod
	HoursPerDay       float64
}

// FinanceSettings is a partial update of a project's finance configuration.
// Nil fields are left unchanged.
type FinanceSettings struct {
	Currency          *string
	Budget            *float64
	CalculationMethod *models.CalculationMethod
	HoursPerDay       *float64
}

func scanProject(row interface{ Scan(...any) error }) (models.Project, error) {
	var p models.Project
	var method string
	err := row.Scan(&p.ID, &p.Name, &p.Currency, &p.Budget, &method, &p.HoursPerDay, &p.CreatedAt, &p.UpdatedAt)
	p.CalculationMethod = models.CalculationMethod(method)
	return p, err
}

// ListProjects retrieves all projects ordered by creation date.
func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// CreateProject persists a new project together with its default statuses.
func (s *Store) CreateProject(ctx context.Context, in ProjectInput) (models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Project{}, fmt.Errorf("project name must not be empty: %w", ErrInvalid)
	}
	if in.CalculationMethod == "" {
		in.CalculationMethod = models.MethodHourly
	}
	if _, err := models.ParseCalculationMethod(string(in.CalculationMethod)); err != nil {
		return models.Project{}, fmt.Errorf("%v: %w", err, ErrInvalid)
	}
	if in.HoursPerDay == 0 {
		in.HoursPerDay = models.DefaultHoursPerDay
	}
	if err := validateHoursPerDay(in.HoursPerDay); err != nil {
		return models.Project{}, err
	}
	if err := validateAmount("budget", in.Budget); err != nil {
		return models.Project{}, err
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}

	id := newID()
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO projects(id, name, currency, budget, calculation_method, hours_per_day) VALUES(?, ?, ?, ?, ?, ?)`,
			id, name, strings.ToUpper(in.Currency), in.Budget, string(in.CalculationMethod), in.HoursPerDay)
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		for _, st := range models.DefaultStatuses {
			_, err := tx.ExecContext(ctx, `INSERT INTO task_statuses(id, project_id, name, sort_order, color_code, color_code_dark) VALUES(?, ?, ?, ?, ?, ?)`,
				newID(), id, st.Name, st.SortOrder, st.ColorCode, st.ColorCodeDark)
			if err != nil {
				return fmt.Errorf("insert status: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.Project{}, err
	}
	s.logger.Info("project created", "project_id", id, "calculation_method", in.CalculationMethod)
	return s.GetProject(ctx, id)
}

// GetProject fetches a single project by id.
func (s *Store) GetProject(ctx context.Context, id string) (models.Project, error) {
	return getProject(ctx, s.db, id)
}

func getProject(ctx context.Context, q querier, id string) (models.Project, error) {
	p, err := scanProject(q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// UpdateFinanceSettings changes the currency, budget or costing policy of a project.
func (s *Store) UpdateFinanceSettings(ctx context.Context, id string, in FinanceSettings) (models.Project, error) {
	current, err := s.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}

	if in.Currency != nil {
		c := strings.ToUpper(strings.TrimSpace(*in.Currency))
		if c == "" {
			return models.Project{}, fmt.Errorf("currency must not be empty: %w", ErrInvalid)
		}
		current.Currency = c
	}
	if in.Budget != nil {
		if err := validateAmount("budget", *in.Budget); err != nil {
			return models.Project{}, err
		}
		current.Budget = *in.Budget
	}
	if in.CalculationMethod != nil {
		m, err := models.ParseCalculationMethod(string(*in.CalculationMethod))
		if err != nil {
			return models.Project{}, fmt.Errorf("%v: %w", err, ErrInvalid)
		}
		current.CalculationMethod = m
	}
	if in.HoursPerDay != nil {
		if err := validateHoursPerDay(*in.HoursPerDay); err != nil {
			return models.Project{}, err
		}
		current.HoursPerDay = *in.HoursPerDay
	}

	_, err = s.db.ExecContext(ctx, `UPDATE projects SET currency = ?, budget = ?, calculation_method = ?, hours_per_day = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		current.Currency, current.Budget, string(current.CalculationMethod), current.HoursPerDay, id)
	if err != nil {
		return models.Project{}, fmt.Errorf("update project: %w", err)
	}
	return s.GetProject(ctx, id)
}

// UpdateProject renames a project.
func (s *Store) UpdateProject(ctx context.Context, id, name string) (models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Project{}, fmt.Errorf("project name must not be empty: %w", ErrInvalid)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE projects SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, name, id)
	if err != nil {
		return models.Project{}, fmt.Errorf("update project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Project{}, err
	}
	if affected == 0 {
		return models.Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return s.GetProject(ctx, id)
}

// DeleteProject removes a project along with its tasks, work logs, members
// and rate-card roles.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	s.logger.Info("project deleted", "project_id", id)
	return nil
}

// ListStatuses returns the statuses of a project in display order.
func (s *Store) ListStatuses(ctx context.Context, projectID string) ([]models.TaskStatus, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return listStatuses(ctx, s.db, projectID)
}

func listStatuses(ctx context.Context, q querier, projectID string) ([]models.TaskStatus, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, project_id, name, sort_order, color_code, color_code_dark
        FROM task_statuses WHERE project_id = ? ORDER BY sort_order, name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer rows.Close()

	statuses := []models.TaskStatus{}
	for rows.Next() {
		var st models.TaskStatus
		if err := rows.Scan(&st.ID, &st.ProjectID, &st.Name, &st.SortOrder, &st.ColorCode, &st.ColorCodeDark); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// ListPriorities returns the shared priorities, most severe first.
func (s *Store) ListPriorities(ctx context.Context) ([]models.TaskPriority, error) {
	return listPriorities(ctx, s.db)
}

func listPriorities(ctx context.Context, q querier) ([]models.TaskPriority, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, value, color_code, color_code_dark FROM task_priorities ORDER BY value DESC`)
	if err != nil {
		return nil, fmt.Errorf("list priorities: %w", err)
	}
	defer rows.Close()

	priorities := []models.TaskPriority{}
	for rows.Next() {
		var p models.TaskPriority
		if err := rows.Scan(&p.ID, &p.Name, &p.Value, &p.ColorCode, &p.ColorCodeDark); err != nil {
			return nil, fmt.Errorf("scan priority: %w", err)
		}
		priorities = append(priorities, p)
	}
	return priorities, rows.Err()
}

// CreatePhase appends a phase to a project.
func (s *Store) CreatePhase(ctx context.Context, projectID, name, color string) (models.ProjectPhase, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.ProjectPhase{}, fmt.Errorf("phase name must not be empty: %w", ErrInvalid)
	}
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return models.ProjectPhase{}, err
	}

	var next sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(sort_index) FROM project_phases WHERE project_id = ?`, projectID).Scan(&next); err != nil {
		return models.ProjectPhase{}, fmt.Errorf("select sort index: %w", err)
	}
	ph := models.ProjectPhase{ID: newID(), ProjectID: projectID, Name: name, ColorCode: color}
	if next.Valid {
		ph.SortIndex = int(next.Int64) + 1
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO project_phases(id, project_id, name, sort_index, color_code) VALUES(?, ?, ?, ?, ?)`,
		ph.ID, ph.ProjectID, ph.Name, ph.SortIndex, ph.ColorCode)
	if err != nil {
		return models.ProjectPhase{}, fmt.Errorf("insert phase: %w", err)
	}
	return ph, nil
}

// ListPhases returns the phases of a project in display order.
func (s *Store) ListPhases(ctx context.Context, projectID string) ([]models.ProjectPhase, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return listPhases(ctx, s.db, projectID)
}

func listPhases(ctx context.Context, q querier, projectID string) ([]models.ProjectPhase, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, project_id, name, sort_index, color_code FROM project_phases WHERE project_id = ? ORDER BY sort_index`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list phases: %w", err)
	}
	defer rows.Close()

	phases := []models.ProjectPhase{}
	for rows.Next() {
		var ph models.ProjectPhase
		if err := rows.Scan(&ph.ID, &ph.ProjectID, &ph.Name, &ph.SortIndex, &ph.ColorCode); err != nil {
			return nil, fmt.Errorf("scan phase: %w", err)
		}
		phases = append(phases, ph)
	}
	return phases, rows.Err()
}

func validateAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%s must be a non-negative number: %w", field, ErrInvalid)
	}
	return nil
}

func validateHoursPerDay(v float64) error {
	if math.IsNaN(v) || v <= 0 || v > 24 {
		return fmt.Errorf("hours per day must be within (0, 24]: %w", ErrInvalid)
	}
	return nil
}

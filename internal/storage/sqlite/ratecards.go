package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"worklenz/finance/internal/models"
	"worklenz/finance/internal/rates"
)

// RateCardInput is one role of a bulk rate-card upsert.
type RateCardInput struct {
	JobTitleID string  `json:"job_title_id"`
	Rate       float64 `json:"rate"`
	ManDayRate float64 `json:"man_day_rate"`
}

// CreateJobTitle adds a job title, or returns the existing one with the same name.
func (s *Store) CreateJobTitle(ctx context.Context, name string) (models.JobTitle, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.JobTitle{}, fmt.Errorf("job title must not be empty: %w", ErrInvalid)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO job_titles(id, name) VALUES(?, ?) ON CONFLICT(name) DO NOTHING`, newID(), name)
	if err != nil {
		return models.JobTitle{}, fmt.Errorf("insert job title: %w", err)
	}
	var jt models.JobTitle
	if err := s.db.QueryRowContext(ctx, `SELECT id, name FROM job_titles WHERE name = ?`, name).Scan(&jt.ID, &jt.Name); err != nil {
		return models.JobTitle{}, fmt.Errorf("get job title: %w", err)
	}
	return jt, nil
}

// ListJobTitles returns all job titles by name.
func (s *Store) ListJobTitles(ctx context.Context) ([]models.JobTitle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM job_titles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list job titles: %w", err)
	}
	defer rows.Close()

	titles := []models.JobTitle{}
	for rows.Next() {
		var jt models.JobTitle
		if err := rows.Scan(&jt.ID, &jt.Name); err != nil {
			return nil, fmt.Errorf("scan job title: %w", err)
		}
		titles = append(titles, jt)
	}
	return titles, rows.Err()
}

// CreateTeamMember adds a person to the team.
func (s *Store) CreateTeamMember(ctx context.Context, name, jobTitleID string) (models.TeamMember, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.TeamMember{}, fmt.Errorf("member name must not be empty: %w", ErrInvalid)
	}
	if jobTitleID != "" {
		ok, err := exists(ctx, s.db, `SELECT 1 FROM job_titles WHERE id = ?`, jobTitleID)
		if err != nil {
			return models.TeamMember{}, fmt.Errorf("check job title: %w", err)
		}
		if !ok {
			return models.TeamMember{}, fmt.Errorf("job title %s: %w", jobTitleID, ErrNotFound)
		}
	}

	tm := models.TeamMember{ID: newID(), Name: name, JobTitleID: jobTitleID}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO team_members(id, name, job_title_id) VALUES(?, ?, ?)`, tm.ID, tm.Name, nullString(jobTitleID)); err != nil {
		return models.TeamMember{}, fmt.Errorf("insert team member: %w", err)
	}
	return tm, nil
}

// AddProjectMember makes a team member part of a project.
func (s *Store) AddProjectMember(ctx context.Context, projectID, teamMemberID string) (models.ProjectMember, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return models.ProjectMember{}, err
	}
	ok, err := exists(ctx, s.db, `SELECT 1 FROM team_members WHERE id = ?`, teamMemberID)
	if err != nil {
		return models.ProjectMember{}, fmt.Errorf("check team member: %w", err)
	}
	if !ok {
		return models.ProjectMember{}, fmt.Errorf("team member %s: %w", teamMemberID, ErrNotFound)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO project_members(id, project_id, team_member_id) VALUES(?, ?, ?)
        ON CONFLICT(project_id, team_member_id) DO NOTHING`, newID(), projectID, teamMemberID)
	if err != nil {
		return models.ProjectMember{}, fmt.Errorf("insert project member: %w", err)
	}
	return s.getProjectMember(ctx, `pm.project_id = ? AND pm.team_member_id = ?`, projectID, teamMemberID)
}

const projectMemberQuery = `SELECT pm.id, pm.project_id, pm.team_member_id, tm.name, COALESCE(jt.name, ''), COALESCE(pm.rate_card_role_id, '')
    FROM project_members pm
    JOIN team_members tm ON tm.id = pm.team_member_id
    LEFT JOIN job_titles jt ON jt.id = tm.job_title_id`

func scanProjectMember(row interface{ Scan(...any) error }) (models.ProjectMember, error) {
	var m models.ProjectMember
	err := row.Scan(&m.ID, &m.ProjectID, &m.TeamMemberID, &m.Name, &m.JobTitle, &m.RateCardRoleID)
	return m, err
}

func (s *Store) getProjectMember(ctx context.Context, where string, args ...any) (models.ProjectMember, error) {
	m, err := scanProjectMember(s.db.QueryRowContext(ctx, projectMemberQuery+` WHERE `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProjectMember{}, fmt.Errorf("project member: %w", ErrNotFound)
	}
	if err != nil {
		return models.ProjectMember{}, fmt.Errorf("get project member: %w", err)
	}
	return m, nil
}

// ListProjectMembers returns the members of a project by name.
func (s *Store) ListProjectMembers(ctx context.Context, projectID string) ([]models.ProjectMember, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return listProjectMembers(ctx, s.db, projectID)
}

func listProjectMembers(ctx context.Context, q querier, projectID string) ([]models.ProjectMember, error) {
	rows, err := q.QueryContext(ctx, projectMemberQuery+` WHERE pm.project_id = ? ORDER BY tm.name, pm.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project members: %w", err)
	}
	defer rows.Close()

	members := []models.ProjectMember{}
	for rows.Next() {
		m, err := scanProjectMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListRateCardRoles returns the rate-card roles of a project by job title,
// each with the ids of the project members assigned to it.
func (s *Store) ListRateCardRoles(ctx context.Context, projectID string) ([]models.RateCardRole, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return listRateCardRoles(ctx, s.db, projectID)
}

func listRateCardRoles(ctx context.Context, q querier, projectID string) ([]models.RateCardRole, error) {
	rows, err := q.QueryContext(ctx, `SELECT r.id, r.project_id, r.job_title_id, COALESCE(jt.name, ''), r.rate, r.man_day_rate, r.updated_at
        FROM rate_card_roles r
        LEFT JOIN job_titles jt ON jt.id = r.job_title_id
        WHERE r.project_id = ?
        ORDER BY jt.name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list rate cards: %w", err)
	}
	defer rows.Close()

	roles := []models.RateCardRole{}
	index := map[string]int{}
	for rows.Next() {
		var r models.RateCardRole
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.JobTitleID, &r.JobTitle, &r.Rate, &r.ManDayRate, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rate card: %w", err)
		}
		r.Members = []string{}
		index[r.ID] = len(roles)
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	memberRows, err := q.QueryContext(ctx, `SELECT id, rate_card_role_id FROM project_members
        WHERE project_id = ? AND rate_card_role_id IS NOT NULL ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list rate card members: %w", err)
	}
	defer memberRows.Close()
	for memberRows.Next() {
		var memberID, roleID string
		if err := memberRows.Scan(&memberID, &roleID); err != nil {
			return nil, fmt.Errorf("scan rate card member: %w", err)
		}
		if i, ok := index[roleID]; ok {
			roles[i].Members = append(roles[i].Members, memberID)
		}
	}
	return roles, memberRows.Err()
}

// UpsertRateCardRoles inserts or updates the roles of a project in one
// transaction. At most one role exists per (project, job title).
func (s *Store) UpsertRateCardRoles(ctx context.Context, projectID string, roles []RateCardInput) ([]models.RateCardRole, error) {
	if err := validateRateCardInputs(roles); err != nil {
		return nil, err
	}

	var out []models.RateCardRole
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		if _, err := getProject(ctx, tx, projectID); err != nil {
			return err
		}
		if err := upsertRateCardRoles(ctx, tx, projectID, roles); err != nil {
			return err
		}
		var err error
		out, err = listRateCardRoles(ctx, tx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func validateRateCardInputs(roles []RateCardInput) error {
	for _, r := range roles {
		if r.JobTitleID == "" {
			return fmt.Errorf("job_title_id is required: %w", ErrInvalid)
		}
		if err := validateAmount("rate", r.Rate); err != nil {
			return err
		}
		if err := validateAmount("man_day_rate", r.ManDayRate); err != nil {
			return err
		}
	}
	return nil
}

func upsertRateCardRoles(ctx context.Context, tx *sql.Tx, projectID string, roles []RateCardInput) error {
	for _, r := range roles {
		ok, err := exists(ctx, tx, `SELECT 1 FROM job_titles WHERE id = ?`, r.JobTitleID)
		if err != nil {
			return fmt.Errorf("check job title: %w", err)
		}
		if !ok {
			return fmt.Errorf("job title %s: %w", r.JobTitleID, ErrNotFound)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO rate_card_roles(id, project_id, job_title_id, rate, man_day_rate) VALUES(?, ?, ?, ?, ?)
            ON CONFLICT(project_id, job_title_id) DO UPDATE SET rate = excluded.rate, man_day_rate = excluded.man_day_rate, updated_at = CURRENT_TIMESTAMP`,
			newID(), projectID, r.JobTitleID, r.Rate, r.ManDayRate)
		if err != nil {
			return fmt.Errorf("upsert rate card: %w", err)
		}
	}
	return nil
}

// UpdateRateCardRole changes the rates of one project role.
func (s *Store) UpdateRateCardRole(ctx context.Context, id string, rate, manDayRate float64) (models.RateCardRole, error) {
	if err := validateAmount("rate", rate); err != nil {
		return models.RateCardRole{}, err
	}
	if err := validateAmount("man_day_rate", manDayRate); err != nil {
		return models.RateCardRole{}, err
	}

	var out models.RateCardRole
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		var projectID string
		err := tx.QueryRowContext(ctx, `SELECT project_id FROM rate_card_roles WHERE id = ?`, id).Scan(&projectID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("rate card %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get rate card: %w", err)
		}
		_, err = tx.ExecContext(ctx, `UPDATE rate_card_roles SET rate = ?, man_day_rate = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, rate, manDayRate, id)
		if err != nil {
			return fmt.Errorf("update rate card: %w", err)
		}
		roles, err := listRateCardRoles(ctx, tx, projectID)
		if err != nil {
			return err
		}
		for _, r := range roles {
			if r.ID == id {
				out = r
			}
		}
		return nil
	})
	if err != nil {
		return models.RateCardRole{}, err
	}
	return out, nil
}

// DeleteProjectRateCardRoles removes every role of a project and reports how
// many were removed. Members of the project are left without a role.
func (s *Store) DeleteProjectRateCardRoles(ctx context.Context, projectID string) (int64, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_card_roles WHERE project_id = ?`, projectID)
	if err != nil {
		return 0, fmt.Errorf("delete rate cards: %w", err)
	}
	return res.RowsAffected()
}

// DeleteRateCardRole removes one role. Members assigned to it fall back to no role.
func (s *Store) DeleteRateCardRole(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_card_roles WHERE id = ?`, id)
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

// ToggleMemberRateCard assigns a rate-card role to a project member, or
// clears it when the member already holds that role. A member holding a
// different role must be cleared first.
func (s *Store) ToggleMemberRateCard(ctx context.Context, projectID, memberID, roleID string) (models.ProjectMember, error) {
	if roleID == "" {
		return models.ProjectMember{}, fmt.Errorf("project_rate_card_role_id is required: %w", ErrInvalid)
	}

	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		var current sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT rate_card_role_id FROM project_members WHERE id = ? AND project_id = ?`, memberID, projectID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("project member %s: %w", memberID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get member role: %w", err)
		}

		ok, err := exists(ctx, tx, `SELECT 1 FROM rate_card_roles WHERE id = ? AND project_id = ?`, roleID, projectID)
		if err != nil {
			return fmt.Errorf("check rate card: %w", err)
		}
		if !ok {
			return fmt.Errorf("rate card %s: %w", roleID, ErrNotFound)
		}

		var next any = roleID
		switch {
		case current.Valid && current.String == roleID:
			next = nil
		case current.Valid:
			return fmt.Errorf("member already assigned to another role: %w", ErrConflict)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE project_members SET rate_card_role_id = ? WHERE id = ?`, next, memberID); err != nil {
			return fmt.Errorf("update member role: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.ProjectMember{}, err
	}
	return s.getProjectMember(ctx, `pm.id = ?`, memberID)
}

// Resolve implements rates.Resolver against the database.
func (s *Store) Resolve(ctx context.Context, teamMemberID, projectID string) (rates.Rate, error) {
	var r rates.Rate
	err := s.db.QueryRowContext(ctx, `SELECT r.id, r.job_title_id, COALESCE(jt.name, ''), r.rate, r.man_day_rate
        FROM project_members pm
        JOIN rate_card_roles r ON r.id = pm.rate_card_role_id AND r.project_id = pm.project_id
        LEFT JOIN job_titles jt ON jt.id = r.job_title_id
        WHERE pm.team_member_id = ? AND pm.project_id = ?`, teamMemberID, projectID).
		Scan(&r.RoleID, &r.JobTitleID, &r.JobTitle, &r.Hourly, &r.ManDay)
	if errors.Is(err, sql.ErrNoRows) {
		return rates.Rate{}, nil
	}
	if err != nil {
		return rates.Rate{}, fmt.Errorf("resolve rate: %w", err)
	}
	return r, nil
}

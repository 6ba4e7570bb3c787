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

const taskColumns = `id, project_id, COALESCE(parent_task_id, ''), name, status_id, priority_id, COALESCE(phase_id, ''),
    billable, fixed_cost, total_minutes, archived, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.ProjectID, &t.ParentTaskID, &t.Name, &t.StatusID, &t.PriorityID, &t.PhaseID,
		&t.Billable, &t.FixedCost, &t.TotalMinutes, &t.Archived, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// CreateTask inserts a new task for a project. Status defaults to the first
// status of the project and priority to the medium one.
func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return models.Task{}, fmt.Errorf("task name must not be empty: %w", ErrInvalid)
	}
	if t.TotalMinutes < 0 {
		return models.Task{}, fmt.Errorf("total minutes must not be negative: %w", ErrInvalid)
	}
	if err := validateAmount("fixed_cost", t.FixedCost); err != nil {
		return models.Task{}, err
	}

	t.ID = newID()
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		if _, err := getProject(ctx, tx, t.ProjectID); err != nil {
			return err
		}
		if t.ParentTaskID != "" {
			ok, err := exists(ctx, tx, `SELECT 1 FROM tasks WHERE id = ? AND project_id = ? AND archived = 0`, t.ParentTaskID, t.ProjectID)
			if err != nil {
				return fmt.Errorf("check parent: %w", err)
			}
			if !ok {
				return fmt.Errorf("parent task %s: %w", t.ParentTaskID, ErrNotFound)
			}
		}
		if err := resolveTaskKeys(ctx, tx, &t); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id, project_id, parent_task_id, name, status_id, priority_id, phase_id, billable, fixed_cost, total_minutes)
            VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.ProjectID, nullString(t.ParentTaskID), t.Name, t.StatusID, t.PriorityID, nullString(t.PhaseID), t.Billable, t.FixedCost, t.TotalMinutes)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		for _, member := range t.Assignees {
			if err := assign(ctx, tx, t.ProjectID, t.ID, member); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, t.ID)
}

// resolveTaskKeys fills in default status and priority and checks that the
// given keys belong to the task's project.
func resolveTaskKeys(ctx context.Context, q querier, t *models.Task) error {
	if t.StatusID == "" {
		err := q.QueryRowContext(ctx, `SELECT id FROM task_statuses WHERE project_id = ? ORDER BY sort_order LIMIT 1`, t.ProjectID).Scan(&t.StatusID)
		if err != nil {
			return fmt.Errorf("default status: %w", err)
		}
	} else if ok, err := exists(ctx, q, `SELECT 1 FROM task_statuses WHERE id = ? AND project_id = ?`, t.StatusID, t.ProjectID); err != nil {
		return fmt.Errorf("check status: %w", err)
	} else if !ok {
		return fmt.Errorf("status %s: %w", t.StatusID, ErrInvalid)
	}

	if t.PriorityID == "" {
		err := q.QueryRowContext(ctx, `SELECT id FROM task_priorities WHERE name = 'Medium'`).Scan(&t.PriorityID)
		if err != nil {
			return fmt.Errorf("default priority: %w", err)
		}
	} else if ok, err := exists(ctx, q, `SELECT 1 FROM task_priorities WHERE id = ?`, t.PriorityID); err != nil {
		return fmt.Errorf("check priority: %w", err)
	} else if !ok {
		return fmt.Errorf("priority %s: %w", t.PriorityID, ErrInvalid)
	}

	if t.PhaseID != "" {
		ok, err := exists(ctx, q, `SELECT 1 FROM project_phases WHERE id = ? AND project_id = ?`, t.PhaseID, t.ProjectID)
		if err != nil {
			return fmt.Errorf("check phase: %w", err)
		}
		if !ok {
			return fmt.Errorf("phase %s: %w", t.PhaseID, ErrInvalid)
		}
	}
	return nil
}

// TaskChanges holds a partial task update. Nil fields are left unchanged.
// EstimatedManDays is converted to minutes with the project's hours per day
// and cannot be combined with TotalMinutes. An empty PhaseID clears the phase.
type TaskChanges struct {
	Name             *string
	TotalMinutes     *int64
	EstimatedManDays *float64
	Billable         *bool
	StatusID         *string
	PriorityID       *string
	PhaseID          *string
}

// UpdateTask applies changes to a non-archived task.
func (s *Store) UpdateTask(ctx context.Context, id string, changes TaskChanges) (models.Task, error) {
	if changes.TotalMinutes != nil && changes.EstimatedManDays != nil {
		return models.Task{}, fmt.Errorf("total_minutes and estimated_man_days are exclusive: %w", ErrInvalid)
	}

	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		t, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND archived = 0`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}

		if changes.Name != nil {
			name := strings.TrimSpace(*changes.Name)
			if name == "" {
				return fmt.Errorf("task name must not be empty: %w", ErrInvalid)
			}
			t.Name = name
		}
		if changes.TotalMinutes != nil {
			if *changes.TotalMinutes < 0 {
				return fmt.Errorf("total minutes must not be negative: %w", ErrInvalid)
			}
			t.TotalMinutes = *changes.TotalMinutes
		}
		if changes.EstimatedManDays != nil {
			if err := validateAmount("estimated_man_days", *changes.EstimatedManDays); err != nil {
				return err
			}
			p, err := getProject(ctx, tx, t.ProjectID)
			if err != nil {
				return err
			}
			hpd := p.HoursPerDay
			if hpd <= 0 {
				hpd = models.DefaultHoursPerDay
			}
			t.TotalMinutes = int64(math.Round(*changes.EstimatedManDays * hpd * 60))
		}
		if changes.Billable != nil {
			t.Billable = *changes.Billable
		}
		if changes.StatusID != nil {
			t.StatusID = *changes.StatusID
		}
		if changes.PriorityID != nil {
			t.PriorityID = *changes.PriorityID
		}
		if changes.PhaseID != nil {
			t.PhaseID = *changes.PhaseID
		}
		if err := resolveTaskKeys(ctx, tx, &t); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE tasks SET name = ?, total_minutes = ?, billable = ?, status_id = ?, priority_id = ?, phase_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			t.Name, t.TotalMinutes, t.Billable, t.StatusID, t.PriorityID, nullString(t.PhaseID), id)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, id)
}

// ListTasks returns the visible tasks of a project in creation order,
// subtasks included. Archived tasks and their subtrees are left out.
func (s *Store) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	all, err := listProjectTasks(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}

	// parents are always created before their subtasks
	hidden := map[string]bool{}
	tasks := make([]models.Task, 0, len(all))
	for _, t := range all {
		if t.Archived || hidden[t.ParentTaskID] {
			hidden[t.ID] = true
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// GetTask retrieves a task by id with its assignees.
func (s *Store) GetTask(ctx context.Context, id string) (models.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT team_member_id FROM task_assignees WHERE task_id = ? ORDER BY team_member_id`, id)
	if err != nil {
		return models.Task{}, fmt.Errorf("list assignees: %w", err)
	}
	defer rows.Close()
	t.Assignees = []string{}
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return models.Task{}, fmt.Errorf("scan assignee: %w", err)
		}
		t.Assignees = append(t.Assignees, member)
	}
	return t, rows.Err()
}

// ProjectOfTask returns the project id of a non-archived task.
func (s *Store) ProjectOfTask(ctx context.Context, taskID string) (string, error) {
	var projectID string
	err := s.db.QueryRowContext(ctx, `SELECT project_id FROM tasks WHERE id = ? AND archived = 0`, taskID).Scan(&projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("task project: %w", err)
	}
	return projectID, nil
}

// ArchiveTask soft-deletes a task. Its subtasks drop out of every rollup with it.
func (s *Store) ArchiveTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET archived = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND archived = 0`, id)
	if err != nil {
		return fmt.Errorf("archive task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// AssignTask adds a project member to a task's assignees.
func (s *Store) AssignTask(ctx context.Context, taskID, teamMemberID string) (models.Task, error) {
	projectID, err := s.ProjectOfTask(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	if err := assign(ctx, s.db, projectID, taskID, teamMemberID); err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, taskID)
}

func assign(ctx context.Context, q querier, projectID, taskID, teamMemberID string) error {
	ok, err := exists(ctx, q, `SELECT 1 FROM project_members WHERE project_id = ? AND team_member_id = ?`, projectID, teamMemberID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return fmt.Errorf("team member %s is not part of the project: %w", teamMemberID, ErrInvalid)
	}
	_, err = q.ExecContext(ctx, `INSERT INTO task_assignees(task_id, team_member_id) VALUES(?, ?) ON CONFLICT DO NOTHING`, taskID, teamMemberID)
	if err != nil {
		return fmt.Errorf("insert assignee: %w", err)
	}
	return nil
}

// UpdateTaskFixedCost sets the fixed cost of a leaf task. Tasks with
// non-archived subtasks derive their fixed cost from below and are rejected
// without being modified.
func (s *Store) UpdateTaskFixedCost(ctx context.Context, taskID string, cost float64) (models.Task, error) {
	if err := validateAmount("fixed_cost", cost); err != nil {
		return models.Task{}, err
	}

	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, `SELECT 1 FROM tasks WHERE id = ? AND archived = 0`, taskID)
		if err != nil {
			return fmt.Errorf("check task: %w", err)
		}
		if !ok {
			return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}

		var subtasks int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE parent_task_id = ? AND archived = 0`, taskID).Scan(&subtasks); err != nil {
			return fmt.Errorf("count subtasks: %w", err)
		}
		if subtasks > 0 {
			return fmt.Errorf("fixed cost can only be set on tasks without subtasks: %w", ErrInvalid)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET fixed_cost = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, cost, taskID); err != nil {
			return fmt.Errorf("update fixed cost: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, taskID)
}

// CreateWorkLog records time spent by a member on a task.
func (s *Store) CreateWorkLog(ctx context.Context, l models.WorkLog) (models.WorkLog, error) {
	if l.TimeSpent <= 0 {
		return models.WorkLog{}, fmt.Errorf("time spent must be positive: %w", ErrInvalid)
	}
	if _, err := s.ProjectOfTask(ctx, l.TaskID); err != nil {
		return models.WorkLog{}, err
	}
	ok, err := exists(ctx, s.db, `SELECT 1 FROM team_members WHERE id = ?`, l.TeamMemberID)
	if err != nil {
		return models.WorkLog{}, fmt.Errorf("check team member: %w", err)
	}
	if !ok {
		return models.WorkLog{}, fmt.Errorf("team member %s: %w", l.TeamMemberID, ErrNotFound)
	}

	l.ID = newID()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO work_logs(id, task_id, team_member_id, time_spent) VALUES(?, ?, ?, ?)`,
		l.ID, l.TaskID, l.TeamMemberID, l.TimeSpent); err != nil {
		return models.WorkLog{}, fmt.Errorf("insert work log: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `SELECT created_at FROM work_logs WHERE id = ?`, l.ID).Scan(&l.CreatedAt)
	if err != nil {
		return models.WorkLog{}, fmt.Errorf("get work log: %w", err)
	}
	return l, nil
}

// DeleteWorkLog removes a work log by id.
func (s *Store) DeleteWorkLog(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM work_logs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete work log: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("work log %s: %w", id, ErrNotFound)
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"worklenz/finance/internal/finance"
	"worklenz/finance/internal/models"
)

// Snapshot reads everything the finance engine needs for one project inside
// a single read transaction, so tasks, work logs and rates are mutually
// consistent even while time is being logged.
func (s *Store) Snapshot(ctx context.Context, projectID string) (*finance.Snapshot, error) {
	snap := &finance.Snapshot{}
	err := s.withTx(ctx, &sql.TxOptions{ReadOnly: true}, func(tx *sql.Tx) error {
		var err error
		if snap.Project, err = getProject(ctx, tx, projectID); err != nil {
			return err
		}
		if snap.Tasks, err = listProjectTasks(ctx, tx, projectID); err != nil {
			return err
		}
		if snap.WorkLogs, err = listProjectWorkLogs(ctx, tx, projectID); err != nil {
			return err
		}
		if snap.Members, err = listProjectMembers(ctx, tx, projectID); err != nil {
			return err
		}
		if snap.RateCards, err = listRateCardRoles(ctx, tx, projectID); err != nil {
			return err
		}
		if snap.Statuses, err = listStatuses(ctx, tx, projectID); err != nil {
			return err
		}
		if snap.Priorities, err = listPriorities(ctx, tx); err != nil {
			return err
		}
		snap.Phases, err = listPhases(ctx, tx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// listProjectTasks returns every task of a project, archived ones included,
// in creation order with assignees attached.
func listProjectTasks(ctx context.Context, q querier, projectID string) ([]models.Task, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE project_id = ? ORDER BY created_at, rowid`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	index := map[string]int{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Assignees = []string{}
		index[t.ID] = len(tasks)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	assignees, err := q.QueryContext(ctx, `SELECT a.task_id, a.team_member_id
        FROM task_assignees a JOIN tasks t ON t.id = a.task_id
        WHERE t.project_id = ? ORDER BY a.task_id, a.team_member_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	defer assignees.Close()
	for assignees.Next() {
		var taskID, member string
		if err := assignees.Scan(&taskID, &member); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		if i, ok := index[taskID]; ok {
			tasks[i].Assignees = append(tasks[i].Assignees, member)
		}
	}
	return tasks, assignees.Err()
}

func listProjectWorkLogs(ctx context.Context, q querier, projectID string) ([]models.WorkLog, error) {
	rows, err := q.QueryContext(ctx, `SELECT l.id, l.task_id, l.team_member_id, l.time_spent, l.created_at
        FROM work_logs l JOIN tasks t ON t.id = l.task_id
        WHERE t.project_id = ? ORDER BY l.created_at, l.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list work logs: %w", err)
	}
	defer rows.Close()

	logs := []models.WorkLog{}
	for rows.Next() {
		var l models.WorkLog
		if err := rows.Scan(&l.ID, &l.TaskID, &l.TeamMemberID, &l.TimeSpent, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan work log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

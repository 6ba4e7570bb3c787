// Package finance aggregates task costs for the project finance views.
//
// Costs are recorded on leaf tasks only. Parent tasks report the sum of their
// leaf descendants, folded bottom-up over an in-memory task tree built from a
// single read snapshot of the project.
package finance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"worklenz/finance/internal/metrics"
	"worklenz/finance/internal/models"
	"worklenz/finance/internal/rates"
)

// ErrTaskNotFound is returned when a scoped task is missing or archived.
var ErrTaskNotFound = errors.New("task not found")

// BillableFilter restricts the top-level tasks of a report.
type BillableFilter string

const (
	BillableOnly    BillableFilter = "billable"
	NonBillableOnly BillableFilter = "non-billable"
	BillableAll     BillableFilter = "all"
)

// ParseBillableFilter defaults to billable tasks only.
func ParseBillableFilter(raw string) (BillableFilter, error) {
	switch BillableFilter(raw) {
	case "":
		return BillableOnly, nil
	case BillableOnly, NonBillableOnly, BillableAll:
		return BillableFilter(raw), nil
	}
	return "", fmt.Errorf("unknown billable filter %q", raw)
}

func (f BillableFilter) match(t *models.Task) bool {
	switch f {
	case NonBillableOnly:
		return !t.Billable
	case BillableAll:
		return true
	}
	return t.Billable
}

// Snapshot is a consistent read of everything an aggregation needs.
type Snapshot struct {
	Project    models.Project
	Tasks      []models.Task
	WorkLogs   []models.WorkLog
	Members    []models.ProjectMember
	RateCards  []models.RateCardRole
	Statuses   []models.TaskStatus
	Priorities []models.TaskPriority
	Phases     []models.ProjectPhase

	// Rates overrides the resolver built from Members and RateCards.
	Rates rates.Resolver
}

func (s *Snapshot) resolver() rates.Resolver {
	if s.Rates != nil {
		return s.Rates
	}
	return rates.NewTable(s.Members, s.RateCards)
}

// Query scopes an aggregation.
type Query struct {
	// ParentTaskID limits the result to the direct children of one task.
	ParentTaskID string
	Billable     BillableFilter
}

// MemberRate is an assignee together with the rate resolved for the project.
type MemberRate struct {
	TeamMemberID   string  `json:"team_member_id"`
	Name           string  `json:"name"`
	JobTitleID     string  `json:"job_title_id,omitempty"`
	JobTitle       string  `json:"job_title_name,omitempty"`
	RateCardRoleID string  `json:"project_rate_card_role_id,omitempty"`
	Rate           float64 `json:"rate"`
	ManDayRate     float64 `json:"man_day_rate"`
}

// TaskCost is the aggregated cost record of one task.
type TaskCost struct {
	ID                     string       `json:"id"`
	Name                   string       `json:"name"`
	ParentTaskID           string       `json:"parent_task_id,omitempty"`
	EstimatedSeconds       int64        `json:"estimated_seconds"`
	EstimatedHours         string       `json:"estimated_hours"`
	TotalMinutes           int64        `json:"total_minutes"`
	TotalTimeLoggedSeconds int64        `json:"total_time_logged_seconds"`
	TotalTimeLogged        string       `json:"total_time_logged"`
	EstimatedCost          float64      `json:"estimated_cost"`
	ActualCostFromLogs     float64      `json:"actual_cost_from_logs"`
	FixedCost              float64      `json:"fixed_cost"`
	TotalBudget            float64      `json:"total_budget"`
	TotalActual            float64      `json:"total_actual"`
	Variance               float64      `json:"variance"`
	EffortVarianceManDays  *float64     `json:"effort_variance_man_days"`
	ActualManDays          *float64     `json:"actual_man_days"`
	Members                []MemberRate `json:"members"`
	Billable               bool         `json:"billable"`
	SubTasksCount          int          `json:"sub_tasks_count"`

	StatusID   string `json:"-"`
	PriorityID string `json:"-"`
	PhaseID    string `json:"-"`
}

// Engine computes cost aggregations. It holds no per-request state.
type Engine struct {
	logger *slog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// pass carries the state of one aggregation call.
type pass struct {
	ctx       context.Context
	logger    *slog.Logger
	projectID string
	strategy  costStrategy
	resolver  rates.Resolver
	cache     map[string]rates.Rate
	tree      *taskTree
}

func (e *Engine) newPass(ctx context.Context, snap *Snapshot) *pass {
	return &pass{
		ctx:       ctx,
		logger:    e.logger,
		projectID: snap.Project.ID,
		strategy:  strategyFor(snap.Project),
		resolver:  snap.resolver(),
		cache:     make(map[string]rates.Rate),
		tree:      newTaskTree(snap.Tasks, snap.WorkLogs),
	}
}

// rate resolves a member's rate once per pass. Failures are logged and
// treated as a zero rate so one member cannot fail the whole report.
func (p *pass) rate(teamMemberID string) rates.Rate {
	if r, ok := p.cache[teamMemberID]; ok {
		return r
	}
	r, err := p.resolver.Resolve(p.ctx, teamMemberID, p.projectID)
	if err != nil {
		metrics.RateDowngrades.Inc()
		p.logger.Warn("rate resolution failed; using zero rate",
			slog.String("project_id", p.projectID),
			slog.String("team_member_id", teamMemberID),
			slog.String("error", err.Error()))
		r = rates.Rate{}
	}
	p.cache[teamMemberID] = r
	return r
}

// leafRollup prices one leaf task.
func (p *pass) leafRollup(t *models.Task) rollup {
	r := rollup{
		estimatedSeconds: t.TotalMinutes * 60,
		fixedCost:        t.FixedCost,
	}

	estHours := secondsToHours(r.estimatedSeconds)
	for _, member := range t.Assignees {
		r.estimatedCost += p.strategy.cost(estHours, p.rate(member))
	}

	for _, member := range p.tree.loggers(t.ID) {
		seconds := p.tree.logged[t.ID][member]
		r.loggedSeconds += seconds
		r.actualCost += p.strategy.cost(secondsToHours(seconds), p.rate(member))
	}

	if t.TotalMinutes > 0 {
		if est, ok := p.strategy.manDays(estHours); ok {
			act, _ := p.strategy.manDays(secondsToHours(r.loggedSeconds))
			r.estimatedManDays = est
			r.actualManDays = act
		}
	}
	return r
}

// Aggregate produces one cost record per top-level task in scope.
func (e *Engine) Aggregate(ctx context.Context, snap *Snapshot, q Query) ([]TaskCost, error) {
	p := e.newPass(ctx, snap)
	start := time.Now()
	defer func() {
		metrics.AggregationDuration.WithLabelValues(string(p.strategy.method())).Observe(time.Since(start).Seconds())
	}()

	if q.ParentTaskID != "" {
		if _, ok := p.tree.tasks[q.ParentTaskID]; !ok {
			return nil, fmt.Errorf("aggregate subtasks of %s: %w", q.ParentTaskID, ErrTaskNotFound)
		}
	}
	if q.Billable == "" {
		q.Billable = BillableOnly
	}

	names := memberNames(snap.Members)
	costs := []TaskCost{}
	for _, task := range p.tree.topLevel(q.ParentTaskID) {
		if !q.Billable.match(task) {
			continue
		}
		costs = append(costs, p.record(task, names))
	}

	metrics.AggregatedTasks.Add(float64(len(p.tree.sums)))
	e.logger.Debug("aggregated task costs",
		slog.String("project_id", snap.Project.ID),
		slog.String("parent_task_id", q.ParentTaskID),
		slog.Int("records", len(costs)))
	return costs, nil
}

func (p *pass) record(task *models.Task, names map[string]string) TaskCost {
	sum := p.tree.fold(task.ID, p.leafRollup)

	rec := TaskCost{
		ID:                     task.ID,
		Name:                   task.Name,
		ParentTaskID:           task.ParentTaskID,
		EstimatedSeconds:       sum.estimatedSeconds,
		EstimatedHours:         FormatDuration(sum.estimatedSeconds),
		TotalMinutes:           sum.estimatedSeconds / 60,
		TotalTimeLoggedSeconds: sum.loggedSeconds,
		TotalTimeLogged:        FormatDuration(sum.loggedSeconds),
		EstimatedCost:          sum.estimatedCost,
		ActualCostFromLogs:     sum.actualCost,
		FixedCost:              sum.fixedCost,
		TotalBudget:            sum.estimatedCost + sum.fixedCost,
		TotalActual:            sum.actualCost + sum.fixedCost,
		Members:                p.members(task, names),
		Billable:               task.Billable,
		SubTasksCount:          len(p.tree.children[task.ID]),
		StatusID:               task.StatusID,
		PriorityID:             task.PriorityID,
		PhaseID:                task.PhaseID,
	}
	rec.Variance = rec.TotalBudget - rec.TotalActual

	if _, ok := p.strategy.(manDayCost); ok {
		actual := sum.actualManDays
		effort := sum.actualManDays - sum.estimatedManDays
		rec.ActualManDays = &actual
		rec.EffortVarianceManDays = &effort
	}
	return rec
}

func (p *pass) members(task *models.Task, names map[string]string) []MemberRate {
	out := make([]MemberRate, 0, len(task.Assignees))
	for _, id := range task.Assignees {
		r := p.rate(id)
		out = append(out, MemberRate{
			TeamMemberID:   id,
			Name:           names[id],
			JobTitleID:     r.JobTitleID,
			JobTitle:       r.JobTitle,
			RateCardRoleID: r.RoleID,
			Rate:           r.Hourly,
			ManDayRate:     r.ManDay,
		})
	}
	return out
}

func memberNames(members []models.ProjectMember) map[string]string {
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.TeamMemberID] = m.Name
	}
	return names
}

package finance

import (
	"context"
	"fmt"
	"sort"
)

const unassignedRole = "Unassigned"

// MemberCost is one member's share of a task's labor.
type MemberCost struct {
	TeamMemberID   string  `json:"team_member_id"`
	Name           string  `json:"name"`
	JobTitle       string  `json:"job_title_name"`
	RateCardRoleID string  `json:"project_rate_card_role_id,omitempty"`
	HourlyRate     float64 `json:"hourly_rate"`
	ManDayRate     float64 `json:"man_day_rate"`
	EstimatedHours float64 `json:"estimated_hours"`
	LoggedHours    float64 `json:"logged_hours"`
	EstimatedCost  float64 `json:"estimated_cost"`
	ActualCost     float64 `json:"actual_cost"`
}

// RoleCost sums the members of one job title.
type RoleCost struct {
	JobRole        string       `json:"job_role"`
	EstimatedHours float64      `json:"estimated_hours"`
	LoggedHours    float64      `json:"logged_hours"`
	EstimatedCost  float64      `json:"estimated_cost"`
	ActualCost     float64      `json:"actual_cost"`
	Members        []MemberCost `json:"members"`
}

// BreakdownTask carries the task-level totals of a breakdown.
type BreakdownTask struct {
	ID                     string  `json:"id"`
	Name                   string  `json:"name"`
	ParentTaskID           string  `json:"parent_task_id,omitempty"`
	SubTasksCount          int     `json:"sub_tasks_count"`
	EstimatedSeconds       int64   `json:"estimated_seconds"`
	TotalTimeLoggedSeconds int64   `json:"total_time_logged_seconds"`
	EstimatedLaborCost     float64 `json:"estimated_labor_cost"`
	ActualLaborCost        float64 `json:"actual_labor_cost"`
	FixedCost              float64 `json:"fixed_cost"`
	TotalEstimatedCost     float64 `json:"total_estimated_cost"`
	TotalActualCost        float64 `json:"total_actual_cost"`
}

// Breakdown is the per-member cost view of a single task.
type Breakdown struct {
	Task           BreakdownTask `json:"task"`
	GroupedMembers []RoleCost    `json:"grouped_members"`
	Members        []MemberCost  `json:"members"`
}

// Breakdown itemizes the labor of a task across its members. For a parent
// task the leaves of its subtree are itemized.
//
// Unlike Aggregate, a leaf's estimated hours are split evenly between its
// assignees here.
func (e *Engine) Breakdown(ctx context.Context, snap *Snapshot, taskID string) (Breakdown, error) {
	p := e.newPass(ctx, snap)
	task, ok := p.tree.tasks[taskID]
	if !ok {
		return Breakdown{}, fmt.Errorf("breakdown %s: %w", taskID, ErrTaskNotFound)
	}

	names := memberNames(snap.Members)
	byMember := map[string]*MemberCost{}
	member := func(id string) *MemberCost {
		if mc, ok := byMember[id]; ok {
			return mc
		}
		r := p.rate(id)
		mc := &MemberCost{
			TeamMemberID:   id,
			Name:           names[id],
			JobTitle:       r.JobTitle,
			RateCardRoleID: r.RoleID,
			HourlyRate:     r.Hourly,
			ManDayRate:     r.ManDay,
		}
		if mc.JobTitle == "" {
			mc.JobTitle = unassignedRole
		}
		byMember[id] = mc
		return mc
	}

	for _, leaf := range p.tree.leaves(task.ID) {
		if n := len(leaf.Assignees); n > 0 {
			share := secondsToHours(leaf.TotalMinutes*60) / float64(n)
			for _, id := range leaf.Assignees {
				mc := member(id)
				mc.EstimatedHours += share
				mc.EstimatedCost += p.strategy.cost(share, p.rate(id))
			}
		}
		for _, id := range p.tree.loggers(leaf.ID) {
			hours := secondsToHours(p.tree.logged[leaf.ID][id])
			mc := member(id)
			mc.LoggedHours += hours
			mc.ActualCost += p.strategy.cost(hours, p.rate(id))
		}
	}

	members := make([]MemberCost, 0, len(byMember))
	for _, mc := range byMember {
		members = append(members, *mc)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Name != members[j].Name {
			return members[i].Name < members[j].Name
		}
		return members[i].TeamMemberID < members[j].TeamMemberID
	})

	sum := p.tree.fold(task.ID, p.leafRollup)
	out := Breakdown{
		Task: BreakdownTask{
			ID:                     task.ID,
			Name:                   task.Name,
			ParentTaskID:           task.ParentTaskID,
			SubTasksCount:          len(p.tree.children[task.ID]),
			EstimatedSeconds:       sum.estimatedSeconds,
			TotalTimeLoggedSeconds: sum.loggedSeconds,
			FixedCost:              sum.fixedCost,
		},
		GroupedMembers: groupByRole(members),
		Members:        members,
	}
	for _, m := range members {
		out.Task.EstimatedLaborCost += m.EstimatedCost
		out.Task.ActualLaborCost += m.ActualCost
	}
	out.Task.TotalEstimatedCost = out.Task.EstimatedLaborCost + out.Task.FixedCost
	out.Task.TotalActualCost = out.Task.ActualLaborCost + out.Task.FixedCost
	return out, nil
}

func groupByRole(members []MemberCost) []RoleCost {
	index := map[string]int{}
	var roles []RoleCost
	for _, m := range members {
		i, ok := index[m.JobTitle]
		if !ok {
			i = len(roles)
			index[m.JobTitle] = i
			roles = append(roles, RoleCost{JobRole: m.JobTitle})
		}
		r := &roles[i]
		r.EstimatedHours += m.EstimatedHours
		r.LoggedHours += m.LoggedHours
		r.EstimatedCost += m.EstimatedCost
		r.ActualCost += m.ActualCost
		r.Members = append(r.Members, m)
	}
	sort.SliceStable(roles, func(i, j int) bool { return roles[i].JobRole < roles[j].JobRole })
	if roles == nil {
		roles = []RoleCost{}
	}
	return roles
}

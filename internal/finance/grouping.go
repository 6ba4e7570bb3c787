package finance

import (
	"context"
	"fmt"
	"sort"

	"worklenz/finance/internal/models"
)

// GroupBy names the task attribute a report is bucketed by.
type GroupBy string

const (
	GroupByStatus   GroupBy = "status"
	GroupByPriority GroupBy = "priority"
	GroupByPhase    GroupBy = "phases"
)

// ParseGroupBy defaults to status. "phase" is accepted as an alias of "phases".
func ParseGroupBy(raw string) (GroupBy, error) {
	switch raw {
	case "":
		return GroupByStatus, nil
	case "phase":
		return GroupByPhase, nil
	}
	switch g := GroupBy(raw); g {
	case GroupByStatus, GroupByPriority, GroupByPhase:
		return g, nil
	}
	return "", fmt.Errorf("unknown group %q", raw)
}

// Group is one bucket of a finance report.
type Group struct {
	GroupID       string     `json:"group_id"`
	GroupName     string     `json:"group_name"`
	ColorCode     string     `json:"color_code"`
	ColorCodeDark string     `json:"color_code_dark"`
	Tasks         []TaskCost `json:"tasks"`
}

// GroupTasks buckets cost records by the distinct values of the grouping key
// in display order. Records that match no bucket are left out.
func GroupTasks(snap *Snapshot, costs []TaskCost, by GroupBy) []Group {
	groups, key := buckets(snap, by)

	index := make(map[string]int, len(groups))
	for i := range groups {
		index[groups[i].GroupID] = i
	}
	for _, c := range costs {
		if i, ok := index[key(c)]; ok {
			groups[i].Tasks = append(groups[i].Tasks, c)
		}
	}
	return groups
}

func buckets(snap *Snapshot, by GroupBy) ([]Group, func(TaskCost) string) {
	switch by {
	case GroupByPriority:
		priorities := append([]models.TaskPriority(nil), snap.Priorities...)
		sort.SliceStable(priorities, func(i, j int) bool { return priorities[i].Value > priorities[j].Value })
		groups := make([]Group, 0, len(priorities))
		for _, p := range priorities {
			groups = append(groups, newGroup(p.ID, p.Name, p.ColorCode, p.ColorCodeDark))
		}
		return groups, func(c TaskCost) string { return c.PriorityID }

	case GroupByPhase:
		phases := append([]models.ProjectPhase(nil), snap.Phases...)
		sort.SliceStable(phases, func(i, j int) bool { return phases[i].SortIndex < phases[j].SortIndex })
		groups := make([]Group, 0, len(phases))
		for _, p := range phases {
			groups = append(groups, newGroup(p.ID, p.Name, p.ColorCode, p.ColorCode))
		}
		return groups, func(c TaskCost) string { return c.PhaseID }
	}

	statuses := append([]models.TaskStatus(nil), snap.Statuses...)
	sort.SliceStable(statuses, func(i, j int) bool { return statuses[i].SortOrder < statuses[j].SortOrder })
	groups := make([]Group, 0, len(statuses))
	for _, s := range statuses {
		groups = append(groups, newGroup(s.ID, s.Name, s.ColorCode, s.ColorCodeDark))
	}
	return groups, func(c TaskCost) string { return c.StatusID }
}

func newGroup(id, name, color, dark string) Group {
	return Group{GroupID: id, GroupName: name, ColorCode: color, ColorCodeDark: dark, Tasks: []TaskCost{}}
}

// ReportProject is the project header of a finance report.
type ReportProject struct {
	ID                string                   `json:"id"`
	Name              string                   `json:"name"`
	Currency          string                   `json:"currency"`
	CalculationMethod models.CalculationMethod `json:"calculation_method"`
	HoursPerDay       float64                  `json:"hours_per_day"`
}

// Report is the payload of the finance task views.
type Report struct {
	Groups           []Group               `json:"groups"`
	ProjectRateCards []models.RateCardRole `json:"project_rate_cards"`
	Project          ReportProject         `json:"project"`
}

// Report aggregates the tasks in scope and groups them for display.
func (e *Engine) Report(ctx context.Context, snap *Snapshot, q Query, by GroupBy) (Report, error) {
	costs, err := e.Aggregate(ctx, snap, q)
	if err != nil {
		return Report{}, err
	}

	rateCards := snap.RateCards
	if rateCards == nil {
		rateCards = []models.RateCardRole{}
	}
	hpd := snap.Project.HoursPerDay
	if hpd <= 0 {
		hpd = models.DefaultHoursPerDay
	}

	return Report{
		Groups:           GroupTasks(snap, costs, by),
		ProjectRateCards: rateCards,
		Project: ReportProject{
			ID:                snap.Project.ID,
			Name:              snap.Project.Name,
			Currency:          snap.Project.Currency,
			CalculationMethod: snap.Project.CalculationMethod,
			HoursPerDay:       hpd,
		},
	}, nil
}

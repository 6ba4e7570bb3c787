// Package rates resolves the billing rate that applies to a team member within a project.
package rates

import (
	"context"

	"worklenz/finance/internal/models"
)

// Rate is the hourly and man-day rate of a member's rate-card role.
// The zero value means the member has no role assigned.
type Rate struct {
	RoleID     string  `json:"project_rate_card_role_id,omitempty"`
	JobTitleID string  `json:"job_title_id,omitempty"`
	JobTitle   string  `json:"job_title,omitempty"`
	Hourly     float64 `json:"rate"`
	ManDay     float64 `json:"man_day_rate"`
}

// Assigned reports whether the rate came from a rate-card role.
func (r Rate) Assigned() bool {
	return r.RoleID != ""
}

// Resolver looks up the rate for a (team member, project) pair.
// A member without a role assignment resolves to the zero Rate and no error.
type Resolver interface {
	Resolve(ctx context.Context, teamMemberID, projectID string) (Rate, error)
}

type memberKey struct {
	projectID    string
	teamMemberID string
}

// Table is an in-memory Resolver built from one consistent read of
// project memberships and rate-card roles.
type Table struct {
	rates map[memberKey]Rate
}

// NewTable indexes members by (project, team member) and joins them to their roles.
// Members that reference an unknown role resolve to zero.
func NewTable(members []models.ProjectMember, roles []models.RateCardRole) *Table {
	byID := make(map[string]models.RateCardRole, len(roles))
	for _, role := range roles {
		byID[role.ID] = role
	}

	t := &Table{rates: make(map[memberKey]Rate, len(members))}
	for _, m := range members {
		if m.RateCardRoleID == "" {
			continue
		}
		role, ok := byID[m.RateCardRoleID]
		if !ok || role.ProjectID != m.ProjectID {
			continue
		}
		t.rates[memberKey{projectID: m.ProjectID, teamMemberID: m.TeamMemberID}] = Rate{
			RoleID:     role.ID,
			JobTitleID: role.JobTitleID,
			JobTitle:   role.JobTitle,
			Hourly:     role.Rate,
			ManDay:     role.ManDayRate,
		}
	}
	return t
}

// Resolve implements Resolver.
func (t *Table) Resolve(_ context.Context, teamMemberID, projectID string) (Rate, error) {
	return t.rates[memberKey{projectID: projectID, teamMemberID: teamMemberID}], nil
}

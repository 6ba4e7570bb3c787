package models

import (
	"fmt"
	"time"
)

// CalculationMethod selects how labor time is priced for a project.
type CalculationMethod string

const (
	MethodHourly  CalculationMethod = "hourly"
	MethodManDays CalculationMethod = "man_days"
)

// DefaultHoursPerDay is used when a project has no hours-per-day configured.
const DefaultHoursPerDay = 8.0

// ParseCalculationMethod validates a raw calculation method value.
func ParseCalculationMethod(raw string) (CalculationMethod, error) {
	switch CalculationMethod(raw) {
	case MethodHourly, MethodManDays:
		return CalculationMethod(raw), nil
	case "":
		return MethodHourly, nil
	}
	return "", fmt.Errorf("unknown calculation method %q", raw)
}

// Project carries the finance settings of a project.
type Project struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Currency          string            `json:"currency"`
	Budget            float64           `json:"budget"`
	CalculationMethod CalculationMethod `json:"calculation_method"`
	HoursPerDay       float64           `json:"hours_per_day"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Task is a unit of work. Tasks form a tree through ParentTaskID.
type Task struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	ParentTaskID string    `json:"parent_task_id,omitempty"`
	Name         string    `json:"name"`
	StatusID     string    `json:"status_id"`
	PriorityID   string    `json:"priority_id"`
	PhaseID      string    `json:"phase_id,omitempty"`
	Billable     bool      `json:"billable"`
	FixedCost    float64   `json:"fixed_cost"`
	TotalMinutes int64     `json:"total_minutes"`
	Archived     bool      `json:"archived"`
	Assignees    []string  `json:"assignees"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WorkLog is an immutable record of time spent on a task.
type WorkLog struct {
	ID           string    `json:"id"`
	TaskID       string    `json:"task_id"`
	TeamMemberID string    `json:"team_member_id"`
	TimeSpent    int64     `json:"time_spent"`
	CreatedAt    time.Time `json:"created_at"`
}

// RateCardRole is a billing rate for one job title within a project.
type RateCardRole struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	JobTitleID string    `json:"job_title_id"`
	JobTitle   string    `json:"jobtitle"`
	Rate       float64   `json:"rate"`
	ManDayRate float64   `json:"man_day_rate"`
	Members    []string  `json:"members"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RateCard is an organization-level rate template that projects import
// their roles from.
type RateCard struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Currency  string         `json:"currency"`
	Roles     []RateCardRate `json:"roles"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// RateCardRate is the rate of one job title on a RateCard.
type RateCardRate struct {
	JobTitleID string  `json:"job_title_id"`
	JobTitle   string  `json:"jobtitle"`
	Rate       float64 `json:"rate"`
	ManDayRate float64 `json:"man_day_rate"`
}

// ProjectMember binds a team member to a project and optionally to a rate-card role.
type ProjectMember struct {
	ID             string `json:"id"`
	ProjectID      string `json:"project_id"`
	TeamMemberID   string `json:"team_member_id"`
	Name           string `json:"name"`
	JobTitle       string `json:"job_title,omitempty"`
	RateCardRoleID string `json:"project_rate_card_role_id,omitempty"`
}

// JobTitle names a role within the team, e.g. "Developer".
type JobTitle struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TeamMember is a person of the team, independent of any project.
type TeamMember struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	JobTitleID string `json:"job_title_id,omitempty"`
}

// TaskStatus is a board column of a project.
type TaskStatus struct {
	ID            string `json:"id"`
	ProjectID     string `json:"project_id"`
	Name          string `json:"name"`
	SortOrder     int    `json:"sort_order"`
	ColorCode     string `json:"color_code"`
	ColorCodeDark string `json:"color_code_dark"`
}

// TaskPriority is shared by all projects; higher values are more severe.
type TaskPriority struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Value         int    `json:"value"`
	ColorCode     string `json:"color_code"`
	ColorCodeDark string `json:"color_code_dark"`
}

// ProjectPhase is a named stage of a project.
type ProjectPhase struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	SortIndex int    `json:"sort_index"`
	ColorCode string `json:"color_code"`
}

// DefaultStatuses are created with every new project.
var DefaultStatuses = []TaskStatus{
	{Name: "To Do", SortOrder: 0, ColorCode: "#a9a9a9", ColorCodeDark: "#434343"},
	{Name: "Doing", SortOrder: 1, ColorCode: "#70a6f3", ColorCodeDark: "#2b4a73"},
	{Name: "Done", SortOrder: 2, ColorCode: "#75c997", ColorCodeDark: "#3a6349"},
}

// DefaultPriorities are seeded once per database.
var DefaultPriorities = []TaskPriority{
	{Name: "Low", Value: 0, ColorCode: "#75c997", ColorCodeDark: "#46d980"},
	{Name: "Medium", Value: 1, ColorCode: "#fbc84c", ColorCodeDark: "#ffc227"},
	{Name: "High", Value: 2, ColorCode: "#f37070", ColorCodeDark: "#ff4141"},
}

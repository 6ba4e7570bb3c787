package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklenz/finance/internal/finance"
	"worklenz/finance/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "finance.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type fixture struct {
	project models.Project
	dev     models.JobTitle
	alice   models.TeamMember
	bob     models.TeamMember
	alicePM models.ProjectMember
	role    models.RateCardRole
}

// seed creates a project with a developer role (20/h, 160/day) held by alice.
func seed(t *testing.T, s *Store) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture
	var err error

	f.project, err = s.CreateProject(ctx, ProjectInput{Name: "Apollo", Currency: "eur"})
	require.NoError(t, err)
	f.dev, err = s.CreateJobTitle(ctx, "Developer")
	require.NoError(t, err)
	f.alice, err = s.CreateTeamMember(ctx, "Alice", f.dev.ID)
	require.NoError(t, err)
	f.bob, err = s.CreateTeamMember(ctx, "Bob", "")
	require.NoError(t, err)

	f.alicePM, err = s.AddProjectMember(ctx, f.project.ID, f.alice.ID)
	require.NoError(t, err)
	_, err = s.AddProjectMember(ctx, f.project.ID, f.bob.ID)
	require.NoError(t, err)

	roles, err := s.UpsertRateCardRoles(ctx, f.project.ID, []RateCardInput{{JobTitleID: f.dev.ID, Rate: 20, ManDayRate: 160}})
	require.NoError(t, err)
	require.Len(t, roles, 1)
	f.role = roles[0]

	_, err = s.ToggleMemberRateCard(ctx, f.project.ID, f.alicePM.ID, f.role.ID)
	require.NoError(t, err)
	return f
}

func TestCreateProjectDefaults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, ProjectInput{Name: "  Apollo  ", Currency: "eur"})
	require.NoError(t, err)
	assert.Equal(t, "Apollo", p.Name)
	assert.Equal(t, "EUR", p.Currency)
	assert.Equal(t, models.MethodHourly, p.CalculationMethod)
	assert.Equal(t, models.DefaultHoursPerDay, p.HoursPerDay)

	statuses, err := s.ListStatuses(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.Equal(t, "To Do", statuses[0].Name)

	priorities, err := s.ListPriorities(ctx)
	require.NoError(t, err)
	require.Len(t, priorities, 3)
	assert.Equal(t, "High", priorities[0].Name)

	_, err = s.CreateProject(ctx, ProjectInput{Name: " "})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.CreateProject(ctx, ProjectInput{Name: "x", CalculationMethod: "weekly"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = s.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReopenKeepsPriorities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finance.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	priorities, err := s.ListPriorities(context.Background())
	require.NoError(t, err)
	assert.Len(t, priorities, 3)
}

func TestUpdateFinanceSettings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seed(t, s)

	method := models.MethodManDays
	hpd := 7.5
	budget := 1200.0
	p, err := s.UpdateFinanceSettings(ctx, f.project.ID, FinanceSettings{CalculationMethod: &method, HoursPerDay: &hpd, Budget: &budget})
	require.NoError(t, err)
	assert.Equal(t, models.MethodManDays, p.CalculationMethod)
	assert.Equal(t, 7.5, p.HoursPerDay)
	assert.Equal(t, 1200.0, p.Budget)
	assert.Equal(t, "EUR", p.Currency)

	bad := 0.0
	_, err = s.UpdateFinanceSettings(ctx, f.project.ID, FinanceSettings{HoursPerDay: &bad})
	assert.ErrorIs(t, err, ErrInvalid)

	negative := -1.0
	_, err = s.UpdateFinanceSettings(ctx, f.project.ID, FinanceSettings{Budget: &negative})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = s.UpdateFinanceSettings(ctx, "missing", FinanceSettings{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRateCardRoles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seed(t, s)

	roles, err := s.ListRateCardRoles(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "Developer", roles[0].JobTitle)
	assert.Equal(t, []string{f.alicePM.ID}, roles[0].Members)

	t.Run("upsert keeps one role per job title", func(t *testing.T) {
		roles, err := s.UpsertRateCardRoles(ctx, f.project.ID, []RateCardInput{{JobTitleID: f.dev.ID, Rate: 25, ManDayRate: 180}})
		require.NoError(t, err)
		require.Len(t, roles, 1)
		assert.Equal(t, f.role.ID, roles[0].ID)
		assert.Equal(t, 25.0, roles[0].Rate)
		assert.Equal(t, 180.0, roles[0].ManDayRate)
	})

	t.Run("rejects unknown job titles atomically", func(t *testing.T) {
		qa, err := s.CreateJobTitle(ctx, "QA")
		require.NoError(t, err)
		_, err = s.UpsertRateCardRoles(ctx, f.project.ID, []RateCardInput{{JobTitleID: qa.ID, Rate: 10}, {JobTitleID: "nope", Rate: 1}})
		assert.ErrorIs(t, err, ErrNotFound)

		roles, err := s.ListRateCardRoles(ctx, f.project.ID)
		require.NoError(t, err)
		assert.Len(t, roles, 1)
	})

	t.Run("rejects negative rates", func(t *testing.T) {
		_, err := s.UpsertRateCardRoles(ctx, f.project.ID, []RateCardInput{{JobTitleID: f.dev.ID, Rate: -1}})
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestResolve(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seed(t, s)

	rate, err := s.Resolve(ctx, f.alice.ID, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, rate.Hourly)
	assert.Equal(t, 160.0, rate.ManDay)
	assert.Equal(t, "Developer", rate.JobTitle)

	rate, err = s.Resolve(ctx, f.bob.ID, f.project.ID)
	require.NoError(t, err)
	assert.False(t, rate.Assigned())

	rate, err = s.Resolve(ctx, "stranger", f.project.ID)
	require.NoError(t, err)
	assert.Zero(t, rate.Hourly)
}

func TestToggleMemberRateCard(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seed(t, s)

	qa, err := s.CreateJobTitle(ctx, "QA")
	require.NoError(t, err)
	roles, err := s.UpsertRateCardRoles(ctx, f.project.ID, []RateCardInput{{JobTitleID: qa.ID, Rate: 15}})
	require.NoError(t, err)
	var qaRole models.RateCardRole
	for _, r := range roles {
		if r.JobTitleID == qa.ID {
			qaRole = r
		}
	}

	_, err = s.ToggleMemberRateCard(ctx, f.project.ID, f.alicePM.ID, qaRole.ID)
	assert.ErrorIs(t, err, ErrConflict)

	m, err := s.ToggleMemberRateCard(ctx, f.project.ID, f.alicePM.ID, f.role.ID)
	require.NoError(t, err)
	assert.Empty(t, m.RateCardRoleID)

	m, err = s.ToggleMemberRateCard(ctx, f.project.ID, f.alicePM.ID, qaRole.ID)
	require.NoError(t, err)
	assert.Equal(t, qaRole.ID, m.RateCardRoleID)

	_, err = s.ToggleMemberRateCard(ctx, f.project.ID, "missing", qaRole.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ToggleMemberRateCard(ctx, f.project.ID, f.alicePM.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRateCardRoleUnassignsMembers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seed(t, s)

	require.NoError(t, s.DeleteRateCardRole(ctx, f.role.ID))
	assert.ErrorIs(t, s.DeleteRateCardRole(ctx, f.role.ID), ErrNotFound)

	members, err := s.ListProjectMembers(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, m := range members {
		assert.Empty(t, m.RateCardRoleID)
	}
}

func TestUpdateRateCardRole(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seed(t, s)

	role, err := s.UpdateRateCardRole(ctx, f.role.ID, 30, 240)
	require.NoError(t, err)
	assert.Equal(t, f.role.ID, role.ID)
	assert.Equal(t, 30.0, role.Rate)
	assert.Equal(t, 240.0, role.ManDayRate)
	assert.Equal(t, []string{f.alicePM.ID}, role.Members)

	rate, err := s.Resolve(ctx, f.alice.ID, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 30.0, rate.Hourly)

	_, err = s.UpdateRateCardRole(ctx, f.role.ID, -1, 0)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.UpdateRateCardRole(ctx, "missing", 1, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteProjectRateCardRoles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seed(t, s)

	deleted, err := s.DeleteProjectRateCardRoles(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	roles, err := s.ListRateCardRoles(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)
	members, err := s.ListProjectMembers(ctx, f.project.ID)
	require.NoError(t, err)
	for _, m := range members {
		assert.Empty(t, m.RateCardRoleID)
	}

	_, err = s.DeleteProjectRateCardRoles(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTaskFixedCost(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seed(t, s)

	parent, err := s.CreateTask(ctx, models.Task{ProjectID: f.project.ID, Name: "Parent", FixedCost: 3})
	require.NoError(t, err)
	child, err := s.CreateTask(ctx, models.Task{ProjectID: f.project.ID, ParentTaskID: parent.ID, Name: "Child"})
	require.NoError(t, err)

	t.Run("leaf accepts a cost", func(t *testing.T) {
		got, err := s.UpdateTaskFixedCost(ctx, child.ID, 42.5)
		require.NoError(t, err)
		assert.Equal(t, 42.5, got.FixedCost)
	})

	t.Run("parent is rejected without mutation", func(t *testing.T) {
		_, err := s.UpdateTaskFixedCost(ctx, parent.ID, 99)
		assert.ErrorIs(t, err, ErrInvalid)

		got, err := s.GetTask(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, 3.0, got.FixedCost)
	})

	t.Run("parent with only archived subtasks is a leaf again", func(t *testing.T) {
		require.NoError(t, s.ArchiveTask(ctx, child.ID))
		got, err := s.UpdateTaskFixedCost(ctx, parent.ID, 7)
		require.NoError(t, err)
		assert.Equal(t, 7.0, got.FixedCost)
	})

	t.Run("invalid amounts", func(t *testing.T) {
		for _, v := range []float64{-1, math.NaN(), math.Inf(1)} {
			_, err := s.UpdateTaskFixedCost(ctx, parent.ID, v)
			assert.ErrorIs(t, err, ErrInvalid)
		}
	})

	t.Run("missing and archived tasks", func(t *testing.T) {
		_, err := s.UpdateTaskFixedCost(ctx, "missing", 1)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.UpdateTaskFixedCost(ctx, child.ID, 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateTaskValidation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seed(t, s)

	_, err := s.CreateTask(ctx, models.Task{ProjectID: f.project.ID, Name: ""})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.CreateTask(ctx, models.Task{ProjectID: "missing", Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.CreateTask(ctx, models.Task{ProjectID: f.project.ID, ParentTaskID: "missing", Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.CreateTask(ctx, models.Task{ProjectID: f.project.ID, Name: "x", StatusID: "missing"})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.CreateTask(ctx, models.Task{ProjectID: f.project.ID, Name: "x", Assignees: []string{"stranger"}})
	assert.ErrorIs(t, err, ErrInvalid)

	task, err := s.CreateTask(ctx, models.Task{ProjectID: f.project.ID, Name: "x", Assignees: []string{f.alice.ID}, TotalMinutes: 30, Billable: true})
	require.NoError(t, err)
	assert.Equal(t, []string{f.alice.ID}, task.Assignees)
	assert.NotEmpty(t, task.StatusID)
	assert.NotEmpty(t, task.PriorityID)
	assert.True(t, task.Billable)
}

func TestUpdateTask(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seed(t, s)

	hpd := 6.0
	_, err := s.UpdateFinanceSettings(ctx, f.project.ID, FinanceSettings{HoursPerDay: &hpd})
	require.NoError(t, err)
	phase, err := s.CreatePhase(ctx, f.project.ID, "Build", "")
	require.NoError(t, err)
	task, err := s.CreateTask(ctx, models.Task{ProjectID: f.project.ID, Name: "Spec", TotalMinutes: 60, Billable: true, PhaseID: phase.ID})
	require.NoError(t, err)

	t.Run("partial update keeps other fields", func(t *testing.T) {
		name := "  Write spec "
		minutes := int64(480)
		billable := false
		got, err := s.UpdateTask(ctx, task.ID, TaskChanges{Name: &name, TotalMinutes: &minutes, Billable: &billable})
		require.NoError(t, err)
		assert.Equal(t, "Write spec", got.Name)
		assert.Equal(t, int64(480), got.TotalMinutes)
		assert.False(t, got.Billable)
		assert.Equal(t, task.StatusID, got.StatusID)
		assert.Equal(t, phase.ID, got.PhaseID)
	})

	t.Run("man days use the project hours per day", func(t *testing.T) {
		days := 1.5
		got, err := s.UpdateTask(ctx, task.ID, TaskChanges{EstimatedManDays: &days})
		require.NoError(t, err)
		assert.Equal(t, int64(540), got.TotalMinutes)
	})

	t.Run("keys are checked against the project", func(t *testing.T) {
		statuses, err := s.ListStatuses(ctx, f.project.ID)
		require.NoError(t, err)
		done := statuses[len(statuses)-1].ID
		got, err := s.UpdateTask(ctx, task.ID, TaskChanges{StatusID: &done})
		require.NoError(t, err)
		assert.Equal(t, done, got.StatusID)

		missing := "missing"
		_, err = s.UpdateTask(ctx, task.ID, TaskChanges{StatusID: &missing})
		assert.ErrorIs(t, err, ErrInvalid)
		_, err = s.UpdateTask(ctx, task.ID, TaskChanges{PriorityID: &missing})
		assert.ErrorIs(t, err, ErrInvalid)
		_, err = s.UpdateTask(ctx, task.ID, TaskChanges{PhaseID: &missing})
		assert.ErrorIs(t, err, ErrInvalid)

		none := ""
		got, err = s.UpdateTask(ctx, task.ID, TaskChanges{PhaseID: &none})
		require.NoError(t, err)
		assert.Empty(t, got.PhaseID)
	})

	t.Run("invalid values leave the task untouched", func(t *testing.T) {
		negative := int64(-1)
		_, err := s.UpdateTask(ctx, task.ID, TaskChanges{TotalMinutes: &negative})
		assert.ErrorIs(t, err, ErrInvalid)
		blank := " "
		_, err = s.UpdateTask(ctx, task.ID, TaskChanges{Name: &blank})
		assert.ErrorIs(t, err, ErrInvalid)
		minutes, days := int64(1), 1.0
		_, err = s.UpdateTask(ctx, task.ID, TaskChanges{TotalMinutes: &minutes, EstimatedManDays: &days})
		assert.ErrorIs(t, err, ErrInvalid)

		got, err := s.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(540), got.TotalMinutes)
		assert.Equal(t, "Write spec", got.Name)
	})

	t.Run("missing and archived tasks", func(t *testing.T) {
		name := "x"
		_, err := s.UpdateTask(ctx, "missing", TaskChanges{Name: &name})
		assert.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, s.ArchiveTask(ctx, task.ID))
		_, err = s.UpdateTask(ctx, task.ID, TaskChanges{Name: &name})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListTasks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seed(t, s)

	parent, err := s.CreateTask(ctx, models.Task{ProjectID: f.project.ID, Name: "Parent"})
	require.NoError(t, err)
	child, err := s.CreateTask(ctx, models.Task{ProjectID: f.project.ID, ParentTaskID: parent.ID, Name: "Child", Assignees: []string{f.alice.ID}})
	require.NoError(t, err)
	other, err := s.CreateTask(ctx, models.Task{ProjectID: f.project.ID, Name: "Other"})
	require.NoError(t, err)

	tasks, err := s.ListTasks(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, child.ID, tasks[1].ID)
	assert.Equal(t, []string{f.alice.ID}, tasks[1].Assignees)

	require.NoError(t, s.ArchiveTask(ctx, parent.ID))
	tasks, err = s.ListTasks(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, other.ID, tasks[0].ID)

	_, err = s.ListTasks(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAndDeleteProject(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seed(t, s)

	p, err := s.UpdateProject(ctx, f.project.ID, " Artemis ")
	require.NoError(t, err)
	assert.Equal(t, "Artemis", p.Name)
	assert.Equal(t, "EUR", p.Currency)

	_, err = s.UpdateProject(ctx, f.project.ID, "")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.UpdateProject(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	task, err := s.CreateTask(ctx, models.Task{ProjectID: f.project.ID, Name: "Build"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteProject(ctx, f.project.ID))
	assert.ErrorIs(t, s.DeleteProject(ctx, f.project.ID), ErrNotFound)

	_, err = s.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ListRateCardRoles(ctx, f.project.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectListsRequireProject(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.ListStatuses(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ListPhases(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ListProjectMembers(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ListRateCardRoles(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkLogs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seed(t, s)

	task, err := s.CreateTask(ctx, models.Task{ProjectID: f.project.ID, Name: "Build"})
	require.NoError(t, err)

	l, err := s.CreateWorkLog(ctx, models.WorkLog{TaskID: task.ID, TeamMemberID: f.alice.ID, TimeSpent: 600})
	require.NoError(t, err)
	assert.NotEmpty(t, l.ID)
	assert.False(t, l.CreatedAt.IsZero())

	_, err = s.CreateWorkLog(ctx, models.WorkLog{TaskID: task.ID, TeamMemberID: f.alice.ID, TimeSpent: 0})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.CreateWorkLog(ctx, models.WorkLog{TaskID: "missing", TeamMemberID: f.alice.ID, TimeSpent: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteWorkLog(ctx, l.ID))
	assert.ErrorIs(t, s.DeleteWorkLog(ctx, l.ID), ErrNotFound)
}

func TestSnapshotFeedsEngine(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seed(t, s)

	phase, err := s.CreatePhase(ctx, f.project.ID, "Build", "#ff0000")
	require.NoError(t, err)

	parent, err := s.CreateTask(ctx, models.Task{ProjectID: f.project.ID, Name: "Parent", Billable: true, PhaseID: phase.ID})
	require.NoError(t, err)
	l1, err := s.CreateTask(ctx, models.Task{ProjectID: f.project.ID, ParentTaskID: parent.ID, Name: "L1", TotalMinutes: 60, Billable: true, Assignees: []string{f.alice.ID}})
	require.NoError(t, err)
	l2, err := s.CreateTask(ctx, models.Task{ProjectID: f.project.ID, ParentTaskID: parent.ID, Name: "L2", TotalMinutes: 120, Billable: true, Assignees: []string{f.alice.ID}})
	require.NoError(t, err)
	_, err = s.UpdateTaskFixedCost(ctx, l1.ID, 10)
	require.NoError(t, err)
	_, err = s.UpdateTaskFixedCost(ctx, l2.ID, 5)
	require.NoError(t, err)
	_, err = s.CreateWorkLog(ctx, models.WorkLog{TaskID: l1.ID, TeamMemberID: f.alice.ID, TimeSpent: 5400})
	require.NoError(t, err)

	snap, err := s.Snapshot(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Tasks, 3)
	assert.Len(t, snap.WorkLogs, 1)
	assert.Len(t, snap.Members, 2)
	assert.Len(t, snap.Statuses, 3)
	assert.Len(t, snap.Phases, 1)

	report, err := finance.NewEngine(nil).Report(ctx, snap, finance.Query{}, finance.GroupByPhase)
	require.NoError(t, err)
	require.Len(t, report.Groups, 1)
	require.Len(t, report.Groups[0].Tasks, 1)

	p := report.Groups[0].Tasks[0]
	assert.Equal(t, parent.ID, p.ID)
	assert.InDelta(t, 60.0, p.EstimatedCost, 1e-6)
	assert.InDelta(t, 15.0, p.FixedCost, 1e-6)
	assert.InDelta(t, 75.0, p.TotalBudget, 1e-6)
	assert.InDelta(t, 30.0, p.ActualCostFromLogs, 1e-6)
	assert.Equal(t, "1h 30m", p.TotalTimeLogged)
	assert.Equal(t, "EUR", report.Project.Currency)

	_, err = s.Snapshot(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

package finance

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklenz/finance/internal/models"
	"worklenz/finance/internal/rates"
)

const eps = 1e-6

func testEngine() *Engine {
	return NewEngine(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
}

// projectSnapshot builds a project with one developer role (20/h, 160/day)
// assigned to "alice" and an unassigned member "bob".
func projectSnapshot(method models.CalculationMethod, tasks ...models.Task) *Snapshot {
	return &Snapshot{
		Project: models.Project{ID: "p1", Name: "Apollo", Currency: "USD", CalculationMethod: method, HoursPerDay: 8},
		Tasks:   tasks,
		Members: []models.ProjectMember{
			{ID: "pm-a", ProjectID: "p1", TeamMemberID: "alice", Name: "Alice", RateCardRoleID: "role-dev"},
			{ID: "pm-b", ProjectID: "p1", TeamMemberID: "bob", Name: "Bob"},
		},
		RateCards: []models.RateCardRole{
			{ID: "role-dev", ProjectID: "p1", JobTitleID: "jt-dev", JobTitle: "Developer", Rate: 20, ManDayRate: 160},
		},
	}
}

func task(id, parent string, minutes int64, fixed float64, assignees ...string) models.Task {
	return models.Task{
		ID:           id,
		ProjectID:    "p1",
		ParentTaskID: parent,
		Name:         id,
		Billable:     true,
		TotalMinutes: minutes,
		FixedCost:    fixed,
		Assignees:    assignees,
	}
}

func aggregateAll(t *testing.T, snap *Snapshot) map[string]TaskCost {
	t.Helper()
	costs, err := testEngine().Aggregate(context.Background(), snap, Query{Billable: BillableAll})
	require.NoError(t, err)
	out := make(map[string]TaskCost, len(costs))
	for _, c := range costs {
		out[c.ID] = c
	}
	return out
}

func TestAggregateParentWithTwoLeaves(t *testing.T) {
	snap := projectSnapshot(models.MethodHourly,
		task("P", "", 0, 0),
		task("L1", "P", 60, 10, "alice"),
		task("L2", "P", 120, 5, "alice"),
	)

	costs := aggregateAll(t, snap)
	require.Len(t, costs, 1)

	p := costs["P"]
	assert.InDelta(t, 60.0, p.EstimatedCost, eps)
	assert.InDelta(t, 15.0, p.FixedCost, eps)
	assert.InDelta(t, 75.0, p.TotalBudget, eps)
	assert.Equal(t, int64(3*3600), p.EstimatedSeconds)
	assert.Equal(t, "3h", p.EstimatedHours)
	assert.Equal(t, int64(180), p.TotalMinutes)
	assert.Equal(t, 2, p.SubTasksCount)
	assert.Nil(t, p.ActualManDays)
	assert.Nil(t, p.EffortVarianceManDays)
}

func TestAggregateManDayRate(t *testing.T) {
	snap := projectSnapshot(models.MethodManDays, task("L", "", 480, 0, "carol"))
	snap.Members = append(snap.Members, models.ProjectMember{ProjectID: "p1", TeamMemberID: "carol", Name: "Carol", RateCardRoleID: "role-pm"})
	snap.RateCards = append(snap.RateCards, models.RateCardRole{ID: "role-pm", ProjectID: "p1", JobTitle: "PM", Rate: 0, ManDayRate: 80})

	costs := aggregateAll(t, snap)
	assert.InDelta(t, 80.0, costs["L"].EstimatedCost, eps)
}

func TestAggregateManDayFallsBackToHourly(t *testing.T) {
	snap := projectSnapshot(models.MethodManDays, task("L", "", 90, 0, "dave"))
	snap.Members = append(snap.Members, models.ProjectMember{ProjectID: "p1", TeamMemberID: "dave", Name: "Dave", RateCardRoleID: "role-qa"})
	snap.RateCards = append(snap.RateCards, models.RateCardRole{ID: "role-qa", ProjectID: "p1", JobTitle: "QA", Rate: 30})

	manDays := aggregateAll(t, snap)["L"]

	snap.Project.CalculationMethod = models.MethodHourly
	hourly := aggregateAll(t, snap)["L"]

	assert.InDelta(t, 45.0, manDays.EstimatedCost, eps)
	assert.InDelta(t, hourly.EstimatedCost, manDays.EstimatedCost, eps)
}

func TestAggregateZeroAssignees(t *testing.T) {
	snap := projectSnapshot(models.MethodHourly, task("L", "", 600, 12.5))
	snap.WorkLogs = []models.WorkLog{{TaskID: "L", TeamMemberID: "ghost", TimeSpent: 7200}}

	c := aggregateAll(t, snap)["L"]
	assert.Zero(t, c.EstimatedCost)
	assert.Zero(t, c.ActualCostFromLogs)
	assert.InDelta(t, 12.5, c.FixedCost, eps)
	assert.InDelta(t, 12.5, c.TotalActual, eps)
	assert.Equal(t, int64(7200), c.TotalTimeLoggedSeconds)
}

func TestAggregateActualCostFromLogs(t *testing.T) {
	snap := projectSnapshot(models.MethodHourly,
		task("P", "", 0, 0),
		task("L1", "P", 60, 0, "alice"),
		task("L2", "P", 60, 0, "bob"),
	)
	snap.WorkLogs = []models.WorkLog{
		{TaskID: "L1", TeamMemberID: "alice", TimeSpent: 5400},
		{TaskID: "L1", TeamMemberID: "bob", TimeSpent: 3600},
		{TaskID: "L2", TeamMemberID: "alice", TimeSpent: 1800},
		// interior nodes never hold their own cost
		{TaskID: "P", TeamMemberID: "alice", TimeSpent: 36000},
	}

	p := aggregateAll(t, snap)["P"]
	assert.InDelta(t, 1.5*20+0.5*20, p.ActualCostFromLogs, eps)
	assert.Equal(t, int64(5400+3600+1800), p.TotalTimeLoggedSeconds)
	assert.Equal(t, "3h", p.TotalTimeLogged)
	assert.InDelta(t, 20.0, p.EstimatedCost, eps)
	assert.InDelta(t, -20.0, p.Variance, eps)
}

func TestAggregateDeepTree(t *testing.T) {
	snap := projectSnapshot(models.MethodHourly,
		task("root", "", 0, 0),
		task("mid", "root", 0, 0),
		task("deep", "mid", 0, 0),
		task("leaf1", "deep", 60, 1, "alice"),
		task("leaf2", "mid", 30, 2, "alice"),
		task("leaf3", "root", 0, 4),
	)

	root := aggregateAll(t, snap)["root"]
	assert.InDelta(t, 7.0, root.FixedCost, eps)
	assert.InDelta(t, 30.0, root.EstimatedCost, eps)
	assert.Equal(t, 2, root.SubTasksCount)
}

func TestAggregateExcludesArchivedSubtrees(t *testing.T) {
	archived := task("A", "P", 0, 0)
	archived.Archived = true
	archivedLeaf := task("L3", "P", 60, 100, "alice")
	archivedLeaf.Archived = true

	snap := projectSnapshot(models.MethodHourly,
		task("P", "", 0, 0),
		task("L1", "P", 60, 10, "alice"),
		archived,
		task("AL", "A", 600, 1000, "alice"),
		archivedLeaf,
	)
	snap.WorkLogs = []models.WorkLog{{TaskID: "AL", TeamMemberID: "alice", TimeSpent: 3600}}

	p := aggregateAll(t, snap)["P"]
	assert.InDelta(t, 10.0, p.FixedCost, eps)
	assert.InDelta(t, 20.0, p.EstimatedCost, eps)
	assert.Zero(t, p.TotalTimeLoggedSeconds)
	assert.Equal(t, 1, p.SubTasksCount)
}

func TestAggregateParentWithOnlyArchivedChildrenIsLeaf(t *testing.T) {
	child := task("C", "P", 60, 50, "alice")
	child.Archived = true
	snap := projectSnapshot(models.MethodHourly, task("P", "", 120, 3, "alice"), child)

	p := aggregateAll(t, snap)["P"]
	assert.InDelta(t, 3.0, p.FixedCost, eps)
	assert.InDelta(t, 40.0, p.EstimatedCost, eps)
	assert.Zero(t, p.SubTasksCount)
}

func TestAggregateLeafAdditivity(t *testing.T) {
	snap := projectSnapshot(models.MethodHourly,
		task("P", "", 0, 0),
		task("A", "P", 10, 1.25),
		task("B", "P", 20, 2.5),
		task("B1", "B", 30, 3.75),
		task("B2", "B", 40, 0.5),
		task("C", "P", 50, 7),
	)
	p := aggregateAll(t, snap)["P"]
	// B is interior, so its own 2.5 is not counted
	assert.InDelta(t, 1.25+3.75+0.5+7, p.FixedCost, eps)
}

func TestAggregateBudgetVarianceIdentity(t *testing.T) {
	snap := projectSnapshot(models.MethodManDays,
		task("P", "", 0, 0),
		task("L1", "P", 45, 3.3, "alice", "bob"),
		task("L2", "P", 0, 1.1, "alice"),
		task("Q", "", 333, 9.9, "alice"),
	)
	snap.WorkLogs = []models.WorkLog{
		{TaskID: "L1", TeamMemberID: "alice", TimeSpent: 4321},
		{TaskID: "L2", TeamMemberID: "alice", TimeSpent: 999},
		{TaskID: "Q", TeamMemberID: "bob", TimeSpent: 77},
	}

	for id, c := range aggregateAll(t, snap) {
		assert.InDelta(t, c.Variance, c.TotalBudget-c.TotalActual, eps, id)
		assert.InDelta(t, c.EstimatedCost+c.FixedCost, c.TotalBudget, eps, id)
		assert.InDelta(t, c.ActualCostFromLogs+c.FixedCost, c.TotalActual, eps, id)
	}
}

func TestAggregateManDayEffortVariance(t *testing.T) {
	snap := projectSnapshot(models.MethodManDays,
		task("P", "", 0, 0),
		task("L1", "P", 480, 0, "alice"),
		task("L2", "P", 0, 0, "alice"),
	)
	snap.WorkLogs = []models.WorkLog{
		{TaskID: "L1", TeamMemberID: "alice", TimeSpent: 12 * 3600},
		// no estimate, so excluded from man-day effort
		{TaskID: "L2", TeamMemberID: "alice", TimeSpent: 8 * 3600},
	}

	p := aggregateAll(t, snap)["P"]
	require.NotNil(t, p.ActualManDays)
	require.NotNil(t, p.EffortVarianceManDays)
	assert.InDelta(t, 1.5, *p.ActualManDays, eps)
	assert.InDelta(t, 0.5, *p.EffortVarianceManDays, eps)
	// cost still counts every logged hour: 20 h * 160/8
	assert.InDelta(t, 400.0, p.ActualCostFromLogs, eps)
}

func TestAggregateDefaultsHoursPerDay(t *testing.T) {
	snap := projectSnapshot(models.MethodManDays, task("L", "", 480, 0, "alice"))
	snap.Project.HoursPerDay = 0

	c := aggregateAll(t, snap)["L"]
	assert.InDelta(t, 160.0, c.EstimatedCost, eps)
}

func TestAggregateFullRatePerAssignee(t *testing.T) {
	snap := projectSnapshot(models.MethodHourly, task("L", "", 60, 0, "alice", "alice2"))
	snap.Members = append(snap.Members, models.ProjectMember{ProjectID: "p1", TeamMemberID: "alice2", RateCardRoleID: "role-dev"})

	assert.InDelta(t, 40.0, aggregateAll(t, snap)["L"].EstimatedCost, eps)
}

func TestAggregateBillableFilter(t *testing.T) {
	internal := task("N", "", 60, 1, "alice")
	internal.Billable = false
	snap := projectSnapshot(models.MethodHourly, task("B", "", 60, 1, "alice"), internal)
	ctx := context.Background()
	e := testEngine()

	billable, err := e.Aggregate(ctx, snap, Query{})
	require.NoError(t, err)
	require.Len(t, billable, 1)
	assert.Equal(t, "B", billable[0].ID)

	nonBillable, err := e.Aggregate(ctx, snap, Query{Billable: NonBillableOnly})
	require.NoError(t, err)
	require.Len(t, nonBillable, 1)
	assert.Equal(t, "N", nonBillable[0].ID)

	all, err := e.Aggregate(ctx, snap, Query{Billable: BillableAll})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAggregateSubtasks(t *testing.T) {
	snap := projectSnapshot(models.MethodHourly,
		task("P", "", 0, 0),
		task("S1", "P", 0, 0),
		task("S1a", "S1", 60, 2, "alice"),
		task("S2", "P", 30, 1, "alice"),
		task("Other", "", 60, 50, "alice"),
	)
	costs, err := testEngine().Aggregate(context.Background(), snap, Query{ParentTaskID: "P", Billable: BillableAll})
	require.NoError(t, err)
	require.Len(t, costs, 2)

	assert.Equal(t, "S1", costs[0].ID)
	assert.Equal(t, "P", costs[0].ParentTaskID)
	assert.InDelta(t, 20.0, costs[0].EstimatedCost, eps)
	assert.Equal(t, 1, costs[0].SubTasksCount)
	assert.Equal(t, "S2", costs[1].ID)
	assert.InDelta(t, 10.0, costs[1].EstimatedCost, eps)
}

func TestAggregateUnknownParent(t *testing.T) {
	archived := task("P", "", 0, 0)
	archived.Archived = true
	snap := projectSnapshot(models.MethodHourly, archived)

	_, err := testEngine().Aggregate(context.Background(), snap, Query{ParentTaskID: "P"})
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = testEngine().Aggregate(context.Background(), snap, Query{ParentTaskID: "missing"})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestAggregateMembersCarryRates(t *testing.T) {
	snap := projectSnapshot(models.MethodHourly, task("L", "", 60, 0, "alice", "bob"))

	members := aggregateAll(t, snap)["L"].Members
	require.Len(t, members, 2)
	assert.Equal(t, MemberRate{
		TeamMemberID: "alice", Name: "Alice", JobTitleID: "jt-dev", JobTitle: "Developer",
		RateCardRoleID: "role-dev", Rate: 20, ManDayRate: 160,
	}, members[0])
	assert.Equal(t, MemberRate{TeamMemberID: "bob", Name: "Bob"}, members[1])
}

func TestAggregateSurvivesCycles(t *testing.T) {
	snap := projectSnapshot(models.MethodHourly,
		task("P", "", 0, 0),
		task("X", "P", 0, 0),
		task("Y", "X", 0, 0),
		task("L", "X", 60, 1, "alice"),
	)
	// Y -> X -> Y
	snap.Tasks[1].ParentTaskID = "Y"
	snap.Tasks = append(snap.Tasks, task("Z", "P", 60, 2, "alice"))

	p := aggregateAll(t, snap)["P"]
	assert.InDelta(t, 2.0, p.FixedCost, eps)

	costs, err := testEngine().Aggregate(context.Background(), snap, Query{ParentTaskID: "Y", Billable: BillableAll})
	require.NoError(t, err)
	require.Len(t, costs, 1)
	assert.Equal(t, "X", costs[0].ID)
	assert.InDelta(t, 1.0, costs[0].FixedCost, eps)
}

type flakyResolver struct {
	inner rates.Resolver
	fail  map[string]bool
	calls map[string]int
}

func (f *flakyResolver) Resolve(ctx context.Context, member, project string) (rates.Rate, error) {
	f.calls[member]++
	if f.fail[member] {
		return rates.Rate{}, errors.New("connection reset")
	}
	return f.inner.Resolve(ctx, member, project)
}

func TestAggregateDowngradesRateFailures(t *testing.T) {
	snap := projectSnapshot(models.MethodHourly,
		task("L1", "", 60, 0, "alice", "bob"),
		task("L2", "", 120, 0, "alice", "bob"),
	)
	snap.Members[1].RateCardRoleID = "role-dev"
	resolver := &flakyResolver{
		inner: rates.NewTable(snap.Members, snap.RateCards),
		fail:  map[string]bool{"bob": true},
		calls: map[string]int{},
	}
	snap.Rates = resolver

	var logs bytes.Buffer
	e := NewEngine(slog.New(slog.NewTextHandler(&logs, nil)))
	costs, err := e.Aggregate(context.Background(), snap, Query{Billable: BillableAll})
	require.NoError(t, err)
	require.Len(t, costs, 2)

	assert.InDelta(t, 20.0, costs[0].EstimatedCost, eps)
	assert.InDelta(t, 40.0, costs[1].EstimatedCost, eps)
	assert.Equal(t, 1, resolver.calls["bob"])
	assert.Equal(t, 1, resolver.calls["alice"])
	assert.Contains(t, logs.String(), "rate resolution failed")
	assert.Contains(t, logs.String(), "team_member_id=bob")
}

func TestParseBillableFilter(t *testing.T) {
	f, err := ParseBillableFilter("")
	require.NoError(t, err)
	assert.Equal(t, BillableOnly, f)

	f, err = ParseBillableFilter("non-billable")
	require.NoError(t, err)
	assert.Equal(t, NonBillableOnly, f)

	_, err = ParseBillableFilter("sometimes")
	assert.Error(t, err)
}

package rates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklenz/finance/internal/models"
)

func TestTableResolve(t *testing.T) {
	roles := []models.RateCardRole{
		{ID: "role-dev", ProjectID: "p1", JobTitleID: "jt-dev", JobTitle: "Developer", Rate: 20, ManDayRate: 150},
		{ID: "role-qa", ProjectID: "p2", JobTitleID: "jt-qa", JobTitle: "QA", Rate: 15},
	}
	members := []models.ProjectMember{
		{ID: "pm1", ProjectID: "p1", TeamMemberID: "alice", RateCardRoleID: "role-dev"},
		{ID: "pm2", ProjectID: "p1", TeamMemberID: "bob"},
		{ID: "pm3", ProjectID: "p1", TeamMemberID: "carol", RateCardRoleID: "role-qa"},
		{ID: "pm4", ProjectID: "p1", TeamMemberID: "dave", RateCardRoleID: "role-missing"},
	}
	table := NewTable(members, roles)
	ctx := context.Background()

	t.Run("assigned member gets role rates", func(t *testing.T) {
		rate, err := table.Resolve(ctx, "alice", "p1")
		require.NoError(t, err)
		assert.True(t, rate.Assigned())
		assert.Equal(t, 20.0, rate.Hourly)
		assert.Equal(t, 150.0, rate.ManDay)
		assert.Equal(t, "Developer", rate.JobTitle)
	})

	t.Run("unassigned member resolves to zero", func(t *testing.T) {
		rate, err := table.Resolve(ctx, "bob", "p1")
		require.NoError(t, err)
		assert.False(t, rate.Assigned())
		assert.Zero(t, rate.Hourly)
		assert.Zero(t, rate.ManDay)
	})

	t.Run("role from another project is ignored", func(t *testing.T) {
		rate, err := table.Resolve(ctx, "carol", "p1")
		require.NoError(t, err)
		assert.Equal(t, Rate{}, rate)
	})

	t.Run("dangling role reference resolves to zero", func(t *testing.T) {
		rate, err := table.Resolve(ctx, "dave", "p1")
		require.NoError(t, err)
		assert.Equal(t, Rate{}, rate)
	})

	t.Run("non member resolves to zero", func(t *testing.T) {
		rate, err := table.Resolve(ctx, "alice", "p2")
		require.NoError(t, err)
		assert.Equal(t, Rate{}, rate)
	})
}

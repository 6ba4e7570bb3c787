package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"worklenz/finance/internal/finance"
	"worklenz/finance/internal/metrics"
	"worklenz/finance/internal/storage/sqlite"
)

type fixedCostRequest struct {
	FixedCost *float64 `json:"fixed_cost"`
}

// reportQuery reads the group_by and billable_filter query parameters.
func reportQuery(c *gin.Context) (finance.GroupBy, finance.BillableFilter, error) {
	by, err := finance.ParseGroupBy(c.Query("group_by"))
	if err != nil {
		return "", "", err
	}
	filter, err := finance.ParseBillableFilter(c.Query("billable_filter"))
	if err != nil {
		return "", "", err
	}
	return by, filter, nil
}

// handleFinanceTasks returns the grouped cost report of a project's top-level tasks.
func (s *Server) handleFinanceTasks(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	s.report(c, projectID, "")
}

// handleFinanceSubtasks returns the grouped cost report of a task's direct subtasks.
func (s *Server) handleFinanceSubtasks(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	taskID, ok := parseID(c, "taskId")
	if !ok {
		return
	}
	s.report(c, projectID, taskID)
}

func (s *Server) report(c *gin.Context, projectID, parentTaskID string) {
	by, filter, err := reportQuery(c)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	snap, err := s.store.Snapshot(ctx, projectID)
	if err != nil {
		s.fail(c, err)
		return
	}

	report, err := s.finance.Report(ctx, snap, finance.Query{ParentTaskID: parentTaskID, Billable: filter}, by)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, report)
}

// handleTaskBreakdown returns the per-member and per-role cost breakdown of one task.
func (s *Server) handleTaskBreakdown(c *gin.Context) {
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	projectID, err := s.store.ProjectOfTask(ctx, taskID)
	if err != nil {
		s.fail(c, err)
		return
	}
	snap, err := s.store.Snapshot(ctx, projectID)
	if err != nil {
		s.fail(c, err)
		return
	}

	breakdown, err := s.finance.Breakdown(ctx, snap, taskID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, breakdown)
}

// handleUpdateFixedCost sets the fixed cost of a leaf task and returns the
// task's recomputed cost record.
func (s *Server) handleUpdateFixedCost(c *gin.Context) {
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req fixedCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.FixedCostUpdates.WithLabelValues("rejected").Inc()
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.FixedCost == nil {
		metrics.FixedCostUpdates.WithLabelValues("rejected").Inc()
		s.respondError(c, http.StatusBadRequest, errors.New("fixed_cost is required"))
		return
	}

	ctx := c.Request.Context()
	task, err := s.store.UpdateTaskFixedCost(ctx, taskID, *req.FixedCost)
	if err != nil {
		result := "error"
		if errors.Is(err, sqlite.ErrInvalid) || errors.Is(err, sqlite.ErrNotFound) {
			result = "rejected"
		}
		metrics.FixedCostUpdates.WithLabelValues(result).Inc()
		s.fail(c, err)
		return
	}
	metrics.FixedCostUpdates.WithLabelValues("success").Inc()

	snap, err := s.store.Snapshot(ctx, task.ProjectID)
	if err != nil {
		s.fail(c, err)
		return
	}
	breakdown, err := s.finance.Breakdown(ctx, snap, taskID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": breakdown.Task})
}

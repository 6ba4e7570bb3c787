package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"worklenz/finance/internal/models"
	"worklenz/finance/internal/storage/sqlite"
)

type taskRequest struct {
	Name         string   `json:"name"`
	ParentTaskID string   `json:"parent_task_id"`
	StatusID     string   `json:"status_id"`
	PriorityID   string   `json:"priority_id"`
	PhaseID      string   `json:"phase_id"`
	Billable     *bool    `json:"billable"`
	FixedCost    float64  `json:"fixed_cost"`
	TotalMinutes int64    `json:"total_minutes"`
	Assignees    []string `json:"assignees"`
}

type taskUpdateRequest struct {
	Name             *string  `json:"name"`
	TotalMinutes     *int64   `json:"total_minutes"`
	EstimatedManDays *float64 `json:"estimated_man_days"`
	Billable         *bool    `json:"billable"`
	StatusID         *string  `json:"status_id"`
	PriorityID       *string  `json:"priority_id"`
	PhaseID          *string  `json:"phase_id"`
}

type assigneeRequest struct {
	TeamMemberID string `json:"team_member_id"`
}

type workLogRequest struct {
	TeamMemberID string `json:"team_member_id"`
	TimeSpent    int64  `json:"time_spent"`
}

// handleCreateTask creates a task or subtask inside a project.
func (s *Server) handleCreateTask(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	billable := true
	if req.Billable != nil {
		billable = *req.Billable
	}

	task, err := s.store.CreateTask(c.Request.Context(), models.Task{
		ProjectID:    projectID,
		ParentTaskID: req.ParentTaskID,
		Name:         req.Name,
		StatusID:     req.StatusID,
		PriorityID:   req.PriorityID,
		PhaseID:      req.PhaseID,
		Billable:     billable,
		FixedCost:    req.FixedCost,
		TotalMinutes: req.TotalMinutes,
		Assignees:    req.Assignees,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

// handleListTasks returns the visible tasks of a project.
func (s *Server) handleListTasks(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	tasks, err := s.store.ListTasks(c.Request.Context(), projectID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleUpdateTask edits the name, estimate, billable flag or keys of a task.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req taskUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.store.UpdateTask(c.Request.Context(), id, sqlite.TaskChanges{
		Name:             req.Name,
		TotalMinutes:     req.TotalMinutes,
		EstimatedManDays: req.EstimatedManDays,
		Billable:         req.Billable,
		StatusID:         req.StatusID,
		PriorityID:       req.PriorityID,
		PhaseID:          req.PhaseID,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleArchiveTask archives a task and hides its subtree from finance views.
func (s *Server) handleArchiveTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.ArchiveTask(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}

// handleAssignTask adds an assignee to a task.
func (s *Server) handleAssignTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req assigneeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	task, err := s.store.AssignTask(c.Request.Context(), id, req.TeamMemberID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleCreateWorkLog records time spent on a task.
func (s *Server) handleCreateWorkLog(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req workLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	log, err := s.store.CreateWorkLog(c.Request.Context(), models.WorkLog{
		TaskID:       id,
		TeamMemberID: req.TeamMemberID,
		TimeSpent:    req.TimeSpent,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"work_log": log})
}

// handleDeleteWorkLog removes a work log.
func (s *Server) handleDeleteWorkLog(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteWorkLog(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}

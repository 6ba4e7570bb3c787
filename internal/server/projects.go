package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"worklenz/finance/internal/models"
	"worklenz/finance/internal/storage/sqlite"
)

type projectRequest struct {
	Name              string  `json:"name"`
	Currency          string  `json:"currency"`
	Budget            float64 `json:"budget"`
	CalculationMethod string  `json:"calculation_method"`
	HoursPerDay       float64 `json:"hours_per_day"`
}

type phaseRequest struct {
	Name      string `json:"name"`
	ColorCode string `json:"color_code"`
}

// handleListProjects returns all available projects.
func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.store.ListProjects(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"projects": projects})
}

// handleCreateProject creates a new project with its finance settings.
func (s *Server) handleCreateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	if req.Currency == "" {
		req.Currency = s.defaults.Currency
	}
	if req.HoursPerDay == 0 {
		req.HoursPerDay = s.defaults.HoursPerDay
	}

	project, err := s.store.CreateProject(c.Request.Context(), sqlite.ProjectInput{
		Name:              req.Name,
		Currency:          req.Currency,
		Budget:            req.Budget,
		CalculationMethod: models.CalculationMethod(req.CalculationMethod),
		HoursPerDay:       req.HoursPerDay,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"project": project})
}

// handleGetProject returns one project.
func (s *Server) handleGetProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	project, err := s.store.GetProject(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

// handleUpdateProject renames an existing project.
func (s *Server) handleUpdateProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	project, err := s.store.UpdateProject(c.Request.Context(), id, req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

// handleDeleteProject removes a project and everything that belongs to it.
func (s *Server) handleDeleteProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteProject(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}

type financeSettingsRequest struct {
	Currency          *string  `json:"currency"`
	Budget            *float64 `json:"budget"`
	CalculationMethod *string  `json:"calculation_method"`
	HoursPerDay       *float64 `json:"hours_per_day"`
}

// handleUpdateFinanceSettings changes currency, budget or costing policy.
func (s *Server) handleUpdateFinanceSettings(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req financeSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	in := sqlite.FinanceSettings{Currency: req.Currency, Budget: req.Budget, HoursPerDay: req.HoursPerDay}
	if req.CalculationMethod != nil {
		method, err := models.ParseCalculationMethod(*req.CalculationMethod)
		if err != nil {
			s.respondError(c, http.StatusBadRequest, err)
			return
		}
		in.CalculationMethod = &method
	}

	project, err := s.store.UpdateFinanceSettings(c.Request.Context(), id, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

// handleListStatuses returns the statuses of a project.
func (s *Server) handleListStatuses(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	statuses, err := s.store.ListStatuses(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"statuses": statuses})
}

// handleListPriorities returns the shared priorities.
func (s *Server) handleListPriorities(c *gin.Context) {
	priorities, err := s.store.ListPriorities(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"priorities": priorities})
}

// handleListPhases returns the phases of a project.
func (s *Server) handleListPhases(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	phases, err := s.store.ListPhases(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"phases": phases})
}

// handleCreatePhase appends a phase to a project.
func (s *Server) handleCreatePhase(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req phaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	phase, err := s.store.CreatePhase(c.Request.Context(), id, req.Name, req.ColorCode)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"phase": phase})
}

type jobTitleRequest struct {
	Name string `json:"name"`
}

type teamMemberRequest struct {
	Name       string `json:"name"`
	JobTitleID string `json:"job_title_id"`
}

type projectMemberRequest struct {
	TeamMemberID string `json:"team_member_id"`
}

// handleListJobTitles returns all job titles.
func (s *Server) handleListJobTitles(c *gin.Context) {
	titles, err := s.store.ListJobTitles(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"job_titles": titles})
}

// handleCreateJobTitle adds a job title.
func (s *Server) handleCreateJobTitle(c *gin.Context) {
	var req jobTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	title, err := s.store.CreateJobTitle(c.Request.Context(), req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"job_title": title})
}

// handleCreateTeamMember adds a person to the team.
func (s *Server) handleCreateTeamMember(c *gin.Context) {
	var req teamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	member, err := s.store.CreateTeamMember(c.Request.Context(), req.Name, req.JobTitleID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"team_member": member})
}

// handleListMembers returns the members of a project.
func (s *Server) handleListMembers(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	members, err := s.store.ListProjectMembers(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"members": members})
}

// handleAddMember makes a team member part of a project.
func (s *Server) handleAddMember(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req projectMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.TeamMemberID == "" {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("team_member_id is required"))
		return
	}
	member, err := s.store.AddProjectMember(c.Request.Context(), id, req.TeamMemberID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"member": member})
}

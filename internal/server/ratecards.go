package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"worklenz/finance/internal/storage/sqlite"
)

type rateCardsRequest struct {
	Roles []sqlite.RateCardInput `json:"roles"`
}

type rateCardRoleRequest struct {
	Rate       float64 `json:"rate"`
	ManDayRate float64 `json:"man_day_rate"`
}

type importRateCardRequest struct {
	RateCardID string `json:"rate_card_id"`
}

type memberRateCardRequest struct {
	RateCardRoleID string `json:"project_rate_card_role_id"`
}

// handleListRateCards returns the rate-card roles of a project.
func (s *Server) handleListRateCards(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	roles, err := s.store.ListRateCardRoles(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"rate_cards": roles})
}

// handleUpsertRateCards creates or updates several rate-card roles at once.
func (s *Server) handleUpsertRateCards(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req rateCardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	roles, err := s.store.UpsertRateCardRoles(c.Request.Context(), id, req.Roles)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"rate_cards": roles})
}

// handleImportRateCard copies the roles of an organization rate card into a project.
func (s *Server) handleImportRateCard(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req importRateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.RateCardID == "" {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("rate_card_id is required"))
		return
	}
	roles, err := s.store.ImportRateCard(c.Request.Context(), id, req.RateCardID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"rate_cards": roles})
}

// handleDeleteProjectRateCards removes every rate-card role of a project.
func (s *Server) handleDeleteProjectRateCards(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	deleted, err := s.store.DeleteProjectRateCardRoles(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"deleted": deleted})
}

// handleUpdateRateCardRole changes the rates of one project role.
func (s *Server) handleUpdateRateCardRole(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req rateCardRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	role, err := s.store.UpdateRateCardRole(c.Request.Context(), id, req.Rate, req.ManDayRate)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"rate_card": role})
}

// handleDeleteRateCardRole removes a rate-card role; its members become unassigned.
func (s *Server) handleDeleteRateCardRole(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteRateCardRole(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}

// handleToggleMemberRateCard assigns or clears a member's rate-card role.
func (s *Server) handleToggleMemberRateCard(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	memberID, ok := parseID(c, "memberId")
	if !ok {
		return
	}
	var req memberRateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	member, err := s.store.ToggleMemberRateCard(c.Request.Context(), projectID, memberID, req.RateCardRoleID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"member": member})
}

// handleResolveRate returns the effective rate of a team member in a project.
// Members without a role resolve to zero rates.
func (s *Server) handleResolveRate(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	teamMemberID, ok := parseID(c, "memberId")
	if !ok {
		return
	}
	if _, err := s.store.GetProject(c.Request.Context(), projectID); err != nil {
		s.fail(c, err)
		return
	}
	rate, err := s.store.Resolve(c.Request.Context(), teamMemberID, projectID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"rate": rate})
}

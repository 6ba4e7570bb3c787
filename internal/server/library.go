package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"worklenz/finance/internal/storage/sqlite"
)

// handleListRateCardLibrary returns the organization rate cards.
func (s *Server) handleListRateCardLibrary(c *gin.Context) {
	cards, err := s.store.ListRateCards(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"rate_cards": cards})
}

// handleCreateRateCard adds an organization rate card.
func (s *Server) handleCreateRateCard(c *gin.Context) {
	var req sqlite.RateCardSpec
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Currency == "" {
		req.Currency = s.defaults.Currency
	}
	card, err := s.store.CreateRateCard(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"rate_card": card})
}

// handleGetRateCard returns one organization rate card with its roles.
func (s *Server) handleGetRateCard(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	card, err := s.store.GetRateCard(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"rate_card": card})
}

// handleUpdateRateCard renames a rate card and replaces its roles.
func (s *Server) handleUpdateRateCard(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req sqlite.RateCardSpec
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Currency == "" {
		req.Currency = s.defaults.Currency
	}
	card, err := s.store.UpdateRateCard(c.Request.Context(), id, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"rate_card": card})
}

// handleDeleteRateCard removes an organization rate card.
func (s *Server) handleDeleteRateCard(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteRateCard(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MaTriXy/stagehand/api/schemas"
)

type navigateRequest struct {
	URL string `json:"url" binding:"required"`
}

type instructionRequest struct {
	Instruction string `json:"instruction" binding:"required"`
}

type observeResponse struct {
	Key   string `json:"key,omitempty"`
	Found bool   `json:"found"`
}

type extractResponse struct {
	Data json.RawMessage `json:"data"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleNavigate(c *gin.Context) {
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must carry a url"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.navigator.Navigate(c.Request.Context(), req.URL); err != nil {
		s.logger.Error("navigation failed", zap.String("url", req.URL), zap.Error(err))
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": req.URL})
}

func (s *Server) handleObserve(c *gin.Context) {
	var req instructionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must carry an instruction"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, found, err := s.resolver.Observe(c.Request.Context(), req.Instruction)
	if err != nil {
		s.logger.Error("observe failed", zap.Error(err))
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, observeResponse{Key: string(key), Found: found})
}

func (s *Server) handleAct(c *gin.Context) {
	var req instructionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must carry an instruction"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.resolver.Act(c.Request.Context(), req.Instruction); err != nil {
		s.logger.Error("act failed", zap.Error(err))
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "done"})
}

func (s *Server) handleExtract(c *gin.Context) {
	var req instructionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must carry an instruction"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.resolver.Extract(c.Request.Context(), req.Instruction)
	if err != nil {
		s.logger.Error("extract failed", zap.Error(err))
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, extractResponse{Data: data})
}

// statusForError maps resolution failures onto transport statuses: oracle
// misbehavior reads as a bad upstream, document-state failures as an
// unprocessable instruction.
func statusForError(err error) int {
	switch {
	case errors.Is(err, schemas.ErrOracleContract), errors.Is(err, schemas.ErrUnknownElement):
		return http.StatusBadGateway
	case errors.Is(err, schemas.ErrTargetUnattached), errors.Is(err, schemas.ErrInvalidCommand):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

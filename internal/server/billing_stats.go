package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetBillingStats(c *gin.Context) {
	stats, err := s.statsSvc.GetOutcomeBillingStats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// No plan means no stats, not an error.
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *Server) GetAdminDashboard(c *gin.Context) {
	stats, err := s.statsSvc.GetAdminDashboardStats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *Server) RunOutcomeProcessing(c *gin.Context) {
	result, err := s.processor.RunOnce(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

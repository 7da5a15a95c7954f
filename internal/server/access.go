package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/dealbill/internal/orgcontext"
)

func (s *Server) GetOrgAccess(c *gin.Context) {
	orgID, _ := orgcontext.OrgIDFromContext(c.Request.Context())

	ok, err := s.accessSvc.HasOutcomeBasedAccess(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"has_access": ok})
}

func (s *Server) GetUserAccess(c *gin.Context) {
	userID, err := parseSnowflakeParam(c.Param("user_id"))
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user id"))
		return
	}

	ok, err := s.accessSvc.UserHasOutcomeBasedAccess(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"has_access": ok})
}

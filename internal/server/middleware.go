package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/dealbill/internal/observability/context"
	"github.com/smallbiznis/dealbill/internal/orgcontext"
)

const orgHeader = "X-Org-Id"

// OrgContextMiddleware resolves the tenant from the X-Org-Id header
// and binds it to the request context. Requests without a valid
// organization are rejected; every tenant-scoped route sits behind
// this.
func OrgContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(orgHeader)
		if raw == "" {
			AbortWithError(c, newValidationError("org_id", "missing_org_id", "missing X-Org-Id header"))
			return
		}

		orgID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || orgID <= 0 {
			AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid X-Org-Id header"))
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
		ctx = obscontext.WithOrgID(ctx, raw)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

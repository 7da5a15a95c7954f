package server

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/dealbill/internal/orgcontext"
	eventdomain "github.com/smallbiznis/dealbill/internal/outcomeevent/domain"
)

type recordOutcomeRequest struct {
	OpportunityID string `json:"opportunity_id"`
}

// RecordOutcomeEvent is the deal-closed webhook. It always answers
// 200: a deal that produced no event (no plan, below minimum) is a
// normal outcome, and repeated deliveries return the same event.
func (s *Server) RecordOutcomeEvent(c *gin.Context) {
	var req recordOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	opportunityID, err := parseSnowflakeParam(req.OpportunityID)
	if err != nil {
		AbortWithError(c, newValidationError("opportunity_id", "invalid_opportunity_id", "invalid opportunity id"))
		return
	}

	orgID, _ := orgcontext.OrgIDFromContext(c.Request.Context())
	event, err := s.eventSvc.RecordDealOutcome(c.Request.Context(), orgID, opportunityID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": event, "recorded": event != nil})
}

type flagOutcomeRequest struct {
	OpportunityID string `json:"opportunity_id"`
	Notes         string `json:"notes"`
}

func (s *Server) FlagOutcomeEvent(c *gin.Context) {
	var req flagOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	opportunityID, err := parseSnowflakeParam(req.OpportunityID)
	if err != nil {
		AbortWithError(c, newValidationError("opportunity_id", "invalid_opportunity_id", "invalid opportunity id"))
		return
	}

	event, err := s.eventSvc.FlagEventForReview(c.Request.Context(), opportunityID, req.Notes)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": event, "flagged": event != nil})
}

func (s *Server) ListOutcomeEvents(c *gin.Context) {
	opportunityID, err := parseOptionalSnowflake(c.Query("opportunity_id"))
	if err != nil {
		AbortWithError(c, newValidationError("opportunity_id", "invalid_opportunity_id", "invalid opportunity id"))
		return
	}

	filter := eventdomain.ListFilter{
		Status:        eventdomain.EventStatus(c.Query("status")),
		OpportunityID: opportunityID,
	}
	limit := parseIntParam(c.Query("limit"), 50)
	offset := parseIntParam(c.Query("offset"), 0)

	events, total, err := s.eventSvc.List(c.Request.Context(), filter, limit, offset)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events, "total": total})
}

func (s *Server) GetOutcomeEvent(c *gin.Context) {
	eventID, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid event id"))
		return
	}

	event, err := s.eventSvc.GetByID(c.Request.Context(), eventID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": event})
}

type reviewRequest struct {
	Reason     string `json:"reason"`
	ReviewerID string `json:"reviewer_id"`
}

func (s *Server) WaiveOutcomeEvent(c *gin.Context) {
	s.reviewAction(c, s.eventSvc.WaiveEvent)
}

func (s *Server) VoidOutcomeEvent(c *gin.Context) {
	s.reviewAction(c, s.eventSvc.VoidEvent)
}

func (s *Server) reviewAction(c *gin.Context, apply func(ctx context.Context, eventID snowflake.ID, reason string, reviewerID snowflake.ID) (*eventdomain.OutcomeEvent, error)) {
	eventID, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid event id"))
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	reviewerID, err := parseOptionalSnowflake(req.ReviewerID)
	if err != nil {
		AbortWithError(c, newValidationError("reviewer_id", "invalid_reviewer_id", "invalid reviewer id"))
		return
	}

	event, err := apply(c.Request.Context(), eventID, req.Reason, reviewerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": event})
}

type resolveReviewRequest struct {
	Action     string `json:"action"`
	Reason     string `json:"reason"`
	ReviewerID string `json:"reviewer_id"`
}

func (s *Server) ResolveOutcomeEvent(c *gin.Context) {
	eventID, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid event id"))
		return
	}

	var req resolveReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	reviewerID, err := parseOptionalSnowflake(req.ReviewerID)
	if err != nil {
		AbortWithError(c, newValidationError("reviewer_id", "invalid_reviewer_id", "invalid reviewer id"))
		return
	}

	event, err := s.eventSvc.ResolveReview(c.Request.Context(), eventID, eventdomain.ReviewAction(req.Action), req.Reason, reviewerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": event})
}

type invoiceEventRequest struct {
	InvoiceID         string `json:"invoice_id"`
	InvoiceLineItemID string `json:"invoice_line_item_id"`
}

func (s *Server) InvoiceOutcomeEvent(c *gin.Context) {
	eventID, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid event id"))
		return
	}

	var req invoiceEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.InvoiceID == "" {
		AbortWithError(c, newValidationError("invoice_id", "missing_invoice_id", "missing invoice id"))
		return
	}

	event, err := s.eventSvc.MarkInvoiced(c.Request.Context(), eventID, req.InvoiceID, req.InvoiceLineItemID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": event})
}

func (s *Server) PayOutcomeEvent(c *gin.Context) {
	eventID, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid event id"))
		return
	}

	event, err := s.eventSvc.MarkPaid(c.Request.Context(), eventID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": event})
}

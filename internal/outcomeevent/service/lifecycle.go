package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealbill/internal/outcomeevent/domain"
	"go.uber.org/zap"
)

// FlagEventForReview puts the opportunity's pending event under
// review. Returns (nil, nil) when the opportunity has no active
// event, and ErrInvalidState when the event is no longer PENDING.
func (s *Service) FlagEventForReview(ctx context.Context, opportunityID snowflake.ID, notes string) (*domain.OutcomeEvent, error) {
	event, err := s.repo.FindActiveByOpportunity(ctx, s.db, opportunityID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, nil
	}
	if event.Status != domain.StatusPending {
		return nil, domain.ErrInvalidState
	}

	event.AdminNotes = &notes
	return s.transition(ctx, event, domain.StatusFlaggedForReview)
}

// WaiveEvent forgives a fee that has not yet been invoiced. Money
// already recognized cannot be silently waived.
func (s *Service) WaiveEvent(ctx context.Context, eventID snowflake.ID, reason string, reviewerID snowflake.ID) (*domain.OutcomeEvent, error) {
	return s.review(ctx, eventID, domain.StatusWaived, reason, reviewerID)
}

// VoidEvent cancels an event as erroneous, with the same guard as
// waive. A voided opportunity may be re-recorded later.
func (s *Service) VoidEvent(ctx context.Context, eventID snowflake.ID, reason string, reviewerID snowflake.ID) (*domain.OutcomeEvent, error) {
	return s.review(ctx, eventID, domain.StatusVoided, reason, reviewerID)
}

func (s *Service) review(ctx context.Context, eventID snowflake.ID, to domain.EventStatus, reason string, reviewerID snowflake.ID) (*domain.OutcomeEvent, error) {
	event, err := s.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status != domain.StatusPending && event.Status != domain.StatusFlaggedForReview {
		return nil, domain.ErrInvalidState
	}

	now := s.clock.Now()
	event.AdminNotes = &reason
	event.ReviewedBy = &reviewerID
	event.ReviewedAt = &now
	return s.transition(ctx, event, to)
}

// ResolveReview closes out a flagged event: approve returns it to
// PENDING keeping the fee, waive and void terminate it.
func (s *Service) ResolveReview(ctx context.Context, eventID snowflake.ID, action domain.ReviewAction, reason string, reviewerID snowflake.ID) (*domain.OutcomeEvent, error) {
	event, err := s.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status != domain.StatusFlaggedForReview {
		return nil, domain.ErrInvalidState
	}

	now := s.clock.Now()
	event.ReviewedBy = &reviewerID
	event.ReviewedAt = &now

	switch action {
	case domain.ActionApprove:
		event.AdminNotes = nil
		return s.transition(ctx, event, domain.StatusPending)
	case domain.ActionWaive:
		event.AdminNotes = &reason
		return s.transition(ctx, event, domain.StatusWaived)
	case domain.ActionVoid:
		event.AdminNotes = &reason
		return s.transition(ctx, event, domain.StatusVoided)
	default:
		return nil, domain.ErrInvalidAction
	}
}

// MarkInvoiced attaches invoice references and moves PENDING to
// INVOICED.
func (s *Service) MarkInvoiced(ctx context.Context, eventID snowflake.ID, invoiceID, lineItemID string) (*domain.OutcomeEvent, error) {
	event, err := s.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status != domain.StatusPending {
		return nil, domain.ErrInvalidState
	}

	now := s.clock.Now()
	event.InvoiceID = &invoiceID
	event.InvoiceLineItemID = &lineItemID
	event.InvoicedAt = &now
	return s.transition(ctx, event, domain.StatusInvoiced)
}

// MarkPaid moves INVOICED to PAID.
func (s *Service) MarkPaid(ctx context.Context, eventID snowflake.ID) (*domain.OutcomeEvent, error) {
	event, err := s.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status != domain.StatusInvoiced {
		return nil, domain.ErrInvalidState
	}

	now := s.clock.Now()
	event.PaidAt = &now
	return s.transition(ctx, event, domain.StatusPaid)
}

func (s *Service) transition(ctx context.Context, event *domain.OutcomeEvent, to domain.EventStatus) (*domain.OutcomeEvent, error) {
	from := event.Status
	event.Status = to
	event.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, event); err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(ctx, string(from), string(to))
	s.log.Info("outcome event transition",
		zap.Int64("event_id", event.ID.Int64()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	return event, nil
}

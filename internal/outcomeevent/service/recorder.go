package service

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealbill/internal/feecalc"
	"github.com/smallbiznis/dealbill/internal/outcomeevent/domain"
	"github.com/smallbiznis/dealbill/pkg/db"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RecordDealOutcome converts a closed-won deal into a PENDING outcome
// event. It is idempotent: repeated signals for the same opportunity
// return the already-recorded event. Organizations without an active
// plan, unknown deals, and deals below the plan minimum all return
// (nil, nil): outcome billing is opt-in and thresholds are routine,
// not errors.
func (s *Service) RecordDealOutcome(ctx context.Context, orgID, opportunityID snowflake.ID) (*domain.OutcomeEvent, error) {
	if orgID == 0 || opportunityID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	// Fast path for repeated delivery of the same close signal. The
	// unique index on outcome_events remains the source of truth.
	dedupeKey := "opp:" + opportunityID.String()
	if seen, err := s.dedupe.Seen(ctx, dedupeKey); err == nil && seen {
		existing, err := s.repo.FindActiveByOpportunity(ctx, s.db, opportunityID)
		if err == nil && existing != nil {
			return existing, nil
		}
	}

	var recorded *domain.OutcomeEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the plan row so concurrent closes in the same billing
		// period serialize their cap checks.
		plan, err := s.planRepo.FindByOrgForUpdate(ctx, tx, orgID)
		if err != nil {
			return err
		}
		if plan == nil || !plan.IsActive {
			s.metrics.RecordSkip(ctx, "no_active_plan")
			return nil
		}

		opp, err := s.oppRepo.WithTx(tx).GetByID(ctx, opportunityID)
		if err != nil {
			return err
		}
		if opp == nil || opp.OrgID != orgID {
			s.metrics.RecordSkip(ctx, "opportunity_not_found")
			return nil
		}

		existing, err := s.repo.FindActiveByOpportunity(ctx, tx, opportunityID)
		if err != nil {
			return err
		}
		if existing != nil {
			recorded = existing
			return nil
		}

		closedDate := s.clock.Now()
		if opp.CloseDate != nil {
			closedDate = opp.CloseDate.UTC()
		}
		periodStart, periodEnd := billingPeriod(closedDate)

		billed, err := s.repo.SumFeesInPeriod(ctx, tx, orgID, periodStart, periodEnd)
		if err != nil {
			return err
		}

		result := feecalc.Calculate(opp.AmountCents, *plan, billed)
		if result.Calculation.BelowMinimum {
			// Below-minimum deals leave no billing trace at all.
			s.metrics.RecordSkip(ctx, "below_minimum")
			return nil
		}

		traceJSON, err := json.Marshal(result.Calculation)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		event := &domain.OutcomeEvent{
			ID:                 s.genID.Generate(),
			OrgID:              orgID,
			PricingPlanID:      plan.ID,
			OpportunityID:      opportunityID,
			OpportunityName:    opp.Name,
			AccountName:        opp.AccountName,
			OwnerName:          opp.OwnerName,
			DealAmount:         opp.AmountCents,
			FeeAmount:          result.FeeAmount,
			FeeCalculation:     datatypes.JSON(traceJSON),
			Status:             domain.StatusPending,
			BillingPeriodStart: periodStart,
			BillingPeriodEnd:   periodEnd,
			ClosedDate:         closedDate,
			CreatedAt:          now,
			UpdatedAt:          now,
		}

		if err := s.repo.Insert(ctx, tx, event); err != nil {
			return err
		}

		for _, safeguard := range result.Calculation.SafeguardsApplied() {
			s.metrics.RecordSafeguard(ctx, safeguard)
		}
		s.metrics.RecordEvent(ctx, string(plan.PricingModel), result.FeeAmount)

		recorded = event
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost a race with a concurrent close signal; the winner's
			// event is the canonical one.
			return s.repo.FindActiveByOpportunity(ctx, s.db, opportunityID)
		}
		return nil, err
	}

	_ = s.dedupe.Mark(ctx, dedupeKey)

	if recorded != nil {
		s.log.Info("outcome event recorded",
			zap.Int64("org_id", orgID.Int64()),
			zap.Int64("opportunity_id", opportunityID.Int64()),
			zap.Int64("fee_amount", recorded.FeeAmount),
			zap.String("status", string(recorded.Status)),
		)
	}

	return recorded, nil
}

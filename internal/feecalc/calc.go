// Package feecalc computes the fee owed for a single closed-won deal.
// Calculation is pure and never errors: degenerate plan configuration
// (nil percent, empty tiers) bills nothing and records why in the
// trace.
package feecalc

import (
	"math"

	plandomain "github.com/smallbiznis/dealbill/internal/pricingplan/domain"
)

// Result is the outcome of a fee calculation.
type Result struct {
	FeeAmount   int64
	Calculation Trace
}

type calcState struct {
	plan          plandomain.PricingPlan
	dealAmount    int64
	alreadyBilled int64

	fee    int64
	trace  Trace
	halted bool
}

type step struct {
	name string
	run  func(*calcState)
}

// Safeguard ordering is fixed: gate, model fee, floor, cap. Each step
// operates on the output of the previous one.
var pipeline = []step{
	{"min_deal_value_gate", minDealValueGate},
	{"model_fee", modelFee},
	{"min_fee_floor", minFeeFloor},
	{"monthly_cap", monthlyCap},
}

// Calculate derives the fee for a deal under the given plan. Amounts
// are in minor currency units. alreadyBilledCents is the sum already
// billed to the organization in the deal's billing period; it feeds
// the monthly cap check.
func Calculate(dealAmountCents int64, plan plandomain.PricingPlan, alreadyBilledCents int64) Result {
	s := &calcState{
		plan:          plan,
		dealAmount:    dealAmountCents,
		alreadyBilled: alreadyBilledCents,
	}
	s.trace.Model = plan.PricingModel

	for _, st := range pipeline {
		st.run(s)
		if s.halted {
			break
		}
	}

	return Result{FeeAmount: s.fee, Calculation: s.trace}
}

// minDealValueGate exempts deals below the plan's minimum deal value.
// Equality passes the gate.
func minDealValueGate(s *calcState) {
	if s.plan.MinDealValue > 0 && s.dealAmount < s.plan.MinDealValue {
		s.trace.BelowMinimum = true
		s.trace.MinDealValue = s.plan.MinDealValue
		s.fee = 0
		s.halted = true
	}
}

func modelFee(s *calcState) {
	switch s.plan.PricingModel {
	case plandomain.ModelRevenueShare:
		percent := floatValue(s.plan.RevenueSharePercent)
		raw := float64(s.dealAmount) * percent / 100
		s.fee = roundMoney(raw)
		s.trace.ModelTrace = RevenueShareTrace{
			DealAmount: s.dealAmount,
			Percent:    percent,
			RawFee:     raw,
		}
	case plandomain.ModelTieredFlatFee:
		trace := TieredTrace{DealAmount: s.dealAmount, NoTierMatch: true}
		for i := range s.plan.TierConfiguration {
			tier := s.plan.TierConfiguration[i]
			if tier.Contains(s.dealAmount) {
				s.fee = tier.Fee
				trace.MatchedTier = &tier
				trace.NoTierMatch = false
				break
			}
		}
		s.trace.ModelTrace = trace
	case plandomain.ModelFlatPerDeal:
		if s.plan.FlatFeePerDeal != nil {
			s.fee = *s.plan.FlatFeePerDeal
		}
		s.trace.ModelTrace = FlatFeeTrace{Fee: s.fee}
	case plandomain.ModelHybrid:
		percent := floatValue(s.plan.OutcomePercent)
		raw := float64(s.dealAmount) * percent / 100
		s.fee = roundMoney(raw)
		s.trace.ModelTrace = HybridTrace{
			DealAmount: s.dealAmount,
			Percent:    percent,
			RawFee:     raw,
		}
	}
}

// minFeeFloor raises cheap-but-billable fees to the plan minimum. A
// fee of exactly zero is exempt, never raised.
func minFeeFloor(s *calcState) {
	if s.fee > 0 && s.plan.MinFeePerDeal > 0 && s.fee < s.plan.MinFeePerDeal {
		s.trace.MinFeeApplied = true
		s.trace.CalculatedFee = s.fee
		s.fee = s.plan.MinFeePerDeal
	}
}

func monthlyCap(s *calcState) {
	if s.plan.MonthlyCap == nil {
		return
	}
	remaining := *s.plan.MonthlyCap - s.alreadyBilled
	switch {
	case remaining <= 0:
		s.trace.CappedToZero = true
		s.fee = 0
	case s.fee > remaining:
		original := s.fee
		s.trace.OriginalFee = &original
		s.trace.CappedTo = &remaining
		s.fee = remaining
	}
}

// roundMoney rounds half-up to the nearest whole minor unit.
func roundMoney(raw float64) int64 {
	return int64(math.Floor(raw + 0.5))
}

func floatValue(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

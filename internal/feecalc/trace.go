package feecalc

import (
	"encoding/json"

	plandomain "github.com/smallbiznis/dealbill/internal/pricingplan/domain"
)

// ModelTrace is the pricing-model-specific part of a calculation
// trace. Exactly one variant exists per pricing model so a trace can
// only carry fields that model produces.
type ModelTrace interface {
	modelTrace()
}

type RevenueShareTrace struct {
	DealAmount int64   `json:"deal_amount"`
	Percent    float64 `json:"percent"`
	RawFee     float64 `json:"raw_fee"`
}

func (RevenueShareTrace) modelTrace() {}

type TieredTrace struct {
	DealAmount  int64            `json:"deal_amount"`
	MatchedTier *plandomain.Tier `json:"matched_tier,omitempty"`
	NoTierMatch bool             `json:"no_tier_match,omitempty"`
}

func (TieredTrace) modelTrace() {}

type FlatFeeTrace struct {
	Fee int64 `json:"fee"`
}

func (FlatFeeTrace) modelTrace() {}

type HybridTrace struct {
	DealAmount int64   `json:"deal_amount"`
	Percent    float64 `json:"percent"`
	RawFee     float64 `json:"raw_fee"`
}

func (HybridTrace) modelTrace() {}

// Trace records how a fee was derived: the model-specific computation
// plus any safeguards applied afterwards. It is persisted verbatim on
// the outcome event as audit evidence.
type Trace struct {
	Model        plandomain.PricingModel
	BelowMinimum bool
	MinDealValue int64
	ModelTrace   ModelTrace

	MinFeeApplied bool
	CalculatedFee int64

	CappedToZero bool
	OriginalFee  *int64
	CappedTo     *int64
}

// SafeguardsApplied lists the safeguards that changed the fee, in
// application order.
func (t Trace) SafeguardsApplied() []string {
	var applied []string
	if t.BelowMinimum {
		applied = append(applied, "min_deal_value")
	}
	if t.MinFeeApplied {
		applied = append(applied, "min_fee_floor")
	}
	if t.CappedToZero || t.CappedTo != nil {
		applied = append(applied, "monthly_cap")
	}
	return applied
}

type traceJSON struct {
	Model         plandomain.PricingModel `json:"model"`
	BelowMinimum  bool                    `json:"below_minimum,omitempty"`
	MinDealValue  int64                   `json:"min_deal_value,omitempty"`
	RevenueShare  *RevenueShareTrace      `json:"revenue_share,omitempty"`
	Tiered        *TieredTrace            `json:"tiered,omitempty"`
	FlatFee       *FlatFeeTrace           `json:"flat_fee,omitempty"`
	Hybrid        *HybridTrace            `json:"hybrid,omitempty"`
	MinFeeApplied bool                    `json:"min_fee_applied,omitempty"`
	CalculatedFee int64                   `json:"calculated_fee,omitempty"`
	CappedToZero  bool                    `json:"capped_to_zero,omitempty"`
	OriginalFee   *int64                  `json:"original_fee,omitempty"`
	CappedTo      *int64                  `json:"capped_to,omitempty"`
}

func (t Trace) MarshalJSON() ([]byte, error) {
	out := traceJSON{
		Model:         t.Model,
		BelowMinimum:  t.BelowMinimum,
		MinDealValue:  t.MinDealValue,
		MinFeeApplied: t.MinFeeApplied,
		CalculatedFee: t.CalculatedFee,
		CappedToZero:  t.CappedToZero,
		OriginalFee:   t.OriginalFee,
		CappedTo:      t.CappedTo,
	}
	switch v := t.ModelTrace.(type) {
	case RevenueShareTrace:
		out.RevenueShare = &v
	case TieredTrace:
		out.Tiered = &v
	case FlatFeeTrace:
		out.FlatFee = &v
	case HybridTrace:
		out.Hybrid = &v
	}
	return json.Marshal(out)
}

func (t *Trace) UnmarshalJSON(data []byte) error {
	var in traceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*t = Trace{
		Model:         in.Model,
		BelowMinimum:  in.BelowMinimum,
		MinDealValue:  in.MinDealValue,
		MinFeeApplied: in.MinFeeApplied,
		CalculatedFee: in.CalculatedFee,
		CappedToZero:  in.CappedToZero,
		OriginalFee:   in.OriginalFee,
		CappedTo:      in.CappedTo,
	}
	switch {
	case in.RevenueShare != nil:
		t.ModelTrace = *in.RevenueShare
	case in.Tiered != nil:
		t.ModelTrace = *in.Tiered
	case in.FlatFee != nil:
		t.ModelTrace = *in.FlatFee
	case in.Hybrid != nil:
		t.ModelTrace = *in.Hybrid
	}
	return nil
}

package service

import "github.com/pesio-ai/be-agency-projects/internal/repository"

// CostInputs are the raw numbers a financial evaluation derives from.
// Amounts in cents.
type CostInputs struct {
	NSQC        int64
	Design      int64
	Media       int64
	KOL         int64
	Other       int64
	TotalBudget int64
}

// Financials are the derived figures. They are never edited independently;
// every evaluation write recomputes them from the current cost inputs.
type Financials struct {
	COGS         int64
	GrossProfit  int64
	ProfitMargin float64
}

// ComputeFinancials derives COGS, gross profit and margin from cost inputs.
// A zero total budget yields a zero margin rather than an error.
func ComputeFinancials(in CostInputs) Financials {
	cogs := in.NSQC + in.Design + in.Media + in.KOL + in.Other
	grossProfit := in.TotalBudget - cogs

	var margin float64
	if in.TotalBudget > 0 {
		margin = float64(grossProfit) / float64(in.TotalBudget) * 100
	}

	return Financials{
		COGS:         cogs,
		GrossProfit:  grossProfit,
		ProfitMargin: margin,
	}
}

// EvaluationPatch is a partial update to a pipeline's cost inputs. Nil
// fields keep their stored value.
type EvaluationPatch struct {
	CostNSQC    *int64 `json:"cost_nsqc"`
	CostDesign  *int64 `json:"cost_design"`
	CostMedia   *int64 `json:"cost_media"`
	CostKOL     *int64 `json:"cost_kol"`
	CostOther   *int64 `json:"cost_other"`
	TotalBudget *int64 `json:"total_budget"`
}

// mergeCosts overlays a patch on the stored record so partial updates never
// derive from stale inputs.
func mergeCosts(p *repository.Pipeline, patch *EvaluationPatch) CostInputs {
	in := CostInputs{
		NSQC:        p.CostNSQC,
		Design:      p.CostDesign,
		Media:       p.CostMedia,
		KOL:         p.CostKOL,
		Other:       p.CostOther,
		TotalBudget: p.TotalBudget,
	}
	if patch == nil {
		return in
	}
	if patch.CostNSQC != nil {
		in.NSQC = *patch.CostNSQC
	}
	if patch.CostDesign != nil {
		in.Design = *patch.CostDesign
	}
	if patch.CostMedia != nil {
		in.Media = *patch.CostMedia
	}
	if patch.CostKOL != nil {
		in.KOL = *patch.CostKOL
	}
	if patch.CostOther != nil {
		in.Other = *patch.CostOther
	}
	if patch.TotalBudget != nil {
		in.TotalBudget = *patch.TotalBudget
	}
	return in
}

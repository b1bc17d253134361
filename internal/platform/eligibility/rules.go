package eligibility

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Payer-name keywords used by the deterministic classifier.
var (
	medicareKeys   = []string{"medicare", "cms", "part d", "part b"}
	commercialKeys = []string{"blue", "aetna", "cigna", "uhc", "united healthcare", "anthem", "humana"}
	specialtyKeys  = []string{"optum", "caremark", "express scripts", "accredo", "cvs specialty", "walgreens specialty"}
)

// RuleBasedInvestigator determines coverage from payer-name keyword rules
// instead of calling an external API. Results are deterministic for a given
// request.
type RuleBasedInvestigator struct {
	logger zerolog.Logger
}

// NewRuleBasedInvestigator returns a ready-to-use RuleBasedInvestigator.
func NewRuleBasedInvestigator(logger zerolog.Logger) *RuleBasedInvestigator {
	return &RuleBasedInvestigator{logger: logger}
}

func (r *RuleBasedInvestigator) InvestigateMedical(_ context.Context, req Request) (*Result, error) {
	r.logger.Info().
		Str("patient_id", req.PatientID).
		Str("payer", req.PayerName).
		Msg("investigating medical coverage")

	coverageType := classifyCoverage(req.PayerName)
	priorAuth := priorAuthRequired(req.PayerName, req.PayerPlanID)

	return &Result{
		CoverageStatus:            StatusActive,
		CoverageType:              coverageType,
		PriorAuthRequired:         priorAuth,
		DeductibleApplies:         true,
		SpecialtyPharmacyRequired: false,
		Notes:                     buildNotes("MEDICAL", coverageType, priorAuth),
		AdditionalData: map[string]interface{}{
			"investigationType": "MEDICAL",
			"payerName":         req.PayerName,
			"memberId":          req.MemberID,
		},
	}, nil
}

func (r *RuleBasedInvestigator) InvestigatePharmacy(_ context.Context, req Request) (*Result, error) {
	r.logger.Info().
		Str("patient_id", req.PatientID).
		Str("payer", req.PayerName).
		Msg("investigating pharmacy coverage")

	coverageType := classifyCoverage(req.PayerName)
	priorAuth := priorAuthRequired(req.PayerName, req.PayerPlanID)

	return &Result{
		CoverageStatus:            StatusActive,
		CoverageType:              coverageType,
		PriorAuthRequired:         priorAuth,
		DeductibleApplies:         true,
		SpecialtyPharmacyRequired: specialtyPharmacyRequired(req.PayerName),
		Notes:                     buildNotes("PHARMACY", coverageType, priorAuth),
		AdditionalData: map[string]interface{}{
			"investigationType": "PHARMACY",
			"payerName":         req.PayerName,
			"memberId":          req.MemberID,
			"medicationName":    req.MedicationName,
		},
	}, nil
}

// Available always reports true: the rule engine has no external dependency.
func (r *RuleBasedInvestigator) Available(_ context.Context) bool { return true }

func classifyCoverage(payerName string) string {
	if strings.TrimSpace(payerName) == "" {
		return CoverageUnknown
	}

	lower := strings.ToLower(payerName)
	for _, k := range medicareKeys {
		if strings.Contains(lower, k) {
			return CoverageMedicare
		}
	}
	if strings.Contains(lower, "medicaid") {
		return CoverageMedicaid
	}
	for _, k := range commercialKeys {
		if strings.Contains(lower, k) {
			return CoverageCommercial
		}
	}
	return CoverageUnknown
}

func priorAuthRequired(payerName, planID string) bool {
	if strings.HasPrefix(strings.ToUpper(planID), "PA-") {
		return true
	}
	return strings.Contains(strings.ToLower(payerName), "hmo")
}

func specialtyPharmacyRequired(payerName string) bool {
	lower := strings.ToLower(payerName)
	for _, k := range specialtyKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func buildNotes(investigationType, coverageType string, priorAuth bool) string {
	var b strings.Builder
	b.WriteString(investigationType)
	b.WriteString(" coverage determined as ")
	b.WriteString(coverageType)
	b.WriteString(". ")
	if priorAuth {
		b.WriteString("Prior authorization is required. ")
	} else {
		b.WriteString("No prior authorization required. ")
	}
	b.WriteString("This is a rule-based determination for MVP purposes.")
	return b.String()
}

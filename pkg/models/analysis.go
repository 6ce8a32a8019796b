package models

import "time"

// RedFlagType enumerates the regulatory red-flag patterns the classifier is
// allowed to report (the Pahlka framework). Values are the snake_case
// identifiers the model must echo back; anything outside this set is dropped
// during response validation.
type RedFlagType string

const (
	// Complexity & policy debt
	RedFlagCrossReferenceSpaghetti RedFlagType = "cross_reference_spaghetti"
	RedFlagAccretedConditions      RedFlagType = "accreted_conditions"

	// Options turning into de facto requirements
	RedFlagSecurityControlsMenu RedFlagType = "security_controls_menu"
	RedFlagFactorsListMandatory RedFlagType = "factors_list_mandatory"

	// Separation of policy from implementation
	RedFlagPolicyTechSeparation       RedFlagType = "policy_tech_separation"
	RedFlagDesignOperationsSeparation RedFlagType = "design_operations_separation"

	// Overwrought legalese / requirement-driven text
	RedFlagLegaleseEligibility           RedFlagType = "legalese_eligibility"
	RedFlagRequirementDrivenUserResearch RedFlagType = "requirement_driven_user_research"

	// Cascade of rigidity
	RedFlagTooManyAbsoluteGoals    RedFlagType = "too_many_absolute_goals"
	RedFlagComplyWithAllApplicable RedFlagType = "comply_with_all_applicable"
	RedFlagAutomaticProcessRatchet RedFlagType = "automatic_process_ratchet"

	// Mandated steps vs outcomes
	RedFlagProcedureHeavyDigital  RedFlagType = "procedure_heavy_digital"
	RedFlagStepChecklistNoMetrics RedFlagType = "step_checklist_no_metrics"

	// Administrative burdens on the public
	RedFlagInPersonOnlyRecurring      RedFlagType = "in_person_only_recurring"
	RedFlagRedundantHardDocumentation RedFlagType = "redundant_hard_documentation"
	RedFlagUnrealisticDeadlines       RedFlagType = "unrealistic_deadlines"

	// Feedback loops & learning
	RedFlagOneShotNoLearning RedFlagType = "one_shot_no_learning"

	// Oversight that incentivizes process worship
	RedFlagIGRuleFollowingOnly RedFlagType = "ig_rule_following_only"

	// Better-safe-than-sorry maximalism
	RedFlagZeroRiskLanguage  RedFlagType = "zero_risk_language"
	RedFlagSecurityAbsolutes RedFlagType = "security_absolutes"

	// Technology or time-bound requirements
	RedFlagFrozenArchitecture RedFlagType = "frozen_architecture"
)

// AllRedFlagTypes lists every allowed identifier, in framework order. The
// prompt builder embeds this list into the response contract.
var AllRedFlagTypes = []RedFlagType{
	RedFlagCrossReferenceSpaghetti,
	RedFlagAccretedConditions,
	RedFlagSecurityControlsMenu,
	RedFlagFactorsListMandatory,
	RedFlagPolicyTechSeparation,
	RedFlagDesignOperationsSeparation,
	RedFlagLegaleseEligibility,
	RedFlagRequirementDrivenUserResearch,
	RedFlagTooManyAbsoluteGoals,
	RedFlagComplyWithAllApplicable,
	RedFlagAutomaticProcessRatchet,
	RedFlagProcedureHeavyDigital,
	RedFlagStepChecklistNoMetrics,
	RedFlagInPersonOnlyRecurring,
	RedFlagRedundantHardDocumentation,
	RedFlagUnrealisticDeadlines,
	RedFlagOneShotNoLearning,
	RedFlagIGRuleFollowingOnly,
	RedFlagZeroRiskLanguage,
	RedFlagSecurityAbsolutes,
	RedFlagFrozenArchitecture,
}

var redFlagSet = func() map[RedFlagType]struct{} {
	s := make(map[RedFlagType]struct{}, len(AllRedFlagTypes))
	for _, f := range AllRedFlagTypes {
		s[f] = struct{}{}
	}
	return s
}()

// String implements fmt.Stringer for logging.
func (f RedFlagType) String() string { return string(f) }

// IsValid returns true if the identifier is part of the allowed set.
func (f RedFlagType) IsValid() bool {
	_, ok := redFlagSet[f]
	return ok
}

// RegulationAnalysis is the structured verdict for one regulation: which red
// flags apply, supporting excerpts, and a 0-10 severity score (9-10 reserved
// for the worst of the worst).
type RegulationAnalysis struct {
	RedFlags             []RedFlagType `json:"red_flags"`
	SpecificTextExamples []string      `json:"specific_text_examples"`
	SeverityScore        int           `json:"severity_score"`
}

// AnalysisRecord is the persisted per-URL analysis result, keyed by URL in
// the result store and exported to CSV rows.
type AnalysisRecord struct {
	SourceIndex int                `json:"source_index"`
	URL         string             `json:"url"`
	Title       string             `json:"title"`
	URLType     LinkType           `json:"url_type"`
	Content     string             `json:"content"`
	Analysis    RegulationAnalysis `json:"analysis"`
	Model       string             `json:"model"`
	AnalyzedAt  time.Time          `json:"analyzed_at"`
}

package compliance

import (
	"slices"
	"strings"
	"time"
)

// frameworkRules accumulate: every matching rule contributes its framework.
var frameworkRules = []struct {
	framework Framework
	applies   func(BusinessContext) bool
}{
	{FrameworkGDPR, func(c BusinessContext) bool { return c.OperatesInEU }},
	{FrameworkMiFID, func(c BusinessContext) bool { return c.OperatesInEU && c.RegulatedSecurities }},
	{FrameworkPCIDSS, func(c BusinessContext) bool { return c.ProcessesPayments }},
	{FrameworkSOX, func(c BusinessContext) bool { return c.OperatesInUS }},
	{FrameworkAML, func(BusinessContext) bool { return true }},
}

// regionalFrameworks keys the data protection regime by ISO 3166 alpha-2.
var regionalFrameworks = map[string]Framework{
	"NG": FrameworkNDPR,
	"ZA": FrameworkPOPIA,
	"KE": FrameworkKenyaDPA,
	"GH": FrameworkGhanaDPA,
	"GB": FrameworkUKGDPR,
	"BR": FrameworkLGPD,
	"CA": FrameworkPIPEDA,
	"SG": FrameworkPDPA,
	"US": FrameworkCCPA,
}

// RegionalFramework returns the framework for a jurisdiction, if one is known.
func RegionalFramework(jurisdiction string) (Framework, bool) {
	f, ok := regionalFrameworks[strings.ToUpper(strings.TrimSpace(jurisdiction))]
	return f, ok
}

// DetermineApplicableFrameworks returns every framework triggered by ctx, in
// rule order followed by the regional framework. The result never contains
// duplicates.
func DetermineApplicableFrameworks(ctx BusinessContext) []Framework {
	var out []Framework
	for _, rule := range frameworkRules {
		if rule.applies(ctx) {
			out = append(out, rule.framework)
		}
	}
	if f, ok := RegionalFramework(ctx.PrimaryJurisdiction); ok && !slices.Contains(out, f) {
		out = append(out, f)
	}
	return out
}

// AssessComplianceRisk counts risk flags: zero or one is low, two or three
// medium, four or more high.
func AssessComplianceRisk(ctx BusinessContext) RiskLevel {
	flags := 0
	for _, set := range []bool{
		ctx.HighDataVolume,
		ctx.CrossBorderTransfers,
		ctx.ProcessesSensitiveData,
		ctx.PubliclyTraded,
		ctx.FinancialServices,
	} {
		if set {
			flags++
		}
	}
	switch {
	case flags >= 4:
		return RiskHigh
	case flags >= 2:
		return RiskMedium
	default:
		return RiskLow
	}
}

type requirementTemplate struct {
	id          string
	title       string
	description string
	priority    Priority
	due         time.Duration
	// when nil the requirement always applies
	applies func(BusinessContext) bool
}

const day = 24 * time.Hour

var requirementCatalog = map[Framework][]requirementTemplate{
	FrameworkGDPR: {
		{id: "gdpr-ropa", title: "Records of processing activities", description: "Maintain a register of all personal data processing operations", priority: PriorityHigh, due: 30 * day},
		{id: "gdpr-dpo", title: "Appoint a data protection officer", description: "Designate a DPO and publish their contact details", priority: PriorityHigh, due: 30 * day},
		{id: "gdpr-consent", title: "Consent management", description: "Capture, store and honour withdrawal of consent per purpose", priority: PriorityCritical, due: 14 * day},
		{id: "gdpr-dpia", title: "Data protection impact assessment", description: "Assess high risk processing before it starts", priority: PriorityHigh, due: 60 * day,
			applies: func(c BusinessContext) bool { return c.ProcessesSensitiveData || c.HighDataVolume }},
		{id: "gdpr-transfers", title: "International transfer safeguards", description: "Put standard contractual clauses in place for transfers outside the EEA", priority: PriorityHigh, due: 45 * day,
			applies: func(c BusinessContext) bool { return c.CrossBorderTransfers }},
		{id: "gdpr-breach", title: "Breach notification procedure", description: "Notify the supervisory authority within 72 hours of discovery", priority: PriorityCritical, due: 7 * day},
	},
	FrameworkMiFID: {
		{id: "mifid-best-execution", title: "Best execution policy", description: "Document and monitor order execution quality", priority: PriorityHigh, due: 90 * day},
		{id: "mifid-recordkeeping", title: "Communication record keeping", description: "Retain client order communications for five years", priority: PriorityHigh, due: 60 * day},
		{id: "mifid-reporting", title: "Transaction reporting", description: "Report executed transactions to the competent authority by T+1", priority: PriorityCritical, due: 30 * day},
	},
	FrameworkPCIDSS: {
		{id: "pci-cardholder-data", title: "Protect stored cardholder data", description: "Encrypt stored card data and minimise retention", priority: PriorityCritical, due: 30 * day},
		{id: "pci-access-control", title: "Restrict access to cardholder data", description: "Grant access on a need to know basis with unique ids", priority: PriorityHigh, due: 45 * day},
		{id: "pci-scan", title: "Quarterly vulnerability scans", description: "Run approved scanning vendor scans every quarter", priority: PriorityMedium, due: 90 * day},
	},
	FrameworkSOX: {
		{id: "sox-302", title: "Management certification", description: "Officers certify financial report accuracy each period", priority: PriorityHigh, due: 90 * day,
			applies: func(c BusinessContext) bool { return c.PubliclyTraded }},
		{id: "sox-404", title: "Internal control assessment", description: "Document and test internal controls over financial reporting", priority: PriorityHigh, due: 120 * day},
		{id: "sox-audit-trail", title: "Audit trail retention", description: "Retain audit records for seven years", priority: PriorityMedium, due: 60 * day},
	},
	FrameworkAML: {
		{id: "aml-cdd", title: "Customer due diligence", description: "Verify customer identity before establishing a relationship", priority: PriorityCritical, due: 30 * day},
		{id: "aml-monitoring", title: "Transaction monitoring", description: "Monitor transactions for suspicious patterns", priority: PriorityHigh, due: 60 * day},
		{id: "aml-sar", title: "Suspicious activity reporting", description: "File suspicious activity reports with the financial intelligence unit", priority: PriorityCritical, due: 30 * day},
		{id: "aml-edd", title: "Enhanced due diligence", description: "Apply enhanced checks to high risk customers", priority: PriorityHigh, due: 45 * day,
			applies: func(c BusinessContext) bool { return c.FinancialServices || c.CrossBorderTransfers }},
	},
}

// regionalRequirements apply to every regional data protection regime that
// has no dedicated catalog entry.
var regionalRequirements = []requirementTemplate{
	{id: "registration", title: "Register with the data protection authority", description: "Complete controller registration with the local regulator", priority: PriorityHigh, due: 30 * day},
	{id: "local-notice", title: "Local privacy notice", description: "Publish a privacy notice meeting local disclosure rules", priority: PriorityMedium, due: 45 * day},
	{id: "breach-notice", title: "Local breach notification", description: "Notify the local authority of qualifying breaches", priority: PriorityCritical, due: 14 * day},
}

// GetRequirements returns the checklist for framework with deadlines offset
// from now. Unknown frameworks yield an empty checklist.
func GetRequirements(framework Framework, ctx BusinessContext, now time.Time) []Requirement {
	templates, ok := requirementCatalog[framework]
	prefix := ""
	if !ok {
		if !isRegional(framework) {
			return []Requirement{}
		}
		templates = regionalRequirements
		prefix = string(framework) + "-"
	}
	out := make([]Requirement, 0, len(templates))
	for _, t := range templates {
		if t.applies != nil && !t.applies(ctx) {
			continue
		}
		out = append(out, Requirement{
			ID:          prefix + t.id,
			Framework:   framework,
			Title:       t.title,
			Description: t.description,
			Priority:    t.priority,
			Deadline:    now.Add(t.due),
			Status:      RequirementPending,
		})
	}
	return out
}

func isRegional(f Framework) bool {
	for _, rf := range regionalFrameworks {
		if rf == f {
			return true
		}
	}
	return false
}

package compliance

import (
	"slices"
	"strings"
	"time"
)

// AuthorityNotificationWindow is the time allowed to notify the supervisory
// authority after a breach is discovered.
const AuthorityNotificationWindow = 72 * time.Hour

// BreachThresholds bound the record-count bands. Counts below MediumFrom are
// low; counts above HighAbove are high.
type BreachThresholds struct {
	MediumFrom int
	HighAbove  int
}

func DefaultBreachThresholds() BreachThresholds {
	return BreachThresholds{MediumFrom: 1_000, HighAbove: 10_000}
}

// sensitiveDataTypes escalate a breach by one band.
var sensitiveDataTypes = map[string]struct{}{
	"financial":     {},
	"payment_card":  {},
	"bank_account":  {},
	"health":        {},
	"medical":       {},
	"biometric":     {},
	"genetic":       {},
	"government_id": {},
}

var severityOrder = []Severity{SeverityLow, SeverityMedium, SeverityHigh}

// InvolvesSensitiveData reports whether any affected type is sensitive.
func InvolvesSensitiveData(dataTypes []string) bool {
	for _, t := range dataTypes {
		if _, ok := sensitiveDataTypes[strings.ToLower(strings.TrimSpace(t))]; ok {
			return true
		}
	}
	return false
}

// AssessBreachSeverity bands the record count and escalates one band when
// sensitive categories are involved.
func AssessBreachSeverity(b Breach, th BreachThresholds) Severity {
	idx := 0
	switch {
	case b.AffectedRecordCount > th.HighAbove:
		idx = 2
	case b.AffectedRecordCount >= th.MediumFrom:
		idx = 1
	}
	if InvolvesSensitiveData(b.AffectedDataTypes) {
		idx = min(idx+1, len(severityOrder)-1)
	}
	return severityOrder[idx]
}

func severityRank(s Severity) int {
	return slices.Index(severityOrder, s)
}

// IsAuthorityNotificationRequired is false only for low severity breaches
// without sensitive categories. It is monotonic in severity.
func IsAuthorityNotificationRequired(severity Severity, dataTypes []string) bool {
	return severityRank(severity) >= severityRank(SeverityMedium) || InvolvesSensitiveData(dataTypes)
}

// IsDataSubjectNotificationRequired applies the stricter high-risk test:
// subjects are told once severity is high or sensitive data is involved.
func IsDataSubjectNotificationRequired(severity Severity, dataTypes []string) bool {
	return severityRank(severity) >= severityRank(SeverityHigh) || InvolvesSensitiveData(dataTypes)
}

package audit

import "strings"

// ActionCategory groups audit actions that share a retention obligation.
type ActionCategory string

const (
	CategoryAuthentication ActionCategory = "authentication"
	CategoryDataAccess     ActionCategory = "data_access"
	CategoryFinancial      ActionCategory = "financial"
	CategoryIdentity       ActionCategory = "identity"
	CategoryCompliance     ActionCategory = "compliance"
	CategoryDocuments      ActionCategory = "documents"
	CategoryGeneral        ActionCategory = "general"
)

// retentionDays per category. Financial and compliance records follow the
// seven year bookkeeping horizon; identity evidence five years after the
// relationship per AML record keeping.
var retentionDays = map[ActionCategory]int{
	CategoryAuthentication: 365,
	CategoryDataAccess:     1095,
	CategoryFinancial:      2555,
	CategoryIdentity:       1825,
	CategoryCompliance:     2555,
	CategoryDocuments:      2555,
	CategoryGeneral:        365,
}

var actionPrefixes = []struct {
	prefix   string
	category ActionCategory
}{
	{"login", CategoryAuthentication},
	{"logout", CategoryAuthentication},
	{"password", CategoryAuthentication},
	{"token", CategoryAuthentication},
	{"mfa", CategoryAuthentication},
	{"data_", CategoryDataAccess},
	{"payload_", CategoryDataAccess},
	{"transaction", CategoryFinancial},
	{"payment", CategoryFinancial},
	{"investment", CategoryFinancial},
	{"kyc", CategoryIdentity},
	{"consent", CategoryCompliance},
	{"dsr", CategoryCompliance},
	{"breach", CategoryCompliance},
	{"esign", CategoryDocuments},
	{"document", CategoryDocuments},
}

// CategorizeAction maps an action name to its category by prefix.
func CategorizeAction(action string) ActionCategory {
	a := strings.ToLower(action)
	for _, p := range actionPrefixes {
		if strings.HasPrefix(a, p.prefix) {
			return p.category
		}
	}
	return CategoryGeneral
}

// RetentionDays returns the retention period for action.
func RetentionDays(action string) int {
	return retentionDays[CategorizeAction(action)]
}

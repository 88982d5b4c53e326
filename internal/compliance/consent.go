package compliance

import (
	"time"

	dErrors "bastion/pkg/domain-errors"
	pstrings "bastion/pkg/platform/strings"
)

// consentHorizons is how long each consent type stays valid after it is
// granted. Necessary processing does not expire.
var consentHorizons = map[ConsentType]time.Duration{
	ConsentNecessary:  0,
	ConsentFunctional: 365 * day,
	ConsentAnalytics:  395 * day,
	ConsentMarketing:  730 * day,
	ConsentThirdParty: 365 * day,
	ConsentProfiling:  180 * day,
}

var legalBases = map[LegalBasis]struct{}{
	BasisConsent:            {},
	BasisContract:           {},
	BasisLegalObligation:    {},
	BasisVitalInterests:     {},
	BasisPublicTask:         {},
	BasisLegitimateInterest: {},
}

// ParseConsentTypes normalizes raw type names. Every unknown name is reported.
func ParseConsentTypes(raw []string) ([]ConsentType, error) {
	names := pstrings.Normalize(raw, pstrings.Fold)
	if len(names) == 0 {
		return nil, dErrors.Validation("invalid consent",
			dErrors.FieldError{Field: "consent_types", Message: "at least one consent type is required"})
	}
	var (
		types  = make([]ConsentType, 0, len(names))
		fields []dErrors.FieldError
	)
	for _, n := range names {
		ct := ConsentType(n)
		if _, ok := consentHorizons[ct]; !ok {
			fields = append(fields, dErrors.FieldError{Field: "consent_types", Message: "unknown consent type: " + n})
			continue
		}
		types = append(types, ct)
	}
	if len(fields) > 0 {
		return nil, dErrors.Validation("invalid consent", fields...)
	}
	return types, nil
}

// CalculateConsentExpiry returns the longest horizon among types measured
// from grantedAt, or nil when every type is necessary.
func CalculateConsentExpiry(types []ConsentType, grantedAt time.Time) *time.Time {
	var longest time.Duration
	for _, t := range types {
		if h := consentHorizons[t]; h > longest {
			longest = h
		}
	}
	if longest == 0 {
		return nil
	}
	exp := grantedAt.Add(longest)
	return &exp
}

func validLegalBasis(b LegalBasis) bool {
	_, ok := legalBases[b]
	return ok
}

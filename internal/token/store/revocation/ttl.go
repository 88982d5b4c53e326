package revocation

import (
	"fmt"
	"time"

	"bastion/pkg/platform/sentinel"
	pstrings "bastion/pkg/platform/strings"
)

// Clock returns the current time.
type Clock func() time.Time

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	return nil
}

// nonEmpty drops blank and repeated jtis; a batch upsert may not touch the
// same row twice.
func nonEmpty(jtis []string) []string {
	return pstrings.Normalize(jtis, pstrings.Exact)
}

package compliance

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DSRDeadline is the statutory response window.
const DSRDeadline = 30 * day

var dsrTypes = map[DSRType]struct{}{
	DSRAccess:        {},
	DSRErasure:       {},
	DSRPortability:   {},
	DSRRectification: {},
	DSRObjection:     {},
}

// dsrTransitions lists the statuses reachable from each status.
var dsrTransitions = map[DSRStatus][]DSRStatus{
	DSRReceived:   {DSRInProgress, DSRRejected},
	DSRInProgress: {DSRCompleted, DSRRejected},
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to DSRStatus) bool {
	for _, s := range dsrTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ReferenceNumber derives the human facing reference for a request from its
// id and the year of createdAt. Pass the request's stored CreatedAt, never the
// current time: the year is part of the reference. ProcessDataSubjectRequest
// computes it once at creation and returns the stored request on resubmission.
func ReferenceNumber(requestID string, createdAt time.Time) string {
	sum := sha256.Sum256([]byte(requestID))
	return fmt.Sprintf("DSR-%d-%s", createdAt.UTC().Year(), hex.EncodeToString(sum[:4]))
}

package audit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	criticalPenalty = 20
	highPenalty     = 10
)

// ParseTimeframe accepts Go durations plus a day suffix ("7d").
func ParseTimeframe(s string) (time.Duration, error) {
	if s == "" {
		return 24 * time.Hour, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid timeframe %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", s)
	}
	return d, nil
}

// Summarize is a pure aggregation over events.
func Summarize(events []SecurityEvent) Summary {
	s := Summary{
		EventsByType:     make(map[EventType]int),
		EventsBySeverity: make(map[Severity]int),
		SecurityScore:    100,
	}
	for _, e := range events {
		s.TotalEvents++
		s.EventsByType[e.EventType]++
		s.EventsBySeverity[e.Severity]++
		switch e.Severity {
		case SeverityCritical:
			s.SecurityScore -= criticalPenalty
		case SeverityHigh:
			s.SecurityScore -= highPenalty
		}
	}
	s.SecurityScore = max(0, s.SecurityScore)
	s.Recommendations = recommendations(s)
	return s
}

func recommendations(s Summary) []string {
	var recs []string
	if s.EventsBySeverity[SeverityCritical] > 0 {
		recs = append(recs, "Investigate critical security events immediately")
	}
	if n := s.EventsByType[EventDecryptionFailed] + s.EventsByType[EventEncryptionFailed]; n > 0 {
		recs = append(recs, "Review encryption key usage and look for tampered payloads")
	}
	if s.EventsByType[EventLoginFailed] >= 10 {
		recs = append(recs, "Elevated failed logins: enforce multi-factor authentication")
	}
	if s.EventsByType[EventRateLimitExceeded]+s.EventsByType[EventAdaptiveLimitSet] > 0 {
		recs = append(recs, "Review rate limit violations and consider blocking abusive sources")
	}
	if s.EventsByType[EventRevokedTokenUsed] > 0 {
		recs = append(recs, "Revoked tokens are still being presented: check for credential theft")
	}
	if s.EventsByType[EventKYCHighRisk]+s.EventsByType[EventKYCFailed] > 0 {
		recs = append(recs, "Escalate high risk identity verifications for manual review")
	}
	if s.EventsByType[EventDSROverdue] > 0 {
		recs = append(recs, "Resolve overdue data subject requests before the statutory deadline")
	}
	if len(recs) == 0 {
		recs = append(recs, "No action required")
	}
	return recs
}

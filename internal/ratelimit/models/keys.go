package models

import "strings"

// KeyPrefix separates counters by who is being limited.
type KeyPrefix string

const (
	KeyPrefixSubject KeyPrefix = "subject"
	KeyPrefixIP      KeyPrefix = "ip"
	KeyPrefixLogin   KeyPrefix = "login"
)

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// to prevent key collision attacks where user-controlled identifiers containing
// ':' could manipulate adjacent rate limit buckets.
//
// Example: An identifier "user:admin" would become "user_admin", preventing
// it from being interpreted as a separate key segment.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// KeyFor derives the counter key. Authenticated callers are limited by
// subject; unauthenticated auth attempts by address and submitted identifier;
// everything else by address.
func KeyFor(req Request) string {
	var b strings.Builder
	b.WriteString(string(req.Route))
	b.WriteByte(':')
	switch {
	case req.SubjectID != "":
		b.WriteString(string(KeyPrefixSubject))
		b.WriteByte(':')
		b.WriteString(SanitizeKeySegment(req.SubjectID))
	case req.Route == RouteAuth && req.Identifier != "":
		b.WriteString(string(KeyPrefixLogin))
		b.WriteByte(':')
		b.WriteString(SanitizeKeySegment(req.IP))
		b.WriteByte(':')
		b.WriteString(SanitizeKeySegment(NormalizeIdentifier(req.Identifier)))
	default:
		b.WriteString(string(KeyPrefixIP))
		b.WriteByte(':')
		b.WriteString(SanitizeKeySegment(req.IP))
	}
	return b.String()
}

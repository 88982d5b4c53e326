// Package privacy reduces identifiers before they reach logs.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
)

// AnonymizeIP masks the host part of an address: IPv4 keeps the /24 prefix,
// IPv6 keeps the /48 prefix. Unparseable input is hashed.
func AnonymizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "h:" + HashIdentifier(ip)[:12]
	}
	if v4 := parsed.To4(); v4 != nil {
		return net.IPv4(v4[0], v4[1], v4[2], 0).String()
	}
	masked := parsed.Mask(net.CIDRMask(48, 128))
	return masked.String()
}

// HashIdentifier returns a hex SHA-256 digest, used for emails and national
// IDs in audit details.
func HashIdentifier(value string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(value))))
	return hex.EncodeToString(sum[:])
}

package pixel

import "strings"

// Uncompressed transfer syntax identifiers
const (
	ImplicitVRLittleEndian = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
	ExplicitVRBigEndian    = "1.2.840.10008.1.2.2"
)

var uncompressed = map[string]bool{
	ImplicitVRLittleEndian: true,
	ExplicitVRLittleEndian: true,
	ExplicitVRBigEndian:    true,
}

// NormalizeSyntax trims padding characters that some writers leave on UIDs
func NormalizeSyntax(uid string) string {
	return strings.TrimRight(strings.TrimSpace(uid), "\x00")
}

// IsUncompressed reports whether uid is on the uncompressed allowlist.
// An empty identifier is treated as implicit little endian, the default encoding.
func IsUncompressed(uid string) bool {
	uid = NormalizeSyntax(uid)
	if uid == "" {
		return true
	}
	return uncompressed[uid]
}

// IsBigEndian reports whether uid encodes samples most significant byte first
func IsBigEndian(uid string) bool {
	return NormalizeSyntax(uid) == ExplicitVRBigEndian
}

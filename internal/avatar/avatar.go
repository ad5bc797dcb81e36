// Package avatar derives stable avatar URLs from email addresses.
//
// The digest of the lower-cased email keys into an external identicon
// service, so the same email always yields the same image without the
// application storing anything.
package avatar

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// DefaultBaseURL is the Gravatar endpoint.
const DefaultBaseURL = "https://www.gravatar.com/avatar"

// DigestFn computes a hex fingerprint of a normalized email address.
// Isolating it lets the digest algorithm change without touching callers.
type DigestFn func(email string) string

// MD5Digest is the Gravatar-compatible digest: MD5 hex of the
// lower-cased, trimmed email.
func MD5Digest(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Service builds avatar URLs for user emails.
type Service struct {
	baseURL string
	digest  DigestFn
}

// New creates a Service. Empty baseURL falls back to Gravatar and a nil
// digest falls back to MD5Digest.
func New(baseURL string, digest DigestFn) *Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if digest == nil {
		digest = MD5Digest
	}
	return &Service{baseURL: strings.TrimRight(baseURL, "/"), digest: digest}
}

// URL returns the identicon URL for an email at the requested pixel size.
// Same email (in any case) always produces the same URL.
func (s *Service) URL(email string, size int) string {
	return fmt.Sprintf("%s/%s?d=identicon&s=%d", s.baseURL, s.digest(email), size)
}

// Package classify maps raw publisher error strings to a closed set of
// failure kinds. Retry and DLQ reporting key off the kind, never off the
// third-party error prose itself.
package classify

import "strings"

type ErrorKind string

const (
	RateLimit     ErrorKind = "rate_limit"
	AuthError     ErrorKind = "auth_error"
	NetworkError  ErrorKind = "network_error"
	ContentError  ErrorKind = "content_error"
	QuotaExceeded ErrorKind = "quota_exceeded"
	Unknown       ErrorKind = "unknown"
)

// rules are evaluated in order; the first matching kind wins, so overlapping
// terms ("429 Too Many Requests" is both a rate-limit and a generic HTTP
// error) always resolve the same way.
var rules = []struct {
	kind     ErrorKind
	keywords []string
}{
	{RateLimit, []string{"rate limit", "too many", "429"}},
	{AuthError, []string{"auth", "token", "401", "403", "login"}},
	{NetworkError, []string{"network", "timeout", "connection", "socket"}},
	{ContentError, []string{"media", "file", "format", "size", "invalid"}},
	{QuotaExceeded, []string{"quota", "limit exceeded", "daily"}},
}

// Classify returns the failure kind for a raw error message. Matching is
// case-insensitive and total: any unmatched input, including the empty
// string, is Unknown.
func Classify(raw string) ErrorKind {
	msg := strings.ToLower(raw)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(msg, kw) {
				return r.kind
			}
		}
	}
	return Unknown
}

// Package retry classifies pipeline failures and re-runs failed steps with backoff.
package retry

import "strings"

// Classification decides whether a failed step may be attempted again.
type Classification int

const (
	Retryable Classification = iota
	Fatal
)

func (c Classification) String() string {
	if c == Fatal {
		return "fatal"
	}
	return "retryable"
}

// Pattern lists are matched against the lower-cased error message, in this order.
var (
	// TransientPatterns mark network, rate-limit and provider-side failures.
	TransientPatterns = []string{
		"rate limit",
		"too many requests",
		"temporarily unavailable",
		"service unavailable",
		"timeout",
		"timed out",
		"deadline exceeded",
		"connection",
		"network",
		"server error",
		"internal error",
		"bad gateway",
		"gateway timeout",
		"overloaded",
		"try again",
		"transport",
		"curl error",
		"eof",
	}

	// FatalPatterns mark credential and request-format failures that never self-resolve.
	FatalPatterns = []string{
		"invalid api key",
		"incorrect api key",
		"authentication",
		"unauthorized",
		"forbidden",
		"not found",
		"method not allowed",
		"unsupported",
		"invalid request",
		"bad request",
		"malformed",
		"quota exceeded",
	}

	// StructuralPatterns mark schema defects that a second attempt will not fix.
	StructuralPatterns = []string{
		"schema validation",
		"required field missing",
		"invalid structure",
	}

	// JSONPatterns mark parse failures, usually caused by truncated or corrupted output.
	JSONPatterns = []string{
		"json",
		"syntax error",
		"control character error",
		"unexpected end of json input",
		"invalid character",
		"unexpected character",
		"unexpected token",
		"unterminated string",
		"invalid escape sequence",
	}
)

// Classify inspects the error message and reports whether the failure is worth retrying.
// Unmatched errors are retryable.
func Classify(err error) Classification {
	if err == nil {
		return Retryable
	}
	return ClassifyMessage(err.Error())
}

// ClassifyMessage applies the pattern lists to a raw message.
func ClassifyMessage(message string) Classification {
	normalized := strings.ToLower(message)

	if containsAny(normalized, TransientPatterns) {
		return Retryable
	}
	if containsAny(normalized, FatalPatterns) {
		return Fatal
	}
	if containsAny(normalized, StructuralPatterns) {
		return Fatal
	}
	if containsAny(normalized, JSONPatterns) {
		return Retryable
	}

	return Retryable
}

func containsAny(haystack string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(haystack, pattern) {
			return true
		}
	}
	return false
}

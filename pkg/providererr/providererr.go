// Package providererr classifies failures reported by external providers.
package providererr

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

type Kind int

const (
	// KindTransient covers network failures, timeouts and 5xx answers.
	KindTransient Kind = iota
	// KindQuota is an account, billing or quota problem; retrying soon will not help.
	KindQuota
	// KindNoResult means the call worked but produced nothing usable.
	KindNoResult
	// KindSchema means the content failed structural validation.
	KindSchema
	// KindIntegrity means an expected record is missing.
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindQuota:
		return "quota"
	case KindNoResult:
		return "no_result"
	case KindSchema:
		return "schema"
	case KindIntegrity:
		return "integrity"
	default:
		return "transient"
	}
}

type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Provider == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(kind Kind, provider string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Provider: provider, Err: err}
}

func Transient(provider string, err error) error { return wrap(KindTransient, provider, err) }
func Quota(provider string, err error) error     { return wrap(KindQuota, provider, err) }
func NoResult(provider string, err error) error  { return wrap(KindNoResult, provider, err) }
func Schema(provider string, err error) error    { return wrap(KindSchema, provider, err) }
func Integrity(provider string, err error) error { return wrap(KindIntegrity, provider, err) }

// KindOf returns the classification of the first classified error in the chain.
// Unclassified errors are matched against the quota message patterns.
func KindOf(err error) Kind {
	if err == nil {
		return KindTransient
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if MatchesQuota(err.Error()) {
		return KindQuota
	}
	return KindTransient
}

func IsQuota(err error) bool {
	return err != nil && KindOf(err) == KindQuota
}

func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

var quotaPatterns = []string{
	"quota",
	"billing",
	"insufficient_quota",
	"insufficient credits",
	"credit balance",
	"exceeded your current",
	"payment required",
	"account is not active",
	"account suspended",
	"invalid api key",
	"incorrect api key",
	"unauthorized",
}

// MatchesQuota reports whether a provider message reads like an account or quota failure.
func MatchesQuota(message string) bool {
	lower := strings.ToLower(message)
	for _, p := range quotaPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// FromHTTP classifies a non-2xx provider response.
func FromHTTP(provider string, status int, body string) error {
	err := fmt.Errorf("status %d: %s", status, truncate(body, 300))
	switch {
	case status == 401 || status == 402 || status == 403:
		return Quota(provider, err)
	case MatchesQuota(body):
		return Quota(provider, err)
	default:
		return Transient(provider, err)
	}
}

// FromTransport classifies an error returned before any response arrived.
func FromTransport(provider string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient(provider, err)
	}
	if MatchesQuota(err.Error()) {
		return Quota(provider, err)
	}
	return Transient(provider, err)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package carrier

import "strings"

// SenderPolicy decides which "from" address a destination region accepts.
type SenderPolicy int

const (
	// PolicyAlphanumericWithFallback prefers the brand id and falls back to
	// the number when no brand id is configured or the carrier rejects it.
	PolicyAlphanumericWithFallback SenderPolicy = iota
	// PolicyAlphanumeric sends under the brand id.
	PolicyAlphanumeric
	// PolicyNumber sends from the registered long code.
	PolicyNumber
)

var senderPolicies = map[string]SenderPolicy{
	"GB": PolicyAlphanumeric,
	"IE": PolicyAlphanumeric,
	"US": PolicyNumber,
	"CA": PolicyNumber,
}

// PolicyFor returns the sender policy of an ISO region.
func PolicyFor(region string) SenderPolicy {
	if p, ok := senderPolicies[strings.ToUpper(region)]; ok {
		return p
	}
	return PolicyAlphanumericWithFallback
}

// SenderIdentity is the resolved "from" address.
type SenderIdentity struct {
	Value        string
	Alphanumeric bool
	// Fallback is the number to retry with when the carrier rejects an
	// alphanumeric sender; empty when no fallback applies.
	Fallback string
}

// Senders holds the identities configured for the account.
type Senders struct {
	AlphanumericID string
	PhoneNumber    string
}

// Select resolves the sender for region.
func (s Senders) Select(region string) SenderIdentity {
	switch PolicyFor(region) {
	case PolicyNumber:
		return SenderIdentity{Value: s.PhoneNumber}
	case PolicyAlphanumeric:
		if s.AlphanumericID == "" {
			return SenderIdentity{Value: s.PhoneNumber}
		}
		return SenderIdentity{Value: s.AlphanumericID, Alphanumeric: true}
	default:
		if s.AlphanumericID == "" {
			return SenderIdentity{Value: s.PhoneNumber}
		}
		return SenderIdentity{Value: s.AlphanumericID, Alphanumeric: true, Fallback: s.PhoneNumber}
	}
}

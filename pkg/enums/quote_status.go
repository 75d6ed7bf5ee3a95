package enums

import "fmt"

// QuoteStatus tracks a cached quote through the submission lifecycle.
type QuoteStatus string

const (
	QuoteStatusDraft   QuoteStatus = "draft"
	QuoteStatusPending QuoteStatus = "pending"
	QuoteStatusSynced  QuoteStatus = "synced"
	QuoteStatusFailed  QuoteStatus = "failed"
)

var validQuoteStatuses = []QuoteStatus{
	QuoteStatusDraft,
	QuoteStatusPending,
	QuoteStatusSynced,
	QuoteStatusFailed,
}

// String implements fmt.Stringer.
func (s QuoteStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known QuoteStatus.
func (s QuoteStatus) IsValid() bool {
	for _, candidate := range validQuoteStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsUnsynced reports whether the record still needs a flush attempt.
func (s QuoteStatus) IsUnsynced() bool {
	return s == QuoteStatusPending || s == QuoteStatusFailed
}

// CanTransitionTo reports whether the status machine permits the move.
// Synced is terminal; a record never leaves it.
func (s QuoteStatus) CanTransitionTo(next QuoteStatus) bool {
	switch s {
	case QuoteStatusDraft:
		return next == QuoteStatusPending
	case QuoteStatusPending:
		return next == QuoteStatusSynced || next == QuoteStatusFailed
	case QuoteStatusFailed:
		return next == QuoteStatusPending || next == QuoteStatusSynced
	default:
		return false
	}
}

// ParseQuoteStatus converts raw input into a QuoteStatus.
func ParseQuoteStatus(value string) (QuoteStatus, error) {
	for _, candidate := range validQuoteStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quote status %q", value)
}

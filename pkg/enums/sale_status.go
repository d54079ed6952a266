package enums

import "fmt"

// SaleStatus describes the lifecycle of a locally queued offline sale.
type SaleStatus string

const (
	SaleStatusQueued  SaleStatus = "queued"
	SaleStatusSyncing SaleStatus = "syncing"
	SaleStatusSynced  SaleStatus = "synced"
	SaleStatusFailed  SaleStatus = "failed"
)

var validSaleStatuses = []SaleStatus{
	SaleStatusQueued,
	SaleStatusSyncing,
	SaleStatusSynced,
	SaleStatusFailed,
}

// IsValid reports whether the value matches the canonical sale status enum.
func (s SaleStatus) IsValid() bool {
	for _, candidate := range validSaleStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed out of the status.
// Only synced is terminal; failed stays eligible for a manual retry.
func (s SaleStatus) IsTerminal() bool {
	return s == SaleStatusSynced
}

// CanTransitionTo reports whether the status machine allows moving to next.
// The machine only moves forward: queued -> syncing -> {synced | failed},
// with failed -> syncing permitted for retries.
func (s SaleStatus) CanTransitionTo(next SaleStatus) bool {
	switch s {
	case SaleStatusQueued:
		return next == SaleStatusSyncing
	case SaleStatusSyncing:
		return next == SaleStatusSynced || next == SaleStatusFailed
	case SaleStatusFailed:
		return next == SaleStatusSyncing
	default:
		return false
	}
}

// ParseSaleStatus converts the raw string to SaleStatus.
func ParseSaleStatus(value string) (SaleStatus, error) {
	for _, candidate := range validSaleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale status %q", value)
}

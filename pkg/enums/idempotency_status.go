package enums

// IdempotencyStatus tracks the resolution state of an idempotency key.
type IdempotencyStatus string

const (
	IdempotencyStatusInProgress IdempotencyStatus = "in_progress"
	IdempotencyStatusSucceeded  IdempotencyStatus = "succeeded"
	IdempotencyStatusFailed     IdempotencyStatus = "failed"
)

// IsResolved reports whether the key is permanently bound to an outcome.
func (s IdempotencyStatus) IsResolved() bool {
	return s == IdempotencyStatusSucceeded || s == IdempotencyStatusFailed
}

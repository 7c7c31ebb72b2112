package services

import "bidding-system/internal/domain"

// ValidateIncrement accepts a proposal only when it is exactly one increment
// above the current price. Anything else reports which side it missed.
func ValidateIncrement(proposed, current, increment int64) domain.Violation {
	expected := current + increment
	switch {
	case proposed < expected:
		return domain.ViolationBelowIncrement
	case proposed > expected:
		return domain.ViolationAboveIncrement
	default:
		return domain.ViolationNone
	}
}

// IncrementValidator binds the fixed increment for the committer.
type IncrementValidator struct {
	increment int64
}

func NewIncrementValidator(increment int64) *IncrementValidator {
	return &IncrementValidator{increment: increment}
}

func (v *IncrementValidator) Validate(proposed, current int64) domain.Violation {
	return ValidateIncrement(proposed, current, v.increment)
}

func (v *IncrementValidator) NextAmount(current int64) int64 {
	return current + v.increment
}

func (v *IncrementValidator) Increment() int64 {
	return v.increment
}

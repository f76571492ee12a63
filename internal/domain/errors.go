package domain

import "errors"

// Validation errors: the caller's fault, propagated verbatim and never
// retried. Each carries the precise reason so a caller can react (disable a
// button, pick another index) without string inspection.
var (
	ErrQuestionTooLong     = errors.New("question exceeds 200 characters")
	ErrInvalidDeadline     = errors.New("deadline must be in the future")
	ErrInvalidStake        = errors.New("invalid stake amount")
	ErrStakeMismatch       = errors.New("stake does not match the market's fixed stake unit")
	ErrDuplicateIndex      = errors.New("market index already in use")
	ErrAlreadyParticipated = errors.New("bettor already holds a stake in this market")
	ErrMarketNotActive     = errors.New("market is not active")
	ErrMarketExpired       = errors.New("market deadline has passed")
	ErrMarketNotExpired    = errors.New("market deadline has not passed yet")
	ErrAlreadyResolved     = errors.New("market already resolved")
	ErrAlreadyCancelled    = errors.New("market already cancelled")
	ErrMarketNotResolved   = errors.New("market is not resolved")
	ErrMarketNotCancelled  = errors.New("market is not cancelled")
	ErrVoidOutcome         = errors.New("declared outcome has no backers")
	ErrNotAWinner          = errors.New("participant did not back the winning side")
	ErrAlreadyClaimed      = errors.New("winnings already claimed")
	ErrCannotCancel        = errors.New("market has committed participants")
	ErrUnauthorized        = errors.New("unauthorized")
)

// Infrastructure and lookup errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidSeed = errors.New("invalid derivation seed")
)

// Validation reports whether err belongs to the validation taxonomy, i.e.
// resubmitting the identical operation can never succeed.
func Validation(err error) bool {
	for _, v := range validationErrs {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

var validationErrs = []error{
	ErrQuestionTooLong,
	ErrInvalidDeadline,
	ErrInvalidStake,
	ErrStakeMismatch,
	ErrDuplicateIndex,
	ErrAlreadyParticipated,
	ErrMarketNotActive,
	ErrMarketExpired,
	ErrMarketNotExpired,
	ErrAlreadyResolved,
	ErrAlreadyCancelled,
	ErrMarketNotResolved,
	ErrMarketNotCancelled,
	ErrVoidOutcome,
	ErrNotAWinner,
	ErrAlreadyClaimed,
	ErrCannotCancel,
	ErrUnauthorized,
	ErrInvalidSeed,
}

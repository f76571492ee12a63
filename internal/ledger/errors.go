package ledger

import (
	"errors"
	"fmt"

	"github.com/owenbrady/predictduel/internal/domain"
)

// Code classifies a ledger failure. The executor branches on it exhaustively
// instead of inspecting message strings.
type Code int

const (
	CodeUnknown Code = iota

	// CodeAlreadyProcessed: the submission duplicates one that already took
	// effect. Treated as success by the executor.
	CodeAlreadyProcessed

	// CodeStaleSeal: the freshness token expired before the submission was
	// sequenced. Transient; refresh and retry.
	CodeStaleSeal

	// CodeUnavailable: the endpoint could not be reached or timed out.
	// Transient.
	CodeUnavailable

	// CodeAccountNotFound: the requested account has no data.
	CodeAccountNotFound

	// CodeRejected: the settlement program refused the operation. Err wraps
	// the precise domain validation error. Never retried.
	CodeRejected
)

// Error is the tagged error produced at the ledger-call boundary.
type Error struct {
	Code Code
	Msg  string
	Err  error // wrapped domain error for CodeRejected, transport error otherwise
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger: %s: %v", e.Msg, e.Err)
	}
	return "ledger: " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Rejected wraps a domain validation error in a CodeRejected ledger error.
func Rejected(err error) *Error {
	return &Error{Code: CodeRejected, Msg: "operation rejected", Err: err}
}

// Unavailable wraps a transport failure.
func Unavailable(msg string, err error) *Error {
	return &Error{Code: CodeUnavailable, Msg: msg, Err: err}
}

// AlreadyProcessed reports whether err is the already-processed signal.
func AlreadyProcessed(err error) bool {
	var le *Error
	return errors.As(err, &le) && le.Code == CodeAlreadyProcessed
}

// Transient reports whether err is worth retrying with backoff: endpoint
// unreachable or a stale freshness token. Program rejections and unknown
// failures are not transient.
func Transient(err error) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == CodeUnavailable || le.Code == CodeStaleSeal
	}
	return false
}

// NotFound reports whether err means the account does not exist. Both the
// tagged code and the bare domain sentinel are accepted so callers can probe
// through either a Client or a store.
func NotFound(err error) bool {
	var le *Error
	if errors.As(err, &le) && le.Code == CodeAccountNotFound {
		return true
	}
	return errors.Is(err, domain.ErrNotFound)
}

// Wire error codes for the RPC transport. Program rejections are carried as
// programErrBase + offset, mirroring the on-ledger program's error table.
const (
	wireAlreadyProcessed = 1001
	wireStaleSeal        = 1002
	wireAccountNotFound  = 1003

	programErrBase = 6000
)

// programErrs maps on-ledger program error offsets to domain errors. Order
// is part of the wire contract.
var programErrs = []error{
	domain.ErrQuestionTooLong,     // 6000
	domain.ErrInvalidStake,        // 6001
	domain.ErrInvalidDeadline,     // 6002
	domain.ErrMarketNotActive,     // 6003
	domain.ErrMarketExpired,       // 6004
	domain.ErrUnauthorized,        // 6005
	domain.ErrMarketNotExpired,    // 6006
	domain.ErrMarketNotResolved,   // 6007
	domain.ErrAlreadyClaimed,      // 6008
	domain.ErrVoidOutcome,         // 6009
	domain.ErrNotAWinner,          // 6010
	domain.ErrCannotCancel,        // 6011
	domain.ErrMarketNotCancelled,  // 6012
	domain.ErrDuplicateIndex,      // 6013
	domain.ErrAlreadyParticipated, // 6014
	domain.ErrAlreadyResolved,     // 6015
	domain.ErrAlreadyCancelled,    // 6016
	domain.ErrStakeMismatch,       // 6017
	domain.ErrInvalidSeed,         // 6018
}

// errFromWire converts an RPC error code/message pair into a tagged Error.
func errFromWire(code int, msg string) *Error {
	switch code {
	case wireAlreadyProcessed:
		return &Error{Code: CodeAlreadyProcessed, Msg: msg}
	case wireStaleSeal:
		return &Error{Code: CodeStaleSeal, Msg: msg}
	case wireAccountNotFound:
		return &Error{Code: CodeAccountNotFound, Msg: msg, Err: domain.ErrNotFound}
	}
	if off := code - programErrBase; off >= 0 && off < len(programErrs) {
		return &Error{Code: CodeRejected, Msg: msg, Err: programErrs[off]}
	}
	return &Error{Code: CodeUnknown, Msg: fmt.Sprintf("code %d: %s", code, msg)}
}

// errToWire is the inverse mapping, used by the in-memory ledger when it is
// served over RPC and by tests that fake a node.
func errToWire(err error) (int, string) {
	var le *Error
	if errors.As(err, &le) {
		switch le.Code {
		case CodeAlreadyProcessed:
			return wireAlreadyProcessed, le.Msg
		case CodeStaleSeal:
			return wireStaleSeal, le.Msg
		case CodeAccountNotFound:
			return wireAccountNotFound, le.Msg
		}
		err = le.Err
	}
	for i, perr := range programErrs {
		if errors.Is(err, perr) {
			return programErrBase + i, perr.Error()
		}
	}
	if errors.Is(err, domain.ErrNotFound) {
		return wireAccountNotFound, "account not found"
	}
	return -32000, err.Error()
}

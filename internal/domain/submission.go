package domain

// SubmissionResult describes the outcome of one logical ledger operation
// after the executor has finished with it. Success means the operation took
// effect exactly once on the ledger, whether on this attempt or an earlier
// one.
type SubmissionResult struct {
	// ID is the ledger's submission id for the operation. Empty when the
	// effect was confirmed through the already-processed path and the
	// original id could not be recovered.
	ID string `json:"id,omitempty"`

	// IDKnown is false only in the confirmed-but-unknown-id case above.
	// Callers that need the id must re-derive it from ledger state.
	IDKnown bool `json:"id_known"`

	// Duplicate is true when the ledger reported the operation as already
	// processed, i.e. an earlier attempt had the economic effect.
	Duplicate bool `json:"duplicate"`

	// Attempts is how many submissions the executor made, including the
	// one that succeeded.
	Attempts int `json:"attempts"`
}

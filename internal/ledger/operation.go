package ledger

import (
	"bytes"
	"encoding/binary"
	"encoding/json"

	"github.com/owenbrady/predictduel/internal/crypto"
	"github.com/owenbrady/predictduel/internal/domain"
)

// OpKind names one settlement program instruction.
type OpKind string

const (
	OpCreateMarket  OpKind = "create_market"
	OpPlaceStake    OpKind = "place_stake"
	OpResolveMarket OpKind = "resolve_market"
	OpClaimWinnings OpKind = "claim_winnings"
	OpCancelMarket  OpKind = "cancel_market"
	OpRefundStake   OpKind = "refund_stake"
)

// Operation is one logical ledger instruction. IntentID is the client-chosen
// idempotency key: the ledger commits an intent at most once and reports any
// resubmission as already processed.
type Operation struct {
	Kind     OpKind           `json:"kind"`
	IntentID string           `json:"intent_id"`
	Actor    domain.AccountID `json:"actor"`
	Market   domain.Address   `json:"market,omitempty"`

	// Create fields.
	MarketIndex uint64            `json:"market_index,omitempty"`
	Question    string            `json:"question,omitempty"`
	Category    domain.Category   `json:"category,omitempty"`
	MarketType  domain.MarketType `json:"market_type,omitempty"`
	StakeUnit   uint64            `json:"stake_unit,omitempty"`
	Deadline    int64             `json:"deadline,omitempty"`

	// Stake fields.
	Side   domain.Side `json:"side,omitempty"`
	Amount uint64      `json:"amount,omitempty"`

	// Resolve field.
	Outcome domain.Outcome `json:"outcome,omitempty"`

	// Seal is the freshness token obtained from RecentSeal. A submission
	// carrying an expired seal fails with CodeStaleSeal.
	Seal string `json:"seal"`

	// Signature is the actor's recoverable signature over Digest().
	Signature string `json:"signature,omitempty"`
}

// Digest returns the canonical signing digest of the operation: keccak over
// a fixed-layout encoding of the kind and every field that affects the
// economic outcome. Variable-length fields carry a length prefix so content
// cannot move across a field boundary without changing the digest. The seal
// and signature are excluded so a retry with a refreshed seal keeps the same
// authorized content.
func (op Operation) Digest() [32]byte {
	var buf bytes.Buffer
	str := func(s string) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(s)))
		buf.Write(n[:])
		buf.WriteString(s)
	}
	u64 := func(v uint64) {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v)
		buf.Write(b[:])
	}

	str(string(op.Kind))
	str(op.IntentID)
	buf.Write(op.Actor[:])
	buf.Write(op.Market[:])
	u64(op.MarketIndex)
	str(op.Question)
	str(string(op.Category))
	str(string(op.MarketType))
	u64(op.StakeUnit)
	u64(uint64(op.Deadline))
	str(string(op.Side))
	u64(op.Amount)
	str(string(op.Outcome))

	return crypto.Keccak256(buf.Bytes())
}

// Sign attaches the actor's signature to the operation.
func (op *Operation) Sign(s *crypto.Signer) error {
	sig, err := s.SignDigest(op.Digest())
	if err != nil {
		return err
	}
	op.Signature = sig
	return nil
}

// verifySignature recovers the signer and checks it matches the declared
// actor.
func (op Operation) verifySignature() error {
	signer, err := crypto.RecoverSigner(op.Digest(), op.Signature)
	if err != nil {
		return err
	}
	if signer != op.Actor {
		return domain.ErrUnauthorized
	}
	return nil
}

func (op Operation) encode() ([]byte, error) { return json.Marshal(op) }

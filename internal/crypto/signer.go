// Package crypto provides identity key management and operation signing for
// the settlement ledger. An identity is the 20-byte address recovered from a
// secp256k1 public key; the ledger authorizes creator/bettor actions by
// recovering the signer from the operation signature.
package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/owenbrady/predictduel/internal/domain"
)

// Signer signs operation digests with a secp256k1 private key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	identity   domain.AccountID
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key: %w", err)
	}

	addr := ethcrypto.PubkeyToAddress(pk.PublicKey)
	var id domain.AccountID
	copy(id[:], addr.Bytes())

	return &Signer{privateKey: pk, identity: id}, nil
}

// Identity returns the signer's on-ledger identity.
func (s *Signer) Identity() domain.AccountID { return s.identity }

// SignDigest signs a 32-byte digest and returns the hex-encoded 65-byte
// recoverable signature.
func (s *Signer) SignDigest(digest [32]byte) (string, error) {
	sig, err := ethcrypto.Sign(digest[:], s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto: sign digest: %w", err)
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverSigner recovers the identity that produced the given signature over
// the digest. It returns domain.ErrUnauthorized for malformed signatures so
// the ledger can treat a bad signature like any other authorization failure.
func RecoverSigner(digest [32]byte, signature string) (domain.AccountID, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != 65 {
		return domain.ZeroAccount, domain.ErrUnauthorized
	}
	pub, err := ethcrypto.SigToPub(digest[:], sig)
	if err != nil {
		return domain.ZeroAccount, domain.ErrUnauthorized
	}
	addr := ethcrypto.PubkeyToAddress(*pub)
	var id domain.AccountID
	copy(id[:], addr.Bytes())
	return id, nil
}

// Keccak256 hashes the concatenation of the given byte slices. All derived
// addresses and operation digests in the system use this hash.
func Keccak256(parts ...[]byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(parts...))
	return out
}

package base

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing"
	"go.dedis.ch/kyber/v3/sign/bls"
	"golang.org/x/xerrors"
)

var ErrBadProof = xerrors.New("invalid randomness proof")

// Randomness is the proof published with every fulfillment. Signature is a
// BLS signature on Seed under the coordinator key and each word is derived
// from it, unless Override is set.
type Randomness struct {
	RequestID uint64
	Seed      []byte
	Signature []byte
	Words     [][]byte
	Override  bool
}

// DeriveSeed binds a request to its parameters and to the coordinator's
// pre-seed counter.
func DeriveSeed(keyHash common.Hash, sender common.Address, subID uint64,
	preSeed uint64, requestID uint64) []byte {
	return crypto.Keccak256(keyHash.Bytes(), sender.Bytes(), uint64Bytes(subID),
		uint64Bytes(preSeed), uint64Bytes(requestID))
}

// ExpandWords derives n random words from a signature: word i is
// keccak256(sig || i).
func ExpandWords(sig []byte, n int) []*uint256.Int {
	words := make([]*uint256.Int, n)
	for i := range words {
		h := crypto.Keccak256(sig, uint64Bytes(uint64(i)))
		words[i] = new(uint256.Int).SetBytes(h)
	}
	return words
}

func EncodeWords(words []*uint256.Int) [][]byte {
	out := make([][]byte, len(words))
	for i, w := range words {
		b := w.Bytes32()
		out[i] = b[:]
	}
	return out
}

func (r *Randomness) RandomWords() []*uint256.Int {
	words := make([]*uint256.Int, len(r.Words))
	for i, w := range r.Words {
		words[i] = new(uint256.Int).SetBytes(w)
	}
	return words
}

// Verify checks the signature on the seed and, for derived randomness, that
// the words follow from it.
func (r *Randomness) Verify(suite pairing.Suite, public kyber.Point) error {
	if err := bls.Verify(suite, public, r.Seed, r.Signature); err != nil {
		return xerrors.Errorf("signature on seed (%v): %w", err, ErrBadProof)
	}
	if r.Override {
		return nil
	}
	expected := ExpandWords(r.Signature, len(r.Words))
	for i, w := range r.RandomWords() {
		if !w.Eq(expected[i]) {
			return xerrors.Errorf("word %d does not follow from the signature: %w",
				i, ErrBadProof)
		}
	}
	return nil
}

func uint64Bytes(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

package easyrand

import (
	"crypto/cipher"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing"
	"go.dedis.ch/kyber/v3/share"
	"go.dedis.ch/kyber/v3/sign/tbls"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/kyber/v3/xof/blake2xb"
	"golang.org/x/xerrors"
)

var suite = pairing.NewSuiteBn256()

const (
	DefaultNodes     = 4
	DefaultThreshold = 3
)

// Signer holds the key shares of the oracle committee. A signature is the
// threshold recovery of the partial signatures of t members and verifies
// under the collective public key like a plain BLS signature.
type Signer struct {
	shares    []*share.PriShare
	pubPoly   *share.PubPoly
	threshold int
}

// NewSigner deals a fresh key to n members with threshold t. A non-empty
// seed makes the key deterministic.
func NewSigner(n, t int, seed []byte) (*Signer, error) {
	if t < 1 || t > n {
		return nil, xerrors.Errorf("invalid threshold %d for %d nodes", t, n)
	}
	var stream cipher.Stream = random.New()
	if len(seed) > 0 {
		stream = blake2xb.New(seed)
	}
	g2 := suite.G2()
	secret := g2.Scalar().Pick(stream)
	priPoly := share.NewPriPoly(g2, t, secret, stream)
	return &Signer{
		shares:    priPoly.Shares(n),
		pubPoly:   priPoly.Commit(g2.Point().Base()),
		threshold: t,
	}, nil
}

func (s *Signer) Public() kyber.Point {
	return s.pubPoly.Commit()
}

func (s *Signer) Sign(msg []byte) ([]byte, error) {
	var sigs [][]byte
	for _, sk := range s.shares[:s.threshold] {
		sig, err := tbls.Sign(suite, sk, msg)
		if err != nil {
			return nil, xerrors.Errorf("couldn't create signature share: %v", err)
		}
		sigs = append(sigs, sig)
	}
	sig, err := tbls.Recover(suite, s.pubPoly, msg, sigs, s.threshold, len(s.shares))
	if err != nil {
		return nil, xerrors.Errorf("couldn't recover signature: %v", err)
	}
	return sig, nil
}

// UnmarshalPublic decodes a coordinator public key.
func UnmarshalPublic(buf []byte) (kyber.Point, error) {
	p := suite.G2().Point()
	if err := p.UnmarshalBinary(buf); err != nil {
		return nil, xerrors.Errorf("couldn't decode public key: %v", err)
	}
	return p, nil
}

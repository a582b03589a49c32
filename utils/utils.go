package utils

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"
)

const etherDecimals = 18

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(etherDecimals), nil)

// PointToAddress derives an account address from a public key: the last 20
// bytes of the keccak256 hash of its marshalled form.
func PointToAddress(p kyber.Point) (common.Address, error) {
	buf, err := p.MarshalBinary()
	if err != nil {
		return common.Address{}, xerrors.Errorf("couldn't marshal point: %v", err)
	}
	return common.BytesToAddress(crypto.Keccak256(buf)[12:]), nil
}

// ParseEther converts a decimal ether amount such as "0.01" to wei.
func ParseEther(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if len(frac) > etherDecimals {
		return nil, xerrors.Errorf("too many decimals in %q", s)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", etherDecimals-len(frac))
	for _, c := range digits {
		if c < '0' || c > '9' {
			return nil, xerrors.Errorf("invalid ether amount %q", s)
		}
	}
	wei, err := uint256.FromDecimal(strings.TrimLeft(digits, "0"))
	if err != nil {
		if strings.TrimLeft(digits, "0") == "" {
			return new(uint256.Int), nil
		}
		return nil, xerrors.Errorf("invalid ether amount %q: %v", s, err)
	}
	return wei, nil
}

// FormatEther renders a wei amount in ether without trailing zeros.
func FormatEther(wei *uint256.Int) string {
	q, r := new(big.Int).QuoRem(wei.ToBig(), weiPerEther, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := r.String()
	frac = strings.Repeat("0", etherDecimals-len(frac)) + frac
	return q.String() + "." + strings.TrimRight(frac, "0")
}

package utils

import (
	"bufio"
	"os"
	"strings"

	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/encoding"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/app"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ReadPrivateKey reads a hex-encoded ed25519 scalar from the first line of
// fname.
func ReadPrivateKey(fname string) (kyber.Scalar, error) {
	fh, err := os.Open(fname)
	if err != nil {
		log.Errorf("ReadPrivateKey error: %v", err)
		return nil, err
	}
	defer fh.Close()

	fs := bufio.NewScanner(fh)
	if !fs.Scan() {
		return nil, xerrors.Errorf("empty key file %s", fname)
	}
	sk, err := encoding.StringHexToScalar(cothority.Suite, strings.TrimSpace(fs.Text()))
	if err != nil {
		log.Errorf("ReadPrivateKey error: %v", err)
		return nil, err
	}
	return sk, nil
}

func ReadRoster(path string) (*onet.Roster, error) {
	file, err := os.Open(path)
	if err != nil {
		log.Errorf("ReadRoster error: %v", err)
		return nil, err
	}
	defer file.Close()

	group, err := app.ReadGroupDescToml(file)
	if err != nil {
		log.Errorf("ReadRoster error: %v", err)
		return nil, err
	}
	if group.Roster == nil || len(group.Roster.List) == 0 {
		return nil, xerrors.Errorf("empty roster in %s", path)
	}
	return group.Roster, nil
}

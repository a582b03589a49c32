package lottery

import "golang.org/x/xerrors"

var (
	ErrInsufficientPayment = xerrors.New("payment does not match the entrance fee")
	ErrNotOpen             = xerrors.New("lottery is not open")
	ErrUpkeepNotNeeded     = xerrors.New("upkeep not needed")
	ErrUnauthorized        = xerrors.New("only the coordinator can fulfill")
	ErrRequestMismatch     = xerrors.New("request id does not match the outstanding request")
	ErrTransferFailed      = xerrors.New("transfer to winner failed")
	ErrNoRandomWords       = xerrors.New("no random words")
)

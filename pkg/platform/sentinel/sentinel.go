package sentinel

import "errors"

// Sentinel errors for storage facts. Ledger stores return these (optionally
// wrapped) and services translate them into coded domain errors:
//   - ErrNotFound: participant, asset, transfer or cursor does not exist
//   - ErrAlreadyUsed: unique key (participant address) already taken
//   - ErrInvalidState: row is not in the state the mutation expects
//   - ErrInsufficient: a debit would drive a balance negative
//   - ErrUnavailable: backing store temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrInsufficient = errors.New("insufficient")
	ErrUnavailable  = errors.New("unavailable")
)

package models

import (
	"strings"
	"time"

	"supplyledger/pkg/domain"
	dErrors "supplyledger/pkg/domain-errors"
)

// Asset is a named, fixed-supply fungible unit.
//
// Invariants:
//   - TotalSupply > 0 and never changes after creation
//   - The sum of all holder balances equals TotalSupply
//   - ParentID, when set, references an asset created earlier, so the
//     provenance graph is a forest
type Asset struct {
	ID          domain.AssetID `json:"id"`
	Creator     domain.Address `json:"creator"`
	Name        string         `json:"name"`
	TotalSupply int64          `json:"total_supply"`
	// Features is opaque structured text supplied by the creator.
	Features  string         `json:"features"`
	ParentID  domain.AssetID `json:"parent_id"`
	CreatedAt time.Time      `json:"created_at"`
}

func (a *Asset) HasParent() bool {
	return !a.ParentID.IsZero()
}

// CreateRequest carries the caller-supplied fields of a new asset.
type CreateRequest struct {
	Name        string         `json:"name"`
	TotalSupply int64          `json:"total_supply"`
	Features    string         `json:"features"`
	ParentID    domain.AssetID `json:"parent_id"`
}

// MaxNameLength bounds display names.
const MaxNameLength = 128

// Normalize trims user input.
func (r *CreateRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

// Validate checks request-local rules. Supply is checked separately so the
// caller gets the dedicated invalid_supply code.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > MaxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name must be 128 characters or less")
	}
	return nil
}

// Holding is one (holder, amount) pair of an asset's balance table.
type Holding struct {
	Holder domain.Address `json:"holder"`
	Amount int64          `json:"amount"`
}

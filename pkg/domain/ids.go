// Package domain holds the identifier types shared by every ledger module.
package domain

import (
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "supplyledger/pkg/domain-errors"
)

// Address identifies a participant. The canonical form is lowercase
// "0x" + 40 hex digits, so two spellings of the same account compare equal.
type Address string

const addressHexLen = 40

// ParseAddress validates and canonicalizes a participant address.
// Mixed-case input must carry a valid EIP-55 checksum; single-case input is
// accepted as-is.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address is required")
	}
	body, ok := strings.CutPrefix(s, "0x")
	if !ok {
		body, ok = strings.CutPrefix(s, "0X")
	}
	if !ok || len(body) != addressHexLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must be 0x followed by 40 hex digits")
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address contains non-hex characters")
	}
	lower := strings.ToLower(body)
	if body != lower && body != strings.ToUpper(body) {
		if checksum(lower) != body {
			return "", dErrors.New(dErrors.CodeInvalidInput, "address checksum mismatch")
		}
	}
	return Address("0x" + lower), nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Checksummed returns the EIP-55 mixed-case spelling.
func (a Address) Checksummed() string {
	if a.IsZero() {
		return ""
	}
	return "0x" + checksum(strings.TrimPrefix(string(a), "0x"))
}

func (a Address) String() string { return string(a) }

func (a Address) IsZero() bool { return a == "" }

// UnmarshalText canonicalizes addresses decoded from JSON. An empty string
// decodes to the zero Address.
func (a *Address) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*a = ""
		return nil
	}
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// checksum applies EIP-55 casing to a lowercase 40-digit hex body.
func checksum(lower string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}

// ParticipantID is the registration sequence number of a participant.
type ParticipantID uint64

// AssetID identifies an asset. Zero means "no asset" and is only meaningful
// as an absent parent link.
type AssetID uint64

// TransferID identifies a transfer proposal.
type TransferID uint64

func (id AssetID) IsZero() bool      { return id == 0 }
func (id AssetID) String() string    { return strconv.FormatUint(uint64(id), 10) }
func (id TransferID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseAssetID parses a positive decimal asset id.
func ParseAssetID(s string) (AssetID, error) {
	n, err := parsePositive(s, "asset id")
	return AssetID(n), err
}

// ParseTransferID parses a positive decimal transfer id.
func ParseTransferID(s string) (TransferID, error) {
	n, err := parsePositive(s, "transfer id")
	return TransferID(n), err
}

func parsePositive(s, what string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, what+" must be a positive integer")
	}
	return n, nil
}

package canon

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidExternalRef is returned when an opaque external reference does
// not parse as a lowercase-hex identifier of the expected shape.
var ErrInvalidExternalRef = errors.New("canon: invalid external reference")

// ExternalRefKey is the metadata key an entry uses to carry an opaque
// cross-chain bridge or escrow identifier. Such systems reference an entry
// by this identifier without the ledger ever interpreting what it points to.
const ExternalRefKey = "external_ref"

// ValidateExternalRef checks that ref is a well-formed 20-byte hex address
// of the kind cross-chain bridge and escrow systems use as an opaque
// identifier, using go-ethereum's hexutil-style address validation rather
// than hand-rolling hex parsing. The ledger never interprets what the
// address refers to; it only checks the identifier's shape before storing
// it as metadata.
func ValidateExternalRef(ref string) error {
	if !common.IsHexAddress(ref) {
		return fmt.Errorf("%w: %q is not a 20-byte hex address", ErrInvalidExternalRef, ref)
	}
	return nil
}

// NormalizeExternalRef returns ref in EIP-55 checksummed form, the
// canonical textual representation go-ethereum's common.Address produces.
func NormalizeExternalRef(ref string) (string, error) {
	if err := ValidateExternalRef(ref); err != nil {
		return "", err
	}
	return common.HexToAddress(ref).Hex(), nil
}

package registry

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// NativeAssetID is the reserved identifier for the chain's native coin. The
// conventional 0xEE…EE sentinel keeps the zero address free to mean "unowned"
// elsewhere in the ledger.
var NativeAssetID = [20]byte{
	0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee,
	0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee,
}

const (
	// NativeSymbol is the fixed symbol recorded for the native coin.
	NativeSymbol = "native"
	// NativeDecimals is the precision of the native coin.
	NativeDecimals = 18

	maxSymbolLength = 16
)

// Asset is a registry record for an accepted collateral asset. Exists is the
// explicit is-known flag: a record with Exists false has never been
// registered (or was erased), regardless of its other fields, so a
// legitimately-zero mint factor never masks a live record.
type Asset struct {
	ID            [20]byte
	Symbol        string
	Decimals      uint8
	Valid         bool
	Exists        bool
	OpenPositions uint64
	MintFactor    *uint256.Int
}

// Clone returns a deep copy so callers can mutate the copy without touching
// the stored record.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	clone := *a
	if a.MintFactor != nil {
		clone.MintFactor = a.MintFactor.Clone()
	} else {
		clone.MintFactor = new(uint256.Int)
	}
	return &clone
}

// SanitizeAsset validates a record and returns a cloned instance with a
// trimmed symbol and non-nil mint factor. The original is not mutated.
func SanitizeAsset(a *Asset) (*Asset, error) {
	if a == nil {
		return nil, fmt.Errorf("registry: nil asset")
	}
	clone := a.Clone()
	clone.Symbol = strings.TrimSpace(clone.Symbol)
	if clone.Symbol == "" {
		return nil, fmt.Errorf("registry: empty asset symbol")
	}
	if len(clone.Symbol) > maxSymbolLength {
		clone.Symbol = clone.Symbol[:maxSymbolLength]
	}
	return clone, nil
}

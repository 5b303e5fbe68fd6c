package ledger

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Status is the lifecycle state of a yield position. The zero value is never
// persisted: a freshly derived identifier with a default record simply means
// the position has not been created yet.
type Status uint8

const (
	StatusUnknown Status = iota
	// StatusActive: funded, owned, accruing.
	StatusActive
	// StatusOpenMarket: collateral custodied, unowned, acquirable by any
	// caller.
	StatusOpenMarket
	// StatusClaimed: matured and fully settled. Terminal.
	StatusClaimed
	// StatusDestroyed: retired by the ledger owner while on the open
	// market. Terminal.
	StatusDestroyed
)

// Valid reports whether the status is a persistable lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusOpenMarket, StatusClaimed, StatusDestroyed:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusOpenMarket:
		return "open_market"
	case StatusClaimed:
		return "claimed"
	case StatusDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Position is a single yield contract. Collateral and tenure are immutable
// after creation; StartTime is restamped at each early redemption so the
// vesting window of the remaining reward restarts from the exit point. A zero
// Owner means the position sits on the open market.
type Position struct {
	ID              [32]byte
	Owner           [20]byte
	AssetID         [20]byte
	Collateral      *uint256.Int
	StartTime       uint64
	EndTime         uint64
	TenureDays      uint32
	InterestRate    uint64
	RewardRemaining *uint256.Int
	Status          Status
}

// Clone returns a deep copy so callers can mutate the copy without touching
// the stored record.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Collateral != nil {
		clone.Collateral = p.Collateral.Clone()
	} else {
		clone.Collateral = new(uint256.Int)
	}
	if p.RewardRemaining != nil {
		clone.RewardRemaining = p.RewardRemaining.Clone()
	} else {
		clone.RewardRemaining = new(uint256.Int)
	}
	return &clone
}

// SanitizePosition validates a record and returns a cloned instance with
// non-nil amounts. The original is not mutated.
func SanitizePosition(p *Position) (*Position, error) {
	if p == nil {
		return nil, fmt.Errorf("ledger: nil position")
	}
	clone := p.Clone()
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("ledger: invalid position status: %d", clone.Status)
	}
	if clone.Collateral.IsZero() {
		return nil, fmt.Errorf("ledger: position collateral must be positive")
	}
	if clone.EndTime < clone.StartTime {
		return nil, fmt.Errorf("ledger: position window ends before it starts")
	}
	empty := clone.Owner == [20]byte{}
	switch clone.Status {
	case StatusOpenMarket, StatusDestroyed:
		if !empty {
			return nil, fmt.Errorf("ledger: unowned status %s with owner set", clone.Status)
		}
	default:
		if empty {
			return nil, fmt.Errorf("ledger: owned status %s without owner", clone.Status)
		}
	}
	return clone, nil
}

package events

import "github.com/holiman/uint256"

const (
	// TypePositionCreated is emitted when collateral is locked into a new
	// yield position.
	TypePositionCreated = "ledger.position.created"
	// TypePositionEarlyRedeemed is emitted when an owner exits before
	// maturity and the position moves to the open market.
	TypePositionEarlyRedeemed = "ledger.position.early_redeemed"
	// TypePositionAcquired is emitted when an open-market position is
	// bought and returns to active ownership.
	TypePositionAcquired = "ledger.position.acquired"
	// TypePositionClaimed is emitted when a matured position settles.
	TypePositionClaimed = "ledger.position.claimed"
	// TypePositionDestroyed is emitted when the ledger owner retires an
	// open-market position and returns its reward to the mint budget.
	TypePositionDestroyed = "ledger.position.destroyed"
	// TypeParameterUpdated is emitted when a governance parameter changes.
	TypeParameterUpdated = "ledger.parameter.updated"
	// TypeOwnershipTransferred is emitted when the privileged principal
	// changes.
	TypeOwnershipTransferred = "ledger.ownership.transferred"
)

// PositionCreated captures the terms a new position was opened with.
type PositionCreated struct {
	ID           [32]byte
	Owner        [20]byte
	AssetID      [20]byte
	Collateral   *uint256.Int
	TenureDays   uint32
	InterestRate uint64
	Reward       *uint256.Int
	Fee          *uint256.Int
	EndTime      uint64
}

func (PositionCreated) EventType() string { return TypePositionCreated }

// PositionEarlyRedeemed records an early exit and its settlement amounts.
type PositionEarlyRedeemed struct {
	ID      [32]byte
	Owner   [20]byte
	Accrued *uint256.Int
	Payout  *uint256.Int
	Penalty *uint256.Int
}

func (PositionEarlyRedeemed) EventType() string { return TypePositionEarlyRedeemed }

// PositionAcquired records an open-market purchase.
type PositionAcquired struct {
	ID    [32]byte
	Owner [20]byte
}

func (PositionAcquired) EventType() string { return TypePositionAcquired }

// PositionClaimed records a matured settlement.
type PositionClaimed struct {
	ID     [32]byte
	Owner  [20]byte
	Reward *uint256.Int
}

func (PositionClaimed) EventType() string { return TypePositionClaimed }

// PositionDestroyed records an owner-forced removal and the reward returned to
// the mint budget.
type PositionDestroyed struct {
	ID             [32]byte
	ReturnedReward *uint256.Int
}

func (PositionDestroyed) EventType() string { return TypePositionDestroyed }

// ParameterUpdated records a governance parameter write.
type ParameterUpdated struct {
	Name  string
	Value string
}

func (ParameterUpdated) EventType() string { return TypeParameterUpdated }

// OwnershipTransferred records a change of the privileged principal.
type OwnershipTransferred struct {
	Previous [20]byte
	Next     [20]byte
}

func (OwnershipTransferred) EventType() string { return TypeOwnershipTransferred }

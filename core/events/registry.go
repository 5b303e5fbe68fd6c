package events

import "github.com/holiman/uint256"

const (
	// TypeAssetRegistered is emitted when a collateral asset is accepted
	// into the registry.
	TypeAssetRegistered = "registry.asset.registered"
	// TypeAssetRemoved is emitted when a registry record is erased.
	TypeAssetRemoved = "registry.asset.removed"
	// TypeAssetValidityChanged is emitted when an asset is delisted or
	// relisted for new positions.
	TypeAssetValidityChanged = "registry.asset.validity"
	// TypeAssetMintFactorUpdated is emitted when an asset's USD mint factor
	// is refreshed.
	TypeAssetMintFactorUpdated = "registry.asset.mintfactor"
)

// AssetRegistered captures the metadata of a newly accepted collateral asset.
type AssetRegistered struct {
	ID         [20]byte
	Symbol     string
	Decimals   uint8
	MintFactor *uint256.Int
}

func (AssetRegistered) EventType() string { return TypeAssetRegistered }

// AssetRemoved records the erasure of a registry record.
type AssetRemoved struct {
	ID     [20]byte
	Symbol string
}

func (AssetRemoved) EventType() string { return TypeAssetRemoved }

// AssetValidityChanged records a delist/relist toggle.
type AssetValidityChanged struct {
	ID    [20]byte
	Valid bool
}

func (AssetValidityChanged) EventType() string { return TypeAssetValidityChanged }

// AssetMintFactorUpdated records a mint-factor refresh.
type AssetMintFactorUpdated struct {
	ID         [20]byte
	MintFactor *uint256.Int
}

func (AssetMintFactorUpdated) EventType() string { return TypeAssetMintFactorUpdated }

package registry

import "errors"

var (
	ErrNilState         = errors.New("registry: state not configured")
	ErrAssetNotFound    = errors.New("registry: asset not found")
	ErrAssetExists      = errors.New("registry: asset already registered")
	ErrAssetInUse       = errors.New("registry: asset has open positions")
	ErrRewardAsset      = errors.New("registry: reward asset cannot be removed")
	ErrNotContract      = errors.New("registry: identifier is not a contract-bearing address")
	ErrLengthMismatch   = errors.New("registry: mismatched batch lengths")
	ErrDuplicateAsset   = errors.New("registry: duplicate asset in batch")
	ErrInvalidRange     = errors.New("registry: invalid list range")
	ErrRedundantToggle  = errors.New("registry: validity already set")
	ErrListInconsistent = errors.New("registry: asset list out of sync with records")
)

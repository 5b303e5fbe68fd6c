package ledger

import "errors"

var (
	ErrNilState         = errors.New("ledger: state not configured")
	ErrNilTransfer      = errors.New("ledger: asset transfer capability not configured")
	ErrNoRewardAsset    = errors.New("ledger: reward asset not configured")
	ErrPositionNotFound = errors.New("ledger: position not found")
	ErrPositionExists   = errors.New("ledger: position identifier already in use")
	ErrInvalidStatus    = errors.New("ledger: operation not allowed in current status")
	ErrNotOwner         = errors.New("ledger: caller does not own the position")
	ErrZeroAmount       = errors.New("ledger: amount must be positive")
	ErrValueMismatch    = errors.New("ledger: supplied value does not match amount")
	ErrAssetNotOffered  = errors.New("ledger: asset not registered or delisted")
	ErrTenureNotOffered = errors.New("ledger: no interest rate for tenure")
	ErrBudgetExceeded   = errors.New("ledger: total mint budget exceeded")
	ErrMatured          = errors.New("ledger: position already matured")
	ErrNotMatured       = errors.New("ledger: position has not matured")
	ErrZeroPenalty      = errors.New("ledger: zero-penalty early redemption rejected")
	ErrCounterUnderflow = errors.New("ledger: counter underflow")
	ErrInvalidRange     = errors.New("ledger: invalid list range")
)

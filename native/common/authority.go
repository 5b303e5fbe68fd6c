package common

import "errors"

var (
	ErrUnauthorized = errors.New("caller is not the ledger owner")
	ErrNoOwner      = errors.New("ledger owner not configured")
	ErrZeroOwner    = errors.New("owner address must not be zero")
)

// Authority gates mutating entry points to a single privileged principal.
type Authority interface {
	RequireOwner(caller [20]byte) error
}

// OwnerState persists the privileged principal for an Ownable authority.
type OwnerState interface {
	OwnerGet() ([20]byte, bool, error)
	OwnerPut(addr [20]byte) error
}

// Ownable is a state-backed Authority whose principal can hand ownership to a
// successor.
type Ownable struct {
	state OwnerState
}

func NewOwnable(state OwnerState) *Ownable {
	return &Ownable{state: state}
}

// Owner returns the current privileged principal.
func (o *Ownable) Owner() ([20]byte, error) {
	if o == nil || o.state == nil {
		return [20]byte{}, ErrNoOwner
	}
	owner, ok, err := o.state.OwnerGet()
	if err != nil {
		return [20]byte{}, err
	}
	if !ok || owner == ([20]byte{}) {
		return [20]byte{}, ErrNoOwner
	}
	return owner, nil
}

// RequireOwner fails the calling operation when caller is not the owner.
func (o *Ownable) RequireOwner(caller [20]byte) error {
	owner, err := o.Owner()
	if err != nil {
		return err
	}
	if caller != owner {
		return ErrUnauthorized
	}
	return nil
}

// TransferOwnership hands the privileged principal to next. Only the current
// owner may transfer, and the successor must be a non-zero address.
func (o *Ownable) TransferOwnership(caller, next [20]byte) error {
	if err := o.RequireOwner(caller); err != nil {
		return err
	}
	if next == ([20]byte{}) {
		return ErrZeroOwner
	}
	return o.state.OwnerPut(next)
}

// Bootstrap installs the initial owner. It refuses to overwrite an existing
// principal so genesis seeding stays idempotent.
func (o *Ownable) Bootstrap(owner [20]byte) error {
	if o == nil || o.state == nil {
		return ErrNoOwner
	}
	if owner == ([20]byte{}) {
		return ErrZeroOwner
	}
	if existing, ok, err := o.state.OwnerGet(); err != nil {
		return err
	} else if ok && existing != ([20]byte{}) {
		if existing == owner {
			return nil
		}
		return ErrUnauthorized
	}
	return o.state.OwnerPut(owner)
}

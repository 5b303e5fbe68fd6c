package registry

import (
	"fmt"

	"github.com/holiman/uint256"

	"yieldlock/core/events"
	nativecommon "yieldlock/native/common"
)

// State is the persistence surface the registry needs. The ordered id list
// backs range queries; records are keyed by asset identifier.
type State interface {
	AssetPut(asset *Asset) error
	AssetGet(id [20]byte) (*Asset, bool, error)
	AssetDelete(id [20]byte) error
	AssetListGet() ([][20]byte, error)
	AssetListPut(ids [][20]byte) error
}

// Metadata resolves symbol and decimal precision for a non-native asset
// identifier. Implementations must fail for identifiers that do not bear
// contract code; the registry only consults it at registration and
// mint-factor-update time.
type Metadata interface {
	Describe(id [20]byte) (symbol string, decimals uint8, err error)
}

// Registry tracks which collateral assets are accepted, their validity flag,
// open-position refcount and USD mint factor.
type Registry struct {
	state       State
	meta        Metadata
	auth        nativecommon.Authority
	emitter     events.Emitter
	rewardAsset [20]byte

	// strictToggle rejects SetValidity calls that do not change the flag.
	// The lenient default accepts them as idempotent writes.
	strictToggle bool
}

// NewRegistry creates a registry over the supplied state backend, metadata
// resolver and owner authority.
func NewRegistry(state State, meta Metadata, auth nativecommon.Authority) *Registry {
	return &Registry{state: state, meta: meta, auth: auth, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetRewardAsset designates the reward token identifier, which may never be
// removed from the registry.
func (r *Registry) SetRewardAsset(id [20]byte) { r.rewardAsset = id }

// SetStrictValidityToggle switches SetValidity between the lenient
// (idempotent) and strict (reject no-op) variants.
func (r *Registry) SetStrictValidityToggle(strict bool) { r.strictToggle = strict }

func (r *Registry) withState() (State, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	return r.state, nil
}

func (r *Registry) emit(evt events.Event) {
	if r == nil || r.emitter == nil {
		return
	}
	r.emitter.Emit(evt)
}

// describe resolves the recorded symbol and decimals for an identifier. The
// native sentinel is answered locally; anything else must be a
// contract-bearing address per the metadata capability.
func (r *Registry) describe(id [20]byte) (string, uint8, error) {
	if id == NativeAssetID {
		return NativeSymbol, NativeDecimals, nil
	}
	if r.meta == nil {
		return "", 0, ErrNotContract
	}
	symbol, decimals, err := r.meta.Describe(id)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrNotContract, err)
	}
	return symbol, decimals, nil
}

// stageRegister validates a single registration and returns the record to
// persist plus whether the id must be appended to the ordered list. A
// delisted record with no open positions may be re-registered in place.
func (r *Registry) stageRegister(id [20]byte, mintFactor *uint256.Int) (*Asset, bool, error) {
	state, err := r.withState()
	if err != nil {
		return nil, false, err
	}
	existing, found, err := state.AssetGet(id)
	if err != nil {
		return nil, false, err
	}
	if found && existing.Exists {
		if existing.OpenPositions > 0 {
			return nil, false, fmt.Errorf("%w: %s", ErrAssetInUse, existing.Symbol)
		}
		if existing.Valid {
			return nil, false, fmt.Errorf("%w: %s", ErrAssetExists, existing.Symbol)
		}
	}
	symbol, decimals, err := r.describe(id)
	if err != nil {
		return nil, false, err
	}
	factor := new(uint256.Int)
	if mintFactor != nil {
		factor.Set(mintFactor)
	}
	asset := &Asset{
		ID:         id,
		Symbol:     symbol,
		Decimals:   decimals,
		Valid:      true,
		Exists:     true,
		MintFactor: factor,
	}
	return asset, !(found && existing.Exists), nil
}

// Register accepts a collateral asset. The identifier must be the native
// sentinel or a contract-bearing address, and must not already be valid or in
// use.
func (r *Registry) Register(caller, id [20]byte, mintFactor *uint256.Int) error {
	if r.auth != nil {
		if err := r.auth.RequireOwner(caller); err != nil {
			return err
		}
	}
	asset, appendToList, err := r.stageRegister(id, mintFactor)
	if err != nil {
		return err
	}
	sanitized, err := SanitizeAsset(asset)
	if err != nil {
		return err
	}
	if err := r.state.AssetPut(sanitized); err != nil {
		return err
	}
	if appendToList {
		list, err := r.state.AssetListGet()
		if err != nil {
			return err
		}
		if err := r.state.AssetListPut(append(list, id)); err != nil {
			return err
		}
	}
	r.emit(events.AssetRegistered{
		ID:         id,
		Symbol:     sanitized.Symbol,
		Decimals:   sanitized.Decimals,
		MintFactor: sanitized.MintFactor.Clone(),
	})
	return nil
}

// RegisterBatch registers several assets atomically: every element is
// validated, including intra-batch duplicates, before the first write, so a
// failing element leaves no partial registration behind.
func (r *Registry) RegisterBatch(caller [20]byte, ids [][20]byte, mintFactors []*uint256.Int) error {
	if r.auth != nil {
		if err := r.auth.RequireOwner(caller); err != nil {
			return err
		}
	}
	if len(ids) != len(mintFactors) {
		return fmt.Errorf("%w: %d ids, %d mint factors", ErrLengthMismatch, len(ids), len(mintFactors))
	}
	state, err := r.withState()
	if err != nil {
		return err
	}
	staged := make([]*Asset, 0, len(ids))
	appends := make([]bool, 0, len(ids))
	seen := make(map[[20]byte]struct{}, len(ids))
	for i, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w at index %d", ErrDuplicateAsset, i)
		}
		seen[id] = struct{}{}
		asset, appendToList, err := r.stageRegister(id, mintFactors[i])
		if err != nil {
			return fmt.Errorf("batch index %d: %w", i, err)
		}
		sanitized, err := SanitizeAsset(asset)
		if err != nil {
			return fmt.Errorf("batch index %d: %w", i, err)
		}
		staged = append(staged, sanitized)
		appends = append(appends, appendToList)
	}
	list, err := state.AssetListGet()
	if err != nil {
		return err
	}
	for i, asset := range staged {
		if err := state.AssetPut(asset); err != nil {
			return err
		}
		if appends[i] {
			list = append(list, asset.ID)
		}
	}
	if err := state.AssetListPut(list); err != nil {
		return err
	}
	for _, asset := range staged {
		r.emit(events.AssetRegistered{
			ID:         asset.ID,
			Symbol:     asset.Symbol,
			Decimals:   asset.Decimals,
			MintFactor: asset.MintFactor.Clone(),
		})
	}
	return nil
}

// Remove erases a registry record. The reward asset and any asset with open
// positions are protected. The ordered list loses its order for the moved
// element (swap with last, pop).
func (r *Registry) Remove(caller, id [20]byte) error {
	if r.auth != nil {
		if err := r.auth.RequireOwner(caller); err != nil {
			return err
		}
	}
	state, err := r.withState()
	if err != nil {
		return err
	}
	if id == r.rewardAsset {
		return ErrRewardAsset
	}
	asset, found, err := state.AssetGet(id)
	if err != nil {
		return err
	}
	if !found || !asset.Exists {
		return ErrAssetNotFound
	}
	if asset.OpenPositions > 0 {
		return fmt.Errorf("%w: %s has %d", ErrAssetInUse, asset.Symbol, asset.OpenPositions)
	}
	list, err := state.AssetListGet()
	if err != nil {
		return err
	}
	idx := -1
	for i, entry := range list {
		if entry == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrListInconsistent
	}
	list[idx] = list[len(list)-1]
	list = list[:len(list)-1]
	if err := state.AssetListPut(list); err != nil {
		return err
	}
	if err := state.AssetDelete(id); err != nil {
		return err
	}
	r.emit(events.AssetRemoved{ID: id, Symbol: asset.Symbol})
	return nil
}

// SetValidity delists or relists an asset for new positions. Existing
// positions are unaffected. In the strict variant a toggle that does not
// change the flag is rejected.
func (r *Registry) SetValidity(caller, id [20]byte, valid bool) error {
	if r.auth != nil {
		if err := r.auth.RequireOwner(caller); err != nil {
			return err
		}
	}
	state, err := r.withState()
	if err != nil {
		return err
	}
	asset, found, err := state.AssetGet(id)
	if err != nil {
		return err
	}
	if !found || !asset.Exists {
		return ErrAssetNotFound
	}
	if asset.Valid == valid {
		if r.strictToggle {
			return fmt.Errorf("%w: %v", ErrRedundantToggle, valid)
		}
		return nil
	}
	asset.Valid = valid
	if err := state.AssetPut(asset); err != nil {
		return err
	}
	r.emit(events.AssetValidityChanged{ID: id, Valid: valid})
	return nil
}

// UpdateMintFactor refreshes the USD mint factor of a known asset. Rewards
// already computed for open positions are untouched.
func (r *Registry) UpdateMintFactor(caller, id [20]byte, factor *uint256.Int) error {
	if r.auth != nil {
		if err := r.auth.RequireOwner(caller); err != nil {
			return err
		}
	}
	return r.updateMintFactor(id, factor)
}

// UpdateMintFactorBatch applies UpdateMintFactor per element. Every element
// is validated before the first write.
func (r *Registry) UpdateMintFactorBatch(caller [20]byte, ids [][20]byte, factors []*uint256.Int) error {
	if r.auth != nil {
		if err := r.auth.RequireOwner(caller); err != nil {
			return err
		}
	}
	if len(ids) != len(factors) {
		return fmt.Errorf("%w: %d ids, %d mint factors", ErrLengthMismatch, len(ids), len(factors))
	}
	state, err := r.withState()
	if err != nil {
		return err
	}
	staged := make([]*Asset, 0, len(ids))
	for i, id := range ids {
		asset, err := r.stageMintFactor(state, id, factors[i])
		if err != nil {
			return fmt.Errorf("batch index %d: %w", i, err)
		}
		staged = append(staged, asset)
	}
	for _, asset := range staged {
		if err := state.AssetPut(asset); err != nil {
			return err
		}
		r.emit(events.AssetMintFactorUpdated{ID: asset.ID, MintFactor: asset.MintFactor.Clone()})
	}
	return nil
}

func (r *Registry) updateMintFactor(id [20]byte, factor *uint256.Int) error {
	state, err := r.withState()
	if err != nil {
		return err
	}
	asset, err := r.stageMintFactor(state, id, factor)
	if err != nil {
		return err
	}
	if err := state.AssetPut(asset); err != nil {
		return err
	}
	r.emit(events.AssetMintFactorUpdated{ID: id, MintFactor: asset.MintFactor.Clone()})
	return nil
}

func (r *Registry) stageMintFactor(state State, id [20]byte, factor *uint256.Int) (*Asset, error) {
	asset, found, err := state.AssetGet(id)
	if err != nil {
		return nil, err
	}
	if !found || !asset.Exists {
		return nil, ErrAssetNotFound
	}
	if _, _, err := r.describe(id); err != nil {
		return nil, err
	}
	next := new(uint256.Int)
	if factor != nil {
		next.Set(factor)
	}
	asset.MintFactor = next
	return asset, nil
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id [20]byte) (*Asset, error) {
	state, err := r.withState()
	if err != nil {
		return nil, err
	}
	asset, found, err := state.AssetGet(id)
	if err != nil {
		return nil, err
	}
	if !found || !asset.Exists {
		return nil, ErrAssetNotFound
	}
	return asset, nil
}

// Count returns the number of registered assets.
func (r *Registry) Count() (uint64, error) {
	state, err := r.withState()
	if err != nil {
		return 0, err
	}
	list, err := state.AssetListGet()
	if err != nil {
		return 0, err
	}
	return uint64(len(list)), nil
}

// ListRange returns the inclusive id sub-range [start, end]. An end beyond
// the list is clamped to the last element; a start beyond the clamped end is
// rejected.
func (r *Registry) ListRange(start, end uint64) ([][20]byte, error) {
	state, err := r.withState()
	if err != nil {
		return nil, err
	}
	list, err := state.AssetListGet()
	if err != nil {
		return nil, err
	}
	lo, hi, err := clampRange(start, end, uint64(len(list)))
	if err != nil {
		return nil, err
	}
	out := make([][20]byte, hi-lo+1)
	copy(out, list[lo:hi+1])
	return out, nil
}

func clampRange(start, end, length uint64) (uint64, uint64, error) {
	if length == 0 {
		return 0, 0, fmt.Errorf("%w: empty list", ErrInvalidRange)
	}
	if end > length-1 {
		end = length - 1
	}
	if start > end {
		return 0, 0, fmt.Errorf("%w: start %d beyond end %d", ErrInvalidRange, start, end)
	}
	return start, end, nil
}

package ledger

import (
	"encoding/binary"
	"fmt"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"yieldlock/core/events"
	nativecommon "yieldlock/native/common"
	"yieldlock/native/fpmath"
	"yieldlock/native/registry"
)

// State is the persistence surface the position ledger needs. Asset records
// are shared with the registry so open-position refcounts stay consistent.
type State interface {
	PositionPut(p *Position) error
	PositionGet(id [32]byte) (*Position, bool, error)
	PositionListGet() ([][32]byte, error)
	PositionListAppend(id [32]byte) error
	AssetGet(id [20]byte) (*registry.Asset, bool, error)
	AssetPut(asset *registry.Asset) error
	CounterTotalMinted() (*uint256.Int, error)
	CounterTotalMintedPut(v *uint256.Int) error
	SequenceGet() (uint64, error)
	SequencePut(v uint64) error
}

// AssetTransfer abstracts moving the native coin or a registered asset into
// and out of ledger custody. Both directions fail fast with no partial effect
// when balances are insufficient.
type AssetTransfer interface {
	Pull(assetID, from [20]byte, amount *uint256.Int) error
	Push(assetID, to [20]byte, amount *uint256.Int) error
}

// Parameters is the read surface of the governance parameter store consumed
// during transitions.
type Parameters interface {
	ContractFee() (uint64, error)
	EarlyRedeemFeeBounds() (min, max uint64, err error)
	TotalMintBudget() (*uint256.Int, error)
	Interest(tenureDays uint32) (uint64, error)
}

// Engine implements the position lifecycle: create, early-redeem, acquire,
// claim and destroy. Every mutating operation runs behind an exclusive
// execution latch, reads the clock once, and orders its work as checks, then
// value transfers, then state writes. The transfers of one operation execute
// as a single plan whose completed moves are unwound when a later move fails,
// so a failed operation leaves neither record nor balance changes behind.
type Engine struct {
	state    State
	params   Parameters
	transfer AssetTransfer
	auth     nativecommon.Authority
	emitter  events.Emitter
	guard    nativecommon.CallGuard
	nowFn    func() uint64

	rewardAsset [20]byte
	sink        [20]byte

	// rejectZeroPenalty fails an early redemption whose computed penalty is
	// zero instead of letting value exit penalty-free.
	rejectZeroPenalty bool
}

// NewEngine creates a ledger engine with a no-op emitter, a wall-clock time
// source and the strict zero-penalty policy.
func NewEngine(state State, params Parameters, transfer AssetTransfer, auth nativecommon.Authority) *Engine {
	return &Engine{
		state:             state,
		params:            params,
		transfer:          transfer,
		auth:              auth,
		emitter:           events.NoopEmitter{},
		nowFn:             func() uint64 { return uint64(time.Now().Unix()) },
		rejectZeroPenalty: true,
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

// SetRewardAsset designates the reward token. Its registry record supplies
// the decimals and mint factor used to convert USD yield into reward units.
func (e *Engine) SetRewardAsset(id [20]byte) { e.rewardAsset = id }

// SetSink configures the address receiving creation fees, early-redeem
// penalties and the collateral of destroyed positions.
func (e *Engine) SetSink(addr [20]byte) { e.sink = addr }

// SetRejectZeroPenalty toggles the zero-penalty early-redemption policy.
func (e *Engine) SetRejectZeroPenalty(reject bool) { e.rejectZeroPenalty = reject }

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.transfer == nil {
		return ErrNilTransfer
	}
	return nil
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}

// valueMove is one step of an operation's transfer plan: a pull moves amt
// from addr into custody, a push moves amt from custody to addr. Zero-amount
// moves are skipped.
type valueMove struct {
	pull  bool
	asset [20]byte
	addr  [20]byte
	amt   *uint256.Int
}

func (e *Engine) applyMove(m valueMove) error {
	if m.amt == nil || m.amt.IsZero() {
		return nil
	}
	if m.pull {
		return e.transfer.Pull(m.asset, m.addr, m.amt)
	}
	return e.transfer.Push(m.asset, m.addr, m.amt)
}

// applyMoves executes a transfer plan as a unit. When a move fails, the
// completed moves are compensated in reverse order (a pull is pushed back, a
// push is pulled back), so callers observe either every move or none. A
// compensating move only returns value its forward move just placed; a
// failure there means the backing store itself is corrupt.
func (e *Engine) applyMoves(moves []valueMove) error {
	for i, m := range moves {
		err := e.applyMove(m)
		if err == nil {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			undo := moves[j]
			undo.pull = !undo.pull
			if undoErr := e.applyMove(undo); undoErr != nil {
				return fmt.Errorf("%w (compensating move %d: %v)", err, j, undoErr)
			}
		}
		return err
	}
	return nil
}

// rewardAssetRecord loads the reward token's registry record, which must be
// present before any position can be created or settled.
func (e *Engine) rewardAssetRecord() (*registry.Asset, error) {
	if e.rewardAsset == ([20]byte{}) {
		return nil, ErrNoRewardAsset
	}
	asset, found, err := e.state.AssetGet(e.rewardAsset)
	if err != nil {
		return nil, err
	}
	if !found || !asset.Exists {
		return nil, ErrNoRewardAsset
	}
	return asset, nil
}

// deriveID computes the collision-resistant position identifier from the
// creator, asset, creation time and the ledger's monotonic sequence.
func deriveID(creator, assetID [20]byte, createdAt, sequence uint64) [32]byte {
	var ts, seq [8]byte
	binary.BigEndian.PutUint64(ts[:], createdAt)
	binary.BigEndian.PutUint64(seq[:], sequence)
	return ethcrypto.Keccak256Hash(creator[:], assetID[:], ts[:], seq[:])
}

// computeReward converts collateral into reward-asset units:
// USD value of the collateral, times the APY snapshot, times the tenure
// fraction of a year, divided through the reward asset's own USD factor.
func computeReward(amount *uint256.Int, asset, reward *registry.Asset, apy uint64, tenureDays uint32) (*uint256.Int, error) {
	usd, err := fpmath.MulDiv(amount, asset.MintFactor, fpmath.Pow10(asset.Decimals))
	if err != nil {
		return nil, err
	}
	yield, err := fpmath.ScaledPercent(usd, uint256.NewInt(apy))
	if err != nil {
		return nil, err
	}
	prorated, err := fpmath.MulDiv(yield, uint256.NewInt(uint64(tenureDays)), uint256.NewInt(fpmath.DaysPerYear))
	if err != nil {
		return nil, err
	}
	return fpmath.MulDiv(prorated, fpmath.Pow10(reward.Decimals), reward.MintFactor)
}

// Create locks collateral for a fixed tenure and opens an Active position.
// For the native coin the supplied value must equal amount; for a registered
// asset no value may be supplied and the collateral is pulled from the
// caller's custody. The contract fee is charged in the reward asset.
func (e *Engine) Create(caller, assetID [20]byte, amount *uint256.Int, tenureDays uint32, value *uint256.Int) (*Position, error) {
	release, err := e.guard.Begin()
	if err != nil {
		return nil, err
	}
	defer release()
	if err := e.ready(); err != nil {
		return nil, err
	}

	amt := cloneAmount(amount)
	if amt.IsZero() {
		return nil, ErrZeroAmount
	}
	attached := cloneAmount(value)
	if assetID == registry.NativeAssetID {
		if !attached.Eq(amt) {
			return nil, fmt.Errorf("%w: value %s, amount %s", ErrValueMismatch, attached.Dec(), amt.Dec())
		}
	} else if !attached.IsZero() {
		return nil, fmt.Errorf("%w: unexpected native value for asset collateral", ErrValueMismatch)
	}

	asset, found, err := e.state.AssetGet(assetID)
	if err != nil {
		return nil, err
	}
	if !found || !asset.Exists || !asset.Valid {
		return nil, ErrAssetNotOffered
	}
	apy, err := e.params.Interest(tenureDays)
	if err != nil {
		return nil, err
	}
	if apy == 0 {
		return nil, fmt.Errorf("%w: %d days", ErrTenureNotOffered, tenureDays)
	}
	rewardAsset, err := e.rewardAssetRecord()
	if err != nil {
		return nil, err
	}

	reward, err := computeReward(amt, asset, rewardAsset, apy, tenureDays)
	if err != nil {
		return nil, err
	}
	minted, err := e.state.CounterTotalMinted()
	if err != nil {
		return nil, err
	}
	budget, err := e.params.TotalMintBudget()
	if err != nil {
		return nil, err
	}
	nextMinted, overflow := new(uint256.Int).AddOverflow(minted, reward)
	if overflow {
		return nil, fpmath.ErrOverflow
	}
	if nextMinted.Gt(budget) {
		return nil, fmt.Errorf("%w: minted %s, budget %s", ErrBudgetExceeded, nextMinted.Dec(), budget.Dec())
	}
	feeRate, err := e.params.ContractFee()
	if err != nil {
		return nil, err
	}
	fee, err := fpmath.ScaledPercent(reward, uint256.NewInt(feeRate))
	if err != nil {
		return nil, err
	}

	now := e.now()
	sequence, err := e.state.SequenceGet()
	if err != nil {
		return nil, err
	}
	id := deriveID(caller, assetID, now, sequence)
	if _, inUse, err := e.state.PositionGet(id); err != nil {
		return nil, err
	} else if inUse {
		return nil, ErrPositionExists
	}

	if err := e.applyMoves([]valueMove{
		{pull: true, asset: assetID, addr: caller, amt: amt},
		{pull: true, asset: e.rewardAsset, addr: caller, amt: fee},
		{asset: e.rewardAsset, addr: e.sink, amt: fee},
	}); err != nil {
		return nil, err
	}

	pos := &Position{
		ID:              id,
		Owner:           caller,
		AssetID:         assetID,
		Collateral:      amt,
		StartTime:       now,
		EndTime:         now + uint64(tenureDays)*fpmath.SecondsPerDay,
		TenureDays:      tenureDays,
		InterestRate:    apy,
		RewardRemaining: reward.Clone(),
		Status:          StatusActive,
	}
	if err := e.state.SequencePut(sequence + 1); err != nil {
		return nil, err
	}
	if err := e.state.CounterTotalMintedPut(nextMinted); err != nil {
		return nil, err
	}
	asset.OpenPositions++
	if err := e.state.AssetPut(asset); err != nil {
		return nil, err
	}
	if err := e.state.PositionPut(pos); err != nil {
		return nil, err
	}
	if err := e.state.PositionListAppend(id); err != nil {
		return nil, err
	}
	e.emit(events.PositionCreated{
		ID:           id,
		Owner:        caller,
		AssetID:      assetID,
		Collateral:   amt.Clone(),
		TenureDays:   tenureDays,
		InterestRate: apy,
		Reward:       reward.Clone(),
		Fee:          fee.Clone(),
		EndTime:      pos.EndTime,
	})
	return pos.Clone(), nil
}

// EarlyRedeem exits an Active position strictly before maturity. The reward
// vests linearly over the window and the penalty rate interpolates from the
// max fee at entry down to the min fee at maturity. Collateral and the net
// payout return to the owner, the penalty goes to the sink, and the position
// moves to the open market with a restamped start time.
func (e *Engine) EarlyRedeem(caller [20]byte, id [32]byte) error {
	release, err := e.guard.Begin()
	if err != nil {
		return err
	}
	defer release()
	if err := e.ready(); err != nil {
		return err
	}

	pos, found, err := e.state.PositionGet(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrPositionNotFound
	}
	if pos.Status != StatusActive {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, pos.Status)
	}
	if pos.Owner != caller {
		return ErrNotOwner
	}
	now := e.now()
	if now >= pos.EndTime {
		return fmt.Errorf("%w: redeem window closed at %d", ErrMatured, pos.EndTime)
	}
	window := pos.EndTime - pos.StartTime
	var elapsed uint64
	if now > pos.StartTime {
		elapsed = now - pos.StartTime
	}

	accrued, err := fpmath.MulDiv(pos.RewardRemaining, uint256.NewInt(elapsed), uint256.NewInt(window))
	if err != nil {
		return err
	}
	minFee, maxFee, err := e.params.EarlyRedeemFeeBounds()
	if err != nil {
		return err
	}
	discount, err := fpmath.MulDiv(uint256.NewInt(maxFee-minFee), uint256.NewInt(elapsed), uint256.NewInt(window))
	if err != nil {
		return err
	}
	penaltyRate := new(uint256.Int).Sub(uint256.NewInt(maxFee), discount)
	penalty, err := fpmath.ScaledPercent(accrued, penaltyRate)
	if err != nil {
		return err
	}
	if e.rejectZeroPenalty && penalty.IsZero() {
		return ErrZeroPenalty
	}
	payout := new(uint256.Int).Sub(accrued, penalty)

	if err := e.applyMoves([]valueMove{
		{asset: pos.AssetID, addr: pos.Owner, amt: pos.Collateral},
		{asset: e.rewardAsset, addr: pos.Owner, amt: payout},
		{asset: e.rewardAsset, addr: e.sink, amt: penalty},
	}); err != nil {
		return err
	}

	owner := pos.Owner
	pos.StartTime = now
	pos.RewardRemaining = new(uint256.Int).Sub(pos.RewardRemaining, accrued)
	pos.Owner = [20]byte{}
	pos.Status = StatusOpenMarket
	if err := e.state.PositionPut(pos); err != nil {
		return err
	}
	e.emit(events.PositionEarlyRedeemed{
		ID:      id,
		Owner:   owner,
		Accrued: accrued.Clone(),
		Payout:  payout.Clone(),
		Penalty: penalty.Clone(),
	})
	return nil
}

// Acquire buys an open-market position by supplying exactly the recorded
// collateral. The start time is not restamped: the remaining reward keeps
// vesting from the previous redemption point, so an acquire/redeem cycle
// cannot reset the penalty curve.
func (e *Engine) Acquire(caller [20]byte, id [32]byte, value *uint256.Int) error {
	release, err := e.guard.Begin()
	if err != nil {
		return err
	}
	defer release()
	if err := e.ready(); err != nil {
		return err
	}

	pos, found, err := e.state.PositionGet(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrPositionNotFound
	}
	if pos.Status != StatusOpenMarket {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, pos.Status)
	}
	attached := cloneAmount(value)
	if pos.AssetID == registry.NativeAssetID {
		if !attached.Eq(pos.Collateral) {
			return fmt.Errorf("%w: value %s, collateral %s", ErrValueMismatch, attached.Dec(), pos.Collateral.Dec())
		}
	} else if !attached.IsZero() {
		return fmt.Errorf("%w: unexpected native value for asset collateral", ErrValueMismatch)
	}

	if err := e.transfer.Pull(pos.AssetID, caller, pos.Collateral); err != nil {
		return err
	}

	pos.Owner = caller
	pos.Status = StatusActive
	if err := e.state.PositionPut(pos); err != nil {
		return err
	}
	e.emit(events.PositionAcquired{ID: id, Owner: caller})
	return nil
}

// Claim settles a matured Active position: collateral and the full remaining
// reward go to the owner. Maturity is inclusive of the end time.
func (e *Engine) Claim(caller [20]byte, id [32]byte) error {
	release, err := e.guard.Begin()
	if err != nil {
		return err
	}
	defer release()
	if err := e.ready(); err != nil {
		return err
	}

	pos, found, err := e.state.PositionGet(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrPositionNotFound
	}
	if pos.Status != StatusActive {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, pos.Status)
	}
	if pos.Owner != caller {
		return ErrNotOwner
	}
	if e.now() < pos.EndTime {
		return fmt.Errorf("%w: matures at %d", ErrNotMatured, pos.EndTime)
	}

	reward := pos.RewardRemaining.Clone()
	if err := e.applyMoves([]valueMove{
		{asset: pos.AssetID, addr: pos.Owner, amt: pos.Collateral},
		{asset: e.rewardAsset, addr: pos.Owner, amt: reward},
	}); err != nil {
		return err
	}
	if err := e.releaseAssetSlot(pos.AssetID); err != nil {
		return err
	}

	pos.RewardRemaining = new(uint256.Int)
	pos.Status = StatusClaimed
	if err := e.state.PositionPut(pos); err != nil {
		return err
	}
	e.emit(events.PositionClaimed{ID: id, Owner: caller, Reward: reward})
	return nil
}

// Destroy retires an open-market position. Only the ledger owner may force
// the removal; the unvested reward returns to the mint budget and the
// custodied collateral is routed to the sink rather than left stranded.
func (e *Engine) Destroy(caller [20]byte, id [32]byte) error {
	release, err := e.guard.Begin()
	if err != nil {
		return err
	}
	defer release()
	if err := e.ready(); err != nil {
		return err
	}
	if e.auth != nil {
		if err := e.auth.RequireOwner(caller); err != nil {
			return err
		}
	}

	pos, found, err := e.state.PositionGet(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrPositionNotFound
	}
	if pos.Status != StatusOpenMarket {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, pos.Status)
	}

	minted, err := e.state.CounterTotalMinted()
	if err != nil {
		return err
	}
	if minted.Lt(pos.RewardRemaining) {
		return fmt.Errorf("%w: minted %s below remaining %s", ErrCounterUnderflow, minted.Dec(), pos.RewardRemaining.Dec())
	}
	returned := pos.RewardRemaining.Clone()

	if err := e.transfer.Push(pos.AssetID, e.sink, pos.Collateral); err != nil {
		return err
	}

	if err := e.state.CounterTotalMintedPut(new(uint256.Int).Sub(minted, returned)); err != nil {
		return err
	}
	if err := e.releaseAssetSlot(pos.AssetID); err != nil {
		return err
	}
	pos.RewardRemaining = new(uint256.Int)
	pos.Status = StatusDestroyed
	if err := e.state.PositionPut(pos); err != nil {
		return err
	}
	e.emit(events.PositionDestroyed{ID: id, ReturnedReward: returned})
	return nil
}

// releaseAssetSlot decrements the collateral asset's open-position refcount
// when a position reaches a terminal state.
func (e *Engine) releaseAssetSlot(assetID [20]byte) error {
	asset, found, err := e.state.AssetGet(assetID)
	if err != nil {
		return err
	}
	if !found || !asset.Exists {
		// The record outlives its positions by invariant; a missing one
		// means the backing store is corrupt.
		return fmt.Errorf("%w: asset record missing for open position", ErrCounterUnderflow)
	}
	if asset.OpenPositions == 0 {
		return fmt.Errorf("%w: open-position count already zero", ErrCounterUnderflow)
	}
	asset.OpenPositions--
	return e.state.AssetPut(asset)
}

// Get returns a copy of the position record for id.
func (e *Engine) Get(id [32]byte) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pos, found, err := e.state.PositionGet(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrPositionNotFound
	}
	return pos, nil
}

// Count returns the number of positions ever created.
func (e *Engine) Count() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	list, err := e.state.PositionListGet()
	if err != nil {
		return 0, err
	}
	return uint64(len(list)), nil
}

// ListRange returns the inclusive id sub-range [start, end] over the
// append-only list of all positions ever created. An end beyond the list is
// clamped to the last element; a start beyond the clamped end is rejected.
func (e *Engine) ListRange(start, end uint64) ([][32]byte, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	list, err := e.state.PositionListGet()
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: empty list", ErrInvalidRange)
	}
	if end > uint64(len(list))-1 {
		end = uint64(len(list)) - 1
	}
	if start > end {
		return nil, fmt.Errorf("%w: start %d beyond end %d", ErrInvalidRange, start, end)
	}
	out := make([][32]byte, end-start+1)
	copy(out, list[start:end+1])
	return out, nil
}

// TotalMinted returns the running reward liability across all non-terminal
// positions.
func (e *Engine) TotalMinted() (*uint256.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.CounterTotalMinted()
}

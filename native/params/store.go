package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"yieldlock/core/events"
	nativecommon "yieldlock/native/common"
	"yieldlock/native/fpmath"
)

var (
	ErrNilState      = errors.New("params: state not configured")
	ErrRateTooHigh   = errors.New("params: rate exceeds the six-decimal base")
	ErrFeeBounds     = errors.New("params: min early-redeem fee exceeds max")
	ErrBudgetTooLow  = errors.New("params: budget below already-minted total")
	ErrZeroTenure    = errors.New("params: tenure must be at least one day")
	ErrNilBudget     = errors.New("params: nil budget")
	ErrDecodeFailure = errors.New("params: corrupt parameter payload")
)

// State is the persistence surface for governance parameters. The minted
// counter is exposed so the budget setter can enforce its floor.
type State interface {
	ParamPut(name string, value []byte) error
	ParamGet(name string) ([]byte, bool, error)
	CounterTotalMinted() (*uint256.Int, error)
}

// InterestTier pairs an offered tenure with its six-decimal APY rate.
type InterestTier struct {
	TenureDays uint32 `json:"tenureDays"`
	Rate       uint64 `json:"rate"`
}

// Store provides typed, owner-gated accessors for the global ledger
// parameters. Values are marshalled as JSON to align with governance
// proposal payloads.
type Store struct {
	state   State
	auth    nativecommon.Authority
	emitter events.Emitter
}

// NewStore constructs a parameter store over the supplied state backend and
// owner authority.
func NewStore(state State, auth nativecommon.Authority) *Store {
	return &Store{state: state, auth: auth, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (s *Store) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

func (s *Store) withState() (State, error) {
	if s == nil || s.state == nil {
		return nil, ErrNilState
	}
	return s.state, nil
}

func (s *Store) requireOwner(caller [20]byte) error {
	if s == nil || s.auth == nil {
		return nil
	}
	return s.auth.RequireOwner(caller)
}

func (s *Store) emit(name, value string) {
	if s == nil || s.emitter == nil {
		return
	}
	s.emitter.Emit(events.ParameterUpdated{Name: name, Value: value})
}

func (s *Store) putUint(name string, value uint64) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("params: encode %s: %w", name, err)
	}
	return state.ParamPut(name, encoded)
}

func (s *Store) getUint(name string) (uint64, error) {
	state, err := s.withState()
	if err != nil {
		return 0, err
	}
	raw, ok, err := state.ParamGet(name)
	if err != nil {
		return 0, err
	}
	if !ok || len(raw) == 0 {
		return 0, nil
	}
	var value uint64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrDecodeFailure, name)
	}
	return value, nil
}

// SetContractFee sets the creation fee rate charged in the reward asset.
func (s *Store) SetContractFee(caller [20]byte, rate uint64) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if rate > fpmath.RateBase {
		return fmt.Errorf("%w: %d", ErrRateTooHigh, rate)
	}
	if err := s.putUint(KeyContractFeeRate, rate); err != nil {
		return err
	}
	s.emit(KeyContractFeeRate, fmt.Sprintf("%d", rate))
	return nil
}

// ContractFee returns the creation fee rate; zero when unset.
func (s *Store) ContractFee() (uint64, error) {
	return s.getUint(KeyContractFeeRate)
}

// SetEarlyRedeemFeeBounds sets both penalty-rate bounds in one write so the
// min ≤ max invariant can never be violated between two calls.
func (s *Store) SetEarlyRedeemFeeBounds(caller [20]byte, min, max uint64) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if max > fpmath.RateBase {
		return fmt.Errorf("%w: %d", ErrRateTooHigh, max)
	}
	if min > max {
		return fmt.Errorf("%w: min %d, max %d", ErrFeeBounds, min, max)
	}
	if err := s.putUint(KeyMinEarlyRedeemFeeRate, min); err != nil {
		return err
	}
	if err := s.putUint(KeyMaxEarlyRedeemFeeRate, max); err != nil {
		return err
	}
	s.emit(KeyMinEarlyRedeemFeeRate, fmt.Sprintf("%d", min))
	s.emit(KeyMaxEarlyRedeemFeeRate, fmt.Sprintf("%d", max))
	return nil
}

// SetMinEarlyRedeemFee sets only the lower penalty bound.
func (s *Store) SetMinEarlyRedeemFee(caller [20]byte, min uint64) error {
	_, max, err := s.EarlyRedeemFeeBounds()
	if err != nil {
		return err
	}
	return s.SetEarlyRedeemFeeBounds(caller, min, max)
}

// SetMaxEarlyRedeemFee sets only the upper penalty bound.
func (s *Store) SetMaxEarlyRedeemFee(caller [20]byte, max uint64) error {
	min, _, err := s.EarlyRedeemFeeBounds()
	if err != nil {
		return err
	}
	return s.SetEarlyRedeemFeeBounds(caller, min, max)
}

// EarlyRedeemFeeBounds returns the penalty-rate interpolation bounds.
func (s *Store) EarlyRedeemFeeBounds() (min, max uint64, err error) {
	if min, err = s.getUint(KeyMinEarlyRedeemFeeRate); err != nil {
		return 0, 0, err
	}
	if max, err = s.getUint(KeyMaxEarlyRedeemFeeRate); err != nil {
		return 0, 0, err
	}
	return min, max, nil
}

// SetTotalMintBudget raises or lowers the global reward liability ceiling.
// The new budget may never undercut what has already been minted.
func (s *Store) SetTotalMintBudget(caller [20]byte, budget *uint256.Int) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if budget == nil {
		return ErrNilBudget
	}
	state, err := s.withState()
	if err != nil {
		return err
	}
	minted, err := state.CounterTotalMinted()
	if err != nil {
		return err
	}
	if budget.Lt(minted) {
		return fmt.Errorf("%w: budget %s, minted %s", ErrBudgetTooLow, budget.Dec(), minted.Dec())
	}
	encoded, err := json.Marshal(budget.Dec())
	if err != nil {
		return fmt.Errorf("params: encode budget: %w", err)
	}
	if err := state.ParamPut(KeyTotalMintBudget, encoded); err != nil {
		return err
	}
	s.emit(KeyTotalMintBudget, budget.Dec())
	return nil
}

// TotalMintBudget returns the mint ceiling; zero when unset.
func (s *Store) TotalMintBudget() (*uint256.Int, error) {
	state, err := s.withState()
	if err != nil {
		return nil, err
	}
	raw, ok, err := state.ParamGet(KeyTotalMintBudget)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return new(uint256.Int), nil
	}
	var decimal string
	if err := json.Unmarshal(raw, &decimal); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecodeFailure, KeyTotalMintBudget)
	}
	budget, err := uint256.FromDecimal(decimal)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecodeFailure, KeyTotalMintBudget)
	}
	return budget, nil
}

// SetInterest sets the APY offered for a tenure. A zero rate withdraws the
// tenure from the offering.
func (s *Store) SetInterest(caller [20]byte, tenureDays uint32, rate uint64) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if tenureDays == 0 {
		return ErrZeroTenure
	}
	if err := s.putUint(interestKey(tenureDays), rate); err != nil {
		return err
	}
	index, err := s.interestIndex()
	if err != nil {
		return err
	}
	idx := -1
	for i, t := range index {
		if t == tenureDays {
			idx = i
			break
		}
	}
	switch {
	case rate == 0 && idx >= 0:
		index = append(index[:idx], index[idx+1:]...)
	case rate != 0 && idx < 0:
		index = append(index, tenureDays)
		sort.Slice(index, func(i, j int) bool { return index[i] < index[j] })
	}
	if err := s.putInterestIndex(index); err != nil {
		return err
	}
	s.emit(interestKey(tenureDays), fmt.Sprintf("%d", rate))
	return nil
}

// Interest returns the APY rate for a tenure; zero means the tenure is not
// offered.
func (s *Store) Interest(tenureDays uint32) (uint64, error) {
	return s.getUint(interestKey(tenureDays))
}

// InterestTable returns every offered tenure with its rate, sorted by tenure.
func (s *Store) InterestTable() ([]InterestTier, error) {
	index, err := s.interestIndex()
	if err != nil {
		return nil, err
	}
	table := make([]InterestTier, 0, len(index))
	for _, tenure := range index {
		rate, err := s.Interest(tenure)
		if err != nil {
			return nil, err
		}
		if rate == 0 {
			continue
		}
		table = append(table, InterestTier{TenureDays: tenure, Rate: rate})
	}
	return table, nil
}

func (s *Store) interestIndex() ([]uint32, error) {
	state, err := s.withState()
	if err != nil {
		return nil, err
	}
	raw, ok, err := state.ParamGet(keyInterestIndex)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return []uint32{}, nil
	}
	var index []uint32
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecodeFailure, keyInterestIndex)
	}
	return index, nil
}

func (s *Store) putInterestIndex(index []uint32) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("params: encode interest index: %w", err)
	}
	return state.ParamPut(keyInterestIndex, encoded)
}

package params

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	nativecommon "yieldlock/native/common"
)

type mockState struct {
	values map[string][]byte
	minted *uint256.Int
}

func newMockState() *mockState {
	return &mockState{values: make(map[string][]byte), minted: new(uint256.Int)}
}

func (m *mockState) ParamPut(name string, value []byte) error {
	m.values[name] = append([]byte(nil), value...)
	return nil
}

func (m *mockState) ParamGet(name string) ([]byte, bool, error) {
	raw, ok := m.values[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

func (m *mockState) CounterTotalMinted() (*uint256.Int, error) {
	return m.minted.Clone(), nil
}

type stubAuth struct {
	owner [20]byte
}

func (a stubAuth) RequireOwner(caller [20]byte) error {
	if caller != a.owner {
		return nativecommon.ErrUnauthorized
	}
	return nil
}

func testAddr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func newTestStore(t *testing.T) (*Store, *mockState, [20]byte) {
	t.Helper()
	state := newMockState()
	owner := testAddr(0x01)
	return NewStore(state, stubAuth{owner: owner}), state, owner
}

func TestContractFee(t *testing.T) {
	store, _, owner := newTestStore(t)

	if rate, err := store.ContractFee(); err != nil || rate != 0 {
		t.Fatalf("expected zero default, got %d (%v)", rate, err)
	}
	if err := store.SetContractFee(testAddr(0x09), 10_000); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := store.SetContractFee(owner, 1_000_001); !errors.Is(err, ErrRateTooHigh) {
		t.Fatalf("expected ErrRateTooHigh, got %v", err)
	}
	if err := store.SetContractFee(owner, 10_000); err != nil {
		t.Fatalf("set: %v", err)
	}
	if rate, err := store.ContractFee(); err != nil || rate != 10_000 {
		t.Fatalf("expected 10000, got %d (%v)", rate, err)
	}
}

func TestEarlyRedeemFeeBounds(t *testing.T) {
	store, _, owner := newTestStore(t)

	if err := store.SetEarlyRedeemFeeBounds(owner, 300_000, 100_000); !errors.Is(err, ErrFeeBounds) {
		t.Fatalf("expected ErrFeeBounds, got %v", err)
	}
	if err := store.SetEarlyRedeemFeeBounds(owner, 0, 1_000_001); !errors.Is(err, ErrRateTooHigh) {
		t.Fatalf("expected ErrRateTooHigh, got %v", err)
	}
	if err := store.SetEarlyRedeemFeeBounds(owner, 100_000, 300_000); err != nil {
		t.Fatalf("set bounds: %v", err)
	}
	min, max, err := store.EarlyRedeemFeeBounds()
	if err != nil || min != 100_000 || max != 300_000 {
		t.Fatalf("expected 100000/300000, got %d/%d (%v)", min, max, err)
	}

	// Single-bound setters revalidate against the stored counterpart.
	if err := store.SetMinEarlyRedeemFee(owner, 400_000); !errors.Is(err, ErrFeeBounds) {
		t.Fatalf("expected ErrFeeBounds raising min past max, got %v", err)
	}
	if err := store.SetMaxEarlyRedeemFee(owner, 500_000); err != nil {
		t.Fatalf("raise max: %v", err)
	}
	min, max, err = store.EarlyRedeemFeeBounds()
	if err != nil || min != 100_000 || max != 500_000 {
		t.Fatalf("expected 100000/500000, got %d/%d (%v)", min, max, err)
	}
}

func TestTotalMintBudget(t *testing.T) {
	store, state, owner := newTestStore(t)

	budget, err := store.TotalMintBudget()
	if err != nil {
		t.Fatalf("default budget: %v", err)
	}
	if !budget.IsZero() {
		t.Fatalf("expected zero default, got %s", budget.Dec())
	}
	if err := store.SetTotalMintBudget(owner, nil); !errors.Is(err, ErrNilBudget) {
		t.Fatalf("expected ErrNilBudget, got %v", err)
	}

	state.minted = uint256.NewInt(5_000)
	if err := store.SetTotalMintBudget(owner, uint256.NewInt(4_999)); !errors.Is(err, ErrBudgetTooLow) {
		t.Fatalf("expected ErrBudgetTooLow, got %v", err)
	}
	want := uint256.MustFromDecimal("340282366920938463463374607431768211456")
	if err := store.SetTotalMintBudget(owner, want); err != nil {
		t.Fatalf("set budget: %v", err)
	}
	budget, err = store.TotalMintBudget()
	if err != nil {
		t.Fatalf("read budget: %v", err)
	}
	if !budget.Eq(want) {
		t.Fatalf("budget did not round-trip: %s", budget.Dec())
	}
}

func TestInterestTable(t *testing.T) {
	store, _, owner := newTestStore(t)

	if err := store.SetInterest(owner, 0, 100_000); !errors.Is(err, ErrZeroTenure) {
		t.Fatalf("expected ErrZeroTenure, got %v", err)
	}
	for _, tier := range []InterestTier{
		{TenureDays: 180, Rate: 700_000},
		{TenureDays: 30, Rate: 200_000},
		{TenureDays: 90, Rate: 500_000},
	} {
		if err := store.SetInterest(owner, tier.TenureDays, tier.Rate); err != nil {
			t.Fatalf("set tier %d: %v", tier.TenureDays, err)
		}
	}

	if rate, err := store.Interest(90); err != nil || rate != 500_000 {
		t.Fatalf("expected 500000 for 90 days, got %d (%v)", rate, err)
	}
	if rate, err := store.Interest(91); err != nil || rate != 0 {
		t.Fatalf("expected zero for unoffered tenure, got %d (%v)", rate, err)
	}

	table, err := store.InterestTable()
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	want := []InterestTier{{30, 200_000}, {90, 500_000}, {180, 700_000}}
	if len(table) != len(want) {
		t.Fatalf("expected %d tiers, got %d", len(want), len(table))
	}
	for i, tier := range want {
		if table[i] != tier {
			t.Fatalf("unexpected tier at %d: %+v", i, table[i])
		}
	}

	// A zero rate withdraws the tenure.
	if err := store.SetInterest(owner, 90, 0); err != nil {
		t.Fatalf("withdraw tier: %v", err)
	}
	table, err = store.InterestTable()
	if err != nil {
		t.Fatalf("table after withdrawal: %v", err)
	}
	if len(table) != 2 || table[0].TenureDays != 30 || table[1].TenureDays != 180 {
		t.Fatalf("unexpected table after withdrawal: %+v", table)
	}
}

func TestDecodeFailure(t *testing.T) {
	store, state, _ := newTestStore(t)
	state.values[KeyContractFeeRate] = []byte("not json")
	if _, err := store.ContractFee(); !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure, got %v", err)
	}
	state.values[KeyTotalMintBudget] = []byte(`"-1"`)
	if _, err := store.TotalMintBudget(); !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure for bad budget, got %v", err)
	}
}

package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientFunds = errors.New("state: insufficient funds")
	ErrZeroTransfer      = errors.New("state: transfer amount must be positive")
	ErrBalanceOverflow   = errors.New("state: balance overflow")
)

// VaultAddress is the custody account holding collateral and the reward
// float while positions are open. Derived, not a key anyone can hold.
var VaultAddress = func() [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256([]byte("yieldlock/custody-vault"))[12:])
	return addr
}()

// BalanceOf returns the balance of addr in the given asset (the native coin
// uses its sentinel identifier like any other asset).
func (m *Manager) BalanceOf(addr, asset [20]byte) (*uint256.Int, error) {
	data, ok, err := m.get(balanceKey(addr, asset))
	if err != nil || !ok {
		return new(uint256.Int), err
	}
	balance := new(uint256.Int)
	if err := rlp.DecodeBytes(data, balance); err != nil {
		return nil, fmt.Errorf("state: decode balance: %w", err)
	}
	return balance, nil
}

func (m *Manager) putBalance(addr, asset [20]byte, balance *uint256.Int) error {
	encoded, err := rlp.EncodeToBytes(balance)
	if err != nil {
		return fmt.Errorf("state: encode balance: %w", err)
	}
	return m.db.Put(balanceKey(addr, asset), encoded)
}

// move debits from and credits to, checking the debit before either write so
// a shortfall leaves no partial effect.
func (m *Manager) move(asset, from, to [20]byte, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroTransfer
	}
	fromBalance, err := m.BalanceOf(from, asset)
	if err != nil {
		return err
	}
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, fromBalance.Dec(), amount.Dec())
	}
	toBalance, err := m.BalanceOf(to, asset)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(toBalance, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	if err := m.putBalance(from, asset, new(uint256.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return m.putBalance(to, asset, next)
}

// Pull implements ledger.AssetTransfer: it moves amount from the caller's
// custody into the vault.
func (m *Manager) Pull(assetID, from [20]byte, amount *uint256.Int) error {
	return m.move(assetID, from, VaultAddress, amount)
}

// Push implements ledger.AssetTransfer: it moves amount from the vault to the
// recipient and signals failure instead of crashing when the vault balance is
// short.
func (m *Manager) Push(assetID, to [20]byte, amount *uint256.Int) error {
	return m.move(assetID, VaultAddress, to, amount)
}

// Mint credits new units of an asset to an account. Used at genesis to seed
// the reward float and test fixtures; never called during transitions.
func (m *Manager) Mint(addr, asset [20]byte, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroTransfer
	}
	balance, err := m.BalanceOf(addr, asset)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(balance, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	return m.putBalance(addr, asset, next)
}

package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"yieldlock/native/ledger"
	"yieldlock/native/registry"
	"yieldlock/storage"
)

// Manager is the persistent state backend for the registry, ledger and
// parameter store. Records are RLP encoded under keccak-derived keys in a
// flat key-value database.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager over the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// --- registry.State ---

func (m *Manager) AssetPut(asset *registry.Asset) error {
	sanitized, err := registry.SanitizeAsset(asset)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(sanitized)
	if err != nil {
		return fmt.Errorf("state: encode asset: %w", err)
	}
	return m.db.Put(assetKey(sanitized.ID), encoded)
}

func (m *Manager) AssetGet(id [20]byte) (*registry.Asset, bool, error) {
	data, ok, err := m.get(assetKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	asset := new(registry.Asset)
	if err := rlp.DecodeBytes(data, asset); err != nil {
		return nil, false, fmt.Errorf("state: decode asset: %w", err)
	}
	return asset, true, nil
}

func (m *Manager) AssetDelete(id [20]byte) error {
	return m.db.Delete(assetKey(id))
}

func (m *Manager) AssetListGet() ([][20]byte, error) {
	data, ok, err := m.get(assetListKey)
	if err != nil || !ok {
		return [][20]byte{}, err
	}
	var list [][20]byte
	if err := rlp.DecodeBytes(data, &list); err != nil {
		return nil, fmt.Errorf("state: decode asset list: %w", err)
	}
	return list, nil
}

func (m *Manager) AssetListPut(ids [][20]byte) error {
	encoded, err := rlp.EncodeToBytes(ids)
	if err != nil {
		return fmt.Errorf("state: encode asset list: %w", err)
	}
	return m.db.Put(assetListKey, encoded)
}

// --- ledger.State ---

func (m *Manager) PositionPut(p *ledger.Position) error {
	sanitized, err := ledger.SanitizePosition(p)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(sanitized)
	if err != nil {
		return fmt.Errorf("state: encode position: %w", err)
	}
	return m.db.Put(positionKey(sanitized.ID), encoded)
}

func (m *Manager) PositionGet(id [32]byte) (*ledger.Position, bool, error) {
	data, ok, err := m.get(positionKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	pos := new(ledger.Position)
	if err := rlp.DecodeBytes(data, pos); err != nil {
		return nil, false, fmt.Errorf("state: decode position: %w", err)
	}
	return pos, true, nil
}

func (m *Manager) PositionListGet() ([][32]byte, error) {
	data, ok, err := m.get(positionListKey)
	if err != nil || !ok {
		return [][32]byte{}, err
	}
	var list [][32]byte
	if err := rlp.DecodeBytes(data, &list); err != nil {
		return nil, fmt.Errorf("state: decode position list: %w", err)
	}
	return list, nil
}

func (m *Manager) PositionListAppend(id [32]byte) error {
	list, err := m.PositionListGet()
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(append(list, id))
	if err != nil {
		return fmt.Errorf("state: encode position list: %w", err)
	}
	return m.db.Put(positionListKey, encoded)
}

func (m *Manager) CounterTotalMinted() (*uint256.Int, error) {
	data, ok, err := m.get(counterMintedKey)
	if err != nil || !ok {
		return new(uint256.Int), err
	}
	minted := new(uint256.Int)
	if err := rlp.DecodeBytes(data, minted); err != nil {
		return nil, fmt.Errorf("state: decode minted counter: %w", err)
	}
	return minted, nil
}

func (m *Manager) CounterTotalMintedPut(v *uint256.Int) error {
	if v == nil {
		v = new(uint256.Int)
	}
	encoded, err := rlp.EncodeToBytes(v)
	if err != nil {
		return fmt.Errorf("state: encode minted counter: %w", err)
	}
	return m.db.Put(counterMintedKey, encoded)
}

func (m *Manager) SequenceGet() (uint64, error) {
	data, ok, err := m.get(sequenceKey)
	if err != nil || !ok {
		return 0, err
	}
	var seq uint64
	if err := rlp.DecodeBytes(data, &seq); err != nil {
		return 0, fmt.Errorf("state: decode sequence: %w", err)
	}
	return seq, nil
}

func (m *Manager) SequencePut(v uint64) error {
	encoded, err := rlp.EncodeToBytes(v)
	if err != nil {
		return fmt.Errorf("state: encode sequence: %w", err)
	}
	return m.db.Put(sequenceKey, encoded)
}

// --- params.State ---

func (m *Manager) ParamPut(name string, value []byte) error {
	return m.db.Put(paramKey(name), value)
}

func (m *Manager) ParamGet(name string) ([]byte, bool, error) {
	return m.get(paramKey(name))
}

// --- common.OwnerState ---

func (m *Manager) OwnerGet() ([20]byte, bool, error) {
	data, ok, err := m.get(ownerKey)
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	var owner [20]byte
	if err := rlp.DecodeBytes(data, &owner); err != nil {
		return [20]byte{}, false, fmt.Errorf("state: decode owner: %w", err)
	}
	return owner, true, nil
}

func (m *Manager) OwnerPut(addr [20]byte) error {
	encoded, err := rlp.EncodeToBytes(addr)
	if err != nil {
		return fmt.Errorf("state: encode owner: %w", err)
	}
	return m.db.Put(ownerKey, encoded)
}

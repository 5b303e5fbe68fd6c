package rpc

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"yieldlock/core/state"
	nativecommon "yieldlock/native/common"
	"yieldlock/native/ledger"
	"yieldlock/native/params"
	"yieldlock/native/registry"
	"yieldlock/storage"
)

type staticMetadata map[[20]byte]struct {
	symbol   string
	decimals uint8
}

func (m staticMetadata) Describe(id [20]byte) (string, uint8, error) {
	entry, ok := m[id]
	if !ok {
		return "", 0, registry.ErrNotContract
	}
	return entry.symbol, entry.decimals, nil
}

type fixture struct {
	server   *Server
	owner    [20]byte
	manager  *state.Manager
	registry *registry.Registry
	engine   *ledger.Engine
	store    *params.Store
	position *ledger.Position
}

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

var (
	rewardAddr = addr(0xAA)
	tokenAddr  = addr(0x42)
)

// newFixture stands up the full read path: a memory-backed state manager,
// seeded engines and one active position.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	owner := addr(0x01)
	locker := addr(0x03)

	auth := nativecommon.NewOwnable(manager)
	require.NoError(t, auth.Bootstrap(owner))

	meta := staticMetadata{
		rewardAddr: {symbol: "YLD", decimals: 6},
		tokenAddr:  {symbol: "TKN", decimals: 6},
	}
	reg := registry.NewRegistry(manager, meta, auth)
	reg.SetRewardAsset(rewardAddr)
	store := params.NewStore(manager, auth)
	engine := ledger.NewEngine(manager, store, manager, auth)
	engine.SetRewardAsset(rewardAddr)
	engine.SetSink(addr(0x02))
	engine.SetNowFunc(func() uint64 { return 1_700_000_000 })

	require.NoError(t, reg.Register(owner, rewardAddr, uint256.MustFromDecimal("1000000000000000000")))
	require.NoError(t, reg.Register(owner, registry.NativeAssetID, uint256.MustFromDecimal("1000000000000000000")))
	require.NoError(t, store.SetEarlyRedeemFeeBounds(owner, 100_000, 300_000))
	require.NoError(t, store.SetTotalMintBudget(owner, uint256.MustFromDecimal("1000000000")))
	require.NoError(t, store.SetInterest(owner, 100, 100_000))

	amount := uint256.MustFromDecimal("73000000000000000000")
	require.NoError(t, manager.Mint(locker, registry.NativeAssetID, amount))
	pos, err := engine.Create(locker, registry.NativeAssetID, amount, 100, amount)
	require.NoError(t, err)

	return &fixture{
		server:   NewServer(slog.Default(), reg, engine, store, 0),
		owner:    owner,
		manager:  manager,
		registry: reg,
		engine:   engine,
		store:    store,
		position: pos,
	}
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	fix := newFixture(t)
	rec := get(t, fix.server.Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestAssetEndpoints(t *testing.T) {
	fix := newFixture(t)
	handler := fix.server.Handler()

	rec := get(t, handler, "/v1/assets")
	require.Equal(t, http.StatusOK, rec.Code)
	var assets []assetView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assets))
	require.Len(t, assets, 2)
	require.Equal(t, "YLD", assets[0].Symbol)

	rec = get(t, handler, "/v1/assets/"+common.Address(registry.NativeAssetID).Hex())
	require.Equal(t, http.StatusOK, rec.Code)
	var asset assetView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &asset))
	require.Equal(t, registry.NativeSymbol, asset.Symbol)
	require.Equal(t, uint64(1), asset.OpenPositions)

	rec = get(t, handler, "/v1/assets/"+common.Address(addr(0x77)).Hex())
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, handler, "/v1/assets/not-hex")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, handler, "/v1/assets?start=9")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPositionEndpoints(t *testing.T) {
	fix := newFixture(t)
	handler := fix.server.Handler()

	rec := get(t, handler, "/v1/positions")
	require.Equal(t, http.StatusOK, rec.Code)
	var positions []positionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &positions))
	require.Len(t, positions, 1)
	require.Equal(t, "active", positions[0].Status)
	require.Equal(t, "73000000000000000000", positions[0].Collateral)

	rec = get(t, handler, "/v1/positions/"+common.Hash(fix.position.ID).Hex())
	require.Equal(t, http.StatusOK, rec.Code)
	var pos positionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pos))
	require.Equal(t, common.Hash(fix.position.ID).Hex(), pos.ID)
	require.Equal(t, "2000000", pos.RewardRemaining)
	require.Equal(t, uint32(100), pos.TenureDays)

	rec = get(t, handler, "/v1/positions/"+common.Hash([32]byte{0xFF}).Hex())
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, handler, "/v1/positions/zz")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParamsEndpoint(t *testing.T) {
	fix := newFixture(t)
	rec := get(t, fix.server.Handler(), "/v1/params")
	require.Equal(t, http.StatusOK, rec.Code)

	var view paramsView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, uint64(100_000), view.MinEarlyRedeemFeeRate)
	require.Equal(t, uint64(300_000), view.MaxEarlyRedeemFeeRate)
	require.Equal(t, "1000000000", view.TotalMintBudget)
	require.Len(t, view.Interest, 1)
	require.Equal(t, uint32(100), view.Interest[0].TenureDays)
}

func TestCountersEndpoint(t *testing.T) {
	fix := newFixture(t)
	rec := get(t, fix.server.Handler(), "/v1/counters")
	require.Equal(t, http.StatusOK, rec.Code)

	var view countersView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "2000000", view.TotalMinted)
	require.Equal(t, "1000000000", view.TotalMintBudget)
}

func TestMetricsEndpoint(t *testing.T) {
	fix := newFixture(t)
	handler := fix.server.Handler()
	get(t, handler, "/healthz")
	rec := get(t, handler, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "yieldlock_rpc_requests_total")
}

func TestThrottle(t *testing.T) {
	fix := newFixture(t)
	throttled := NewServer(slog.Default(), fix.registry, fix.engine, fix.store, 1)
	handler := throttled.Handler()

	limited := false
	for i := 0; i < 10; i++ {
		if get(t, handler, "/healthz").Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	require.True(t, limited, "burst past the budget must hit the limiter")
}

func TestRequestIDHeader(t *testing.T) {
	fix := newFixture(t)
	rec := get(t, fix.server.Handler(), "/healthz")
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"yieldlock/config"
	"yieldlock/core/state"
	nativecommon "yieldlock/native/common"
	"yieldlock/native/ledger"
	"yieldlock/native/params"
	"yieldlock/native/registry"
	"yieldlock/observability/logging"
	"yieldlock/rpc"
	"yieldlock/storage"
)

const envVar = "YIELDLOCK_ENV"

// seedMetadata resolves asset metadata from the config seed table; the
// daemon has no chain to query, so only seeded identifiers count as
// contract-bearing.
type seedMetadata struct {
	entries map[[20]byte]config.AssetSeed
}

func newSeedMetadata(cfg *config.Config) *seedMetadata {
	entries := make(map[[20]byte]config.AssetSeed, len(cfg.Assets)+1)
	entries[cfg.RewardAssetAddress()] = config.AssetSeed{
		Address:  cfg.RewardAsset.Address,
		Symbol:   cfg.RewardAsset.Symbol,
		Decimals: cfg.RewardAsset.Decimals,
	}
	for _, seed := range cfg.Assets {
		entries[common.HexToAddress(seed.Address)] = seed
	}
	return &seedMetadata{entries: entries}
}

func (m *seedMetadata) Describe(id [20]byte) (string, uint8, error) {
	seed, ok := m.entries[id]
	if !ok {
		return "", 0, fmt.Errorf("no metadata for %s", common.Address(id).Hex())
	}
	return seed.Symbol, seed.Decimals, nil
}

// seedGenesis installs the owner, reward asset, seeded collateral assets,
// default parameters and the reward float on first start. A second start
// finds the reward asset registered and leaves everything untouched.
func seedGenesis(cfg *config.Config, manager *state.Manager, auth *nativecommon.Ownable, reg *registry.Registry, store *params.Store, logger *slog.Logger) error {
	owner := cfg.OwnerAddress()
	if err := auth.Bootstrap(owner); err != nil {
		return fmt.Errorf("bootstrap owner: %w", err)
	}
	rewardID := cfg.RewardAssetAddress()
	if _, found, err := manager.AssetGet(rewardID); err != nil {
		return err
	} else if found {
		return nil
	}
	logger.Info("seeding genesis state")
	if err := reg.Register(owner, rewardID, config.MustAmount(cfg.RewardAsset.MintFactor)); err != nil {
		return fmt.Errorf("register reward asset: %w", err)
	}
	for _, seed := range cfg.Assets {
		if err := reg.Register(owner, common.HexToAddress(seed.Address), config.MustAmount(seed.MintFactor)); err != nil {
			return fmt.Errorf("register %s: %w", seed.Symbol, err)
		}
	}
	if err := store.SetContractFee(owner, cfg.Genesis.ContractFeeRate); err != nil {
		return err
	}
	if err := store.SetEarlyRedeemFeeBounds(owner, cfg.Genesis.MinEarlyRedeemFeeRate, cfg.Genesis.MaxEarlyRedeemFeeRate); err != nil {
		return err
	}
	if err := store.SetTotalMintBudget(owner, config.MustAmount(cfg.Genesis.TotalMintBudget)); err != nil {
		return err
	}
	for _, tier := range cfg.Genesis.Interest {
		if err := store.SetInterest(owner, tier.TenureDays, tier.Rate); err != nil {
			return err
		}
	}
	float := config.MustAmount(cfg.RewardAsset.InitialFloat)
	if !float.IsZero() {
		if err := manager.Mint(state.VaultAddress, rewardID, float); err != nil {
			return fmt.Errorf("mint reward float: %w", err)
		}
	}
	return nil
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envVar))
	logger := logging.Setup("yieldlockd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	auth := nativecommon.NewOwnable(manager)

	reg := registry.NewRegistry(manager, newSeedMetadata(cfg), auth)
	reg.SetRewardAsset(cfg.RewardAssetAddress())
	reg.SetStrictValidityToggle(cfg.Policy.StrictValidityToggle)

	store := params.NewStore(manager, auth)

	engine := ledger.NewEngine(manager, store, manager, auth)
	engine.SetRewardAsset(cfg.RewardAssetAddress())
	engine.SetSink(cfg.FeeSinkAddress())
	engine.SetRejectZeroPenalty(cfg.Policy.RejectZeroPenalty)

	if err := seedGenesis(cfg, manager, auth, reg, store, logger); err != nil {
		logger.Error("seed genesis", slog.String("error", err.Error()))
		os.Exit(1)
	}

	server := rpc.NewServer(logger, reg, engine, store, cfg.RateLimitRPS)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("query surface listening", slog.String("addr", cfg.ListenAddress))
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("shutdown", slog.String("error", err.Error()))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"yieldlock/native/fpmath"
)

// InterestTier seeds the tenure→APY table at genesis.
type InterestTier struct {
	TenureDays uint32 `toml:"TenureDays"`
	Rate       uint64 `toml:"Rate"`
}

// RewardAsset describes the designated reward token registered at genesis.
type RewardAsset struct {
	Address      string `toml:"Address"`
	Symbol       string `toml:"Symbol"`
	Decimals     uint8  `toml:"Decimals"`
	MintFactor   string `toml:"MintFactor"`
	InitialFloat string `toml:"InitialFloat"`
}

// AssetSeed registers a collateral asset at genesis. Because the daemon has
// no chain to query, the seed table doubles as the metadata source for its
// entries.
type AssetSeed struct {
	Address    string `toml:"Address"`
	Symbol     string `toml:"Symbol"`
	Decimals   uint8  `toml:"Decimals"`
	MintFactor string `toml:"MintFactor"`
}

// Policy groups the behaviour flags the source contract revisions disagree
// on.
type Policy struct {
	RejectZeroPenalty    bool `toml:"RejectZeroPenalty"`
	StrictValidityToggle bool `toml:"StrictValidityToggle"`
}

// Genesis seeds the owner-mutable parameters on first start.
type Genesis struct {
	ContractFeeRate       uint64         `toml:"ContractFeeRate"`
	MinEarlyRedeemFeeRate uint64         `toml:"MinEarlyRedeemFeeRate"`
	MaxEarlyRedeemFeeRate uint64         `toml:"MaxEarlyRedeemFeeRate"`
	TotalMintBudget       string         `toml:"TotalMintBudget"`
	Interest              []InterestTier `toml:"Interest"`
}

type Config struct {
	ListenAddress string      `toml:"ListenAddress"`
	DataDir       string      `toml:"DataDir"`
	Owner         string      `toml:"Owner"`
	FeeSink       string      `toml:"FeeSink"`
	RateLimitRPS  float64     `toml:"RateLimitRPS"`
	RewardAsset   RewardAsset `toml:"RewardAsset"`
	Assets        []AssetSeed `toml:"Assets"`
	Policy        Policy      `toml:"Policy"`
	Genesis       Genesis     `toml:"Genesis"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks addresses, amounts and rate bounds.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("config: ListenAddress must be set")
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: DataDir must be set")
	}
	for name, addr := range map[string]string{
		"Owner":               c.Owner,
		"FeeSink":             c.FeeSink,
		"RewardAsset.Address": c.RewardAsset.Address,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("config: %s is not a valid address: %q", name, addr)
		}
	}
	for name, value := range map[string]string{
		"RewardAsset.MintFactor":   c.RewardAsset.MintFactor,
		"RewardAsset.InitialFloat": c.RewardAsset.InitialFloat,
		"Genesis.TotalMintBudget":  c.Genesis.TotalMintBudget,
	} {
		if _, err := uint256.FromDecimal(value); err != nil {
			return fmt.Errorf("config: %s is not a decimal amount: %q", name, value)
		}
	}
	if c.Genesis.MaxEarlyRedeemFeeRate > fpmath.RateBase {
		return fmt.Errorf("config: MaxEarlyRedeemFeeRate exceeds the six-decimal base")
	}
	if c.Genesis.MinEarlyRedeemFeeRate > c.Genesis.MaxEarlyRedeemFeeRate {
		return fmt.Errorf("config: MinEarlyRedeemFeeRate exceeds MaxEarlyRedeemFeeRate")
	}
	if c.Genesis.ContractFeeRate > fpmath.RateBase {
		return fmt.Errorf("config: ContractFeeRate exceeds the six-decimal base")
	}
	for _, tier := range c.Genesis.Interest {
		if tier.TenureDays == 0 {
			return fmt.Errorf("config: interest tier with zero tenure")
		}
	}
	for i, seed := range c.Assets {
		if !common.IsHexAddress(seed.Address) {
			return fmt.Errorf("config: Assets[%d].Address is not a valid address: %q", i, seed.Address)
		}
		if seed.Symbol == "" {
			return fmt.Errorf("config: Assets[%d].Symbol must be set", i)
		}
		if _, err := uint256.FromDecimal(seed.MintFactor); err != nil {
			return fmt.Errorf("config: Assets[%d].MintFactor is not a decimal amount: %q", i, seed.MintFactor)
		}
	}
	return nil
}

// OwnerAddress returns the configured owner principal.
func (c *Config) OwnerAddress() [20]byte {
	return common.HexToAddress(c.Owner)
}

// FeeSinkAddress returns the configured fee/penalty sink.
func (c *Config) FeeSinkAddress() [20]byte {
	return common.HexToAddress(c.FeeSink)
}

// RewardAssetAddress returns the reward token identifier.
func (c *Config) RewardAssetAddress() [20]byte {
	return common.HexToAddress(c.RewardAsset.Address)
}

// MustAmount parses a validated decimal amount field.
func MustAmount(value string) *uint256.Int {
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		panic(fmt.Sprintf("config: invalid amount %q", value))
	}
	return amount
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: "0.0.0.0:8547",
		DataDir:       "./data",
		Owner:         "0x0000000000000000000000000000000000000001",
		FeeSink:       "0x000000000000000000000000000000000000dEaD",
		RateLimitRPS:  50,
		RewardAsset: RewardAsset{
			Address:      "0x0000000000000000000000000000000000001001",
			Symbol:       "YLD",
			Decimals:     18,
			MintFactor:   "1000000000000000000",
			InitialFloat: "1000000000000000000000000",
		},
		Policy: Policy{
			RejectZeroPenalty:    true,
			StrictValidityToggle: false,
		},
		Genesis: Genesis{
			ContractFeeRate:       10_000,
			MinEarlyRedeemFeeRate: 50_000,
			MaxEarlyRedeemFeeRate: 300_000,
			TotalMintBudget:       "10000000000000000000000000",
			Interest: []InterestTier{
				{TenureDays: 30, Rate: 30_000},
				{TenureDays: 90, Rate: 50_000},
				{TenureDays: 180, Rate: 80_000},
				{TenureDays: 365, Rate: 120_000},
			},
		},
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// network type constants
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
)

const (
	// DirName is the per-user data directory under $HOME.
	DirName = ".meridian"

	configFile  = "config.yml"
	networkFile = "network.txt"

	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "MERIDIAN_CONFIG"
)

// default contract ids and root key for the NEAR testnet deployment
const (
	DefaultContractID    = "mcs-demo.testnet"
	DefaultMPCContractID = "multichain-testnet-2.testnet"
	DefaultMPCPublicKey  = "secp256k1:4HFcTSodRLVCGNVcGc4Mf2fwBBBxv9jxkGdiW2S2CA1y6UpVVRWKj6RX7d7TDt65k2Bj3w9FU4BGtt43ZvuhCnNt"
)

// NearNetwork holds the endpoints and contracts for one NEAR network.
type NearNetwork struct {
	NetworkID     string `yaml:"network_id"`
	NodeURL       string `yaml:"node_url"`
	ExplorerURL   string `yaml:"explorer_url"`
	ContractID    string `yaml:"contract_id"`
	MPCContractID string `yaml:"mpc_contract_id"`
	MPCPublicKey  string `yaml:"mpc_public_key"`
}

// EVMChain configures an EVM-compatible provider.
type EVMChain struct {
	ProviderURL string `yaml:"provider_url"`
	ScanURL     string `yaml:"scan_url"`
	Name        string `yaml:"name"`
}

// BitcoinChain configures an Esplora-compatible Bitcoin endpoint.
type BitcoinChain struct {
	RPCEndpoint string `yaml:"rpc_endpoint"`
	ScanURL     string `yaml:"scan_url"`
	Name        string `yaml:"name"`
	NetworkType string `yaml:"network_type"`
}

type Chains struct {
	Ethereum EVMChain     `yaml:"ethereum"`
	BSC      EVMChain     `yaml:"bsc"`
	BTC      BitcoinChain `yaml:"btc"`
}

// Request tunes the request runner used for polling and retries.
type Request struct {
	RetryCount      int           `yaml:"retry_count"`
	RetryInterval   time.Duration `yaml:"retry_interval"`
	PollingInterval time.Duration `yaml:"polling_interval"`
	Timeout         time.Duration `yaml:"timeout"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Config struct {
	// Network is the selected NEAR network, read from network.txt.
	Network  string                 `yaml:"-"`
	Networks map[string]NearNetwork `yaml:"networks"`
	Chains   Chains                 `yaml:"chains"`
	Request  Request                `yaml:"request"`
	Log      Log                    `yaml:"log"`

	// Dir is the data directory the config was resolved against.
	Dir string `yaml:"-"`
}

// Default returns the built-in testnet configuration.
func Default() *Config {
	return &Config{
		Network: NetworkTestnet,
		Networks: map[string]NearNetwork{
			NetworkTestnet: {
				NetworkID:     NetworkTestnet,
				NodeURL:       "https://rpc.testnet.near.org",
				ExplorerURL:   "https://explorer.testnet.near.org",
				ContractID:    DefaultContractID,
				MPCContractID: DefaultMPCContractID,
				MPCPublicKey:  DefaultMPCPublicKey,
			},
			NetworkMainnet: {
				NetworkID:   NetworkMainnet,
				NodeURL:     "https://rpc.mainnet.near.org",
				ExplorerURL: "https://explorer.near.org",
			},
		},
		Chains: Chains{
			Ethereum: EVMChain{
				ProviderURL: "https://ethereum-sepolia.publicnode.com",
				ScanURL:     "https://sepolia.etherscan.io",
				Name:        "ETH",
			},
			BSC: EVMChain{
				ProviderURL: "https://data-seed-prebsc-1-s1.bnbchain.org:8545",
				ScanURL:     "https://testnet.bscscan.com",
				Name:        "BNB",
			},
			BTC: BitcoinChain{
				RPCEndpoint: "https://blockstream.info/testnet/api/",
				ScanURL:     "https://blockstream.info/testnet",
				Name:        "BTC",
				NetworkType: NetworkTestnet,
			},
		},
		Request: Request{
			RetryCount:      0,
			RetryInterval:   time.Second,
			PollingInterval: 10 * time.Second,
			Timeout:         30 * time.Second,
		},
		Log: Log{Level: "info"},
	}
}

// DefaultDir returns ~/.meridian.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// Load reads the config file at path (or the default location when empty)
// over the built-in defaults, then applies the persisted network selection.
// A missing file is not an error.
func Load(dir, path string) (*Config, error) {
	cfg := Default()
	cfg.Dir = dir

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = filepath.Join(dir, configFile)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.fillNetworkDefaults()
	cfg.Network = ReadNetwork(dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillNetworkDefaults restores built-in values for network fields a
// partial config file left empty.
func (c *Config) fillNetworkDefaults() {
	if c.Networks == nil {
		c.Networks = map[string]NearNetwork{}
	}
	for name, def := range Default().Networks {
		net, ok := c.Networks[name]
		if !ok {
			c.Networks[name] = def
			continue
		}
		if net.NetworkID == "" {
			net.NetworkID = def.NetworkID
		}
		if net.NodeURL == "" {
			net.NodeURL = def.NodeURL
		}
		if net.ExplorerURL == "" {
			net.ExplorerURL = def.ExplorerURL
		}
		if net.ContractID == "" {
			net.ContractID = def.ContractID
		}
		if net.MPCContractID == "" {
			net.MPCContractID = def.MPCContractID
		}
		if net.MPCPublicKey == "" {
			net.MPCPublicKey = def.MPCPublicKey
		}
		c.Networks[name] = net
	}
}

// Validate checks that the selected network is configured.
func (c *Config) Validate() error {
	net, ok := c.Networks[c.Network]
	if !ok {
		return fmt.Errorf("network %q is not configured", c.Network)
	}
	if net.NodeURL == "" {
		return fmt.Errorf("network %q has no node_url", c.Network)
	}
	return nil
}

// Active returns the configuration of the selected NEAR network. The
// network id falls back to the map key when left empty.
func (c *Config) Active() NearNetwork {
	net := c.Networks[c.Network]
	if net.NetworkID == "" {
		net.NetworkID = c.Network
	}
	return net
}

// ReadNetwork returns the persisted network, defaulting to testnet when the
// file is missing or holds an unknown value.
func ReadNetwork(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, networkFile))
	if err != nil {
		return NetworkTestnet
	}

	network := strings.TrimSpace(string(data))
	if network != NetworkMainnet && network != NetworkTestnet {
		return NetworkTestnet
	}
	return network
}

// WriteNetwork persists the network selection.
func WriteNetwork(dir, network string) error {
	network = strings.ToLower(strings.TrimSpace(network))
	if network != NetworkMainnet && network != NetworkTestnet {
		return fmt.Errorf("invalid network: %s. Use 'mainnet' or 'testnet'", network)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, networkFile), []byte(network), 0600); err != nil {
		return fmt.Errorf("failed to write network file: %w", err)
	}
	return nil
}

// Package config provides the configuration for the rpc broker.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/go-errors/errors"

	"github.com/devwallet/rpcbroker/internal/utils/database"
)

var (
	// ErrNoWalletAPIKeys is returned when no wallet interface key is configured.
	ErrNoWalletAPIKeys = errors.New("at least one wallet api key is required")
	// ErrInvalidRateLimit is returned when the rate limit is not positive.
	ErrInvalidRateLimit = errors.New("rate_limiter_qps must be positive")
	// ErrNetworkRPCURLRequired is returned when a network has no rpc url.
	ErrNetworkRPCURLRequired = errors.New("network rpc_url is required")
	// ErrInvalidNetworkType is returned for network types other than anvil and remote.
	ErrInvalidNetworkType = errors.New("network type must be anvil or remote")
	// ErrUnknownActiveRPCURL is returned when the active rpc url matches no network.
	ErrUnknownActiveRPCURL = errors.New("active_rpc_url does not match any network")
	// ErrInvalidAccountType is returned for account types other than local and json-rpc.
	ErrInvalidAccountType = errors.New("account type must be local or json-rpc")
	// ErrPrivateKeyRequired is returned for local accounts without a key.
	ErrPrivateKeyRequired = errors.New("local accounts require private_key")
	// ErrAddressRequired is returned for json-rpc accounts without an address.
	ErrAddressRequired = errors.New("json-rpc accounts require address")
)

// NetworkConfig is a network seeded on first start.
type NetworkConfig struct {
	ChainID int64  `json:"chain_id"`
	Name    string `json:"name"`
	RPCURL  string `json:"rpc_url"`
	Type    string `json:"type"`
}

// AccountConfig is an account seeded on first start.
type AccountConfig struct {
	Address     string `json:"address"`
	Type        string `json:"type"`
	PrivateKey  string `json:"private_key"`
	Impersonate bool   `json:"impersonate"`
	RPCURL      string `json:"rpc_url"`
	DisplayName string `json:"display_name"`
}

// SettingsConfig holds the approval bypass flags.
type SettingsConfig struct {
	BypassConnectAuth     bool `json:"bypass_connect_auth"`
	BypassSignatureAuth   bool `json:"bypass_signature_auth"`
	BypassTransactionAuth bool `json:"bypass_transaction_auth"`
}

// Config represents the configuration for the broker.
type Config struct {
	WalletAPIKeys     []string        `json:"wallet_api_keys"`
	RateLimiterQPS    int64           `json:"rate_limiter_qps"`
	CORSOrigins       []string        `json:"cors_origins"`
	Networks          []NetworkConfig `json:"networks"`
	ActiveRPCURL      string          `json:"active_rpc_url"`
	ActiveAccount     string          `json:"active_account"`
	Accounts          []AccountConfig `json:"accounts"`
	Settings          SettingsConfig  `json:"settings"`
	Onboarded         bool            `json:"onboarded"`
	NatsURL           string          `json:"nats_url"`
	RequestTimeoutSec int             `json:"request_timeout_sec"`
	ClientCacheSize   int             `json:"client_cache_size"`
	DBConfig          database.Config `json:"db_config"`
}

// NewConfig return an unmarshalled config instance.
func NewConfig(file string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(file))
	if err != nil {
		return nil, err
	}
	cfg := Config{
		RateLimiterQPS:    100,
		RequestTimeoutSec: 30,
		ClientCacheSize:   64,
	}
	err = json.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RequestTimeout returns the upstream request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// Validate checks the config for inconsistent values.
func (c *Config) Validate() error {
	if len(c.WalletAPIKeys) == 0 {
		return ErrNoWalletAPIKeys
	}
	if c.RateLimiterQPS <= 0 {
		return ErrInvalidRateLimit
	}

	activeFound := c.ActiveRPCURL == ""
	for _, network := range c.Networks {
		if network.RPCURL == "" {
			return ErrNetworkRPCURLRequired
		}
		if network.Type != "" && network.Type != "anvil" && network.Type != "remote" {
			return errors.WrapPrefix(ErrInvalidNetworkType, network.RPCURL, 0)
		}
		if network.RPCURL == c.ActiveRPCURL {
			activeFound = true
		}
	}
	if !activeFound {
		return ErrUnknownActiveRPCURL
	}

	for _, account := range c.Accounts {
		switch account.Type {
		case "local":
			if account.PrivateKey == "" {
				return ErrPrivateKeyRequired
			}
		case "json-rpc":
			if account.Address == "" {
				return ErrAddressRequired
			}
		default:
			return errors.WrapPrefix(ErrInvalidAccountType, account.Address, 0)
		}
	}
	return nil
}

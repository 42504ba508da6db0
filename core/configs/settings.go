package configs

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Environment variables read by LoadSettings.
const (
	EnvNetwork        = "NETWORK"
	EnvUsersNumber    = "USERS_NUMBER"
	EnvInitialBalance = "INITIAL_BALANCE"
	EnvBankAccount    = "BANK_ACCOUNT"
	EnvFaucetURL      = "FAUCET_URL"
	EnvProxyURL       = "PROXY_URL"
	EnvNetworkID      = "NETWORK_ID"
	EnvERC20Address   = "ERC20_ADDRESS"
	EnvERC20Owner     = "ERC20_OWNER"
	EnvERC20OwnerKey  = "ERC20_OWNER_KEY"
	EnvAccountsFile   = "ACCOUNTS_FILE"
)

const defaultAccountsFile = "data/accounts.json"

// Settings are the externally supplied values of a run.
type Settings struct {
	Network        string // Network selector in the envs file
	ProxyURL       string // EVM RPC endpoint, overrides the envs file
	FaucetURL      string // Faucet URL, overrides the envs file
	NetworkID      int64  // Chain id, overrides the envs file
	UsersNumber    int    // Virtual users when no options file is given
	InitialBalance uint64 // Tokens requested for every funded account
	BankAccount    string // Hex private key funding accounts instead of the faucet
	ERC20Address   string // Token contract
	ERC20Owner     string // Token owner address
	ERC20OwnerKey  string // Token owner private key
	AccountsFile   string // Pre-generated accounts pool
}

// SettingsFromEnv reads the settings from the process environment. Missing
// numeric values keep their zero value, malformed ones are errors.
func SettingsFromEnv() (*Settings, error) {
	var settings Settings
	var err error

	settings.Network = os.Getenv(EnvNetwork)
	settings.ProxyURL = os.Getenv(EnvProxyURL)
	settings.FaucetURL = os.Getenv(EnvFaucetURL)
	settings.BankAccount = os.Getenv(EnvBankAccount)
	settings.ERC20Address = os.Getenv(EnvERC20Address)
	settings.ERC20Owner = os.Getenv(EnvERC20Owner)
	settings.ERC20OwnerKey = os.Getenv(EnvERC20OwnerKey)
	settings.AccountsFile = os.Getenv(EnvAccountsFile)

	if settings.AccountsFile == "" {
		settings.AccountsFile = defaultAccountsFile
	}

	if v := os.Getenv(EnvNetworkID); v != "" {
		settings.NetworkID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvNetworkID, err)
		}
	}

	if v := os.Getenv(EnvUsersNumber); v != "" {
		settings.UsersNumber, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvUsersNumber, err)
		}
	}

	if v := os.Getenv(EnvInitialBalance); v != "" {
		settings.InitialBalance, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvInitialBalance, err)
		}
	}

	return &settings, nil
}

// Resolve fills the endpoints left empty by the environment from the
// network entry of the envs file.
func (s *Settings) Resolve(envs EnvsConfig) error {
	if s.Network == "" {
		return errors.New("network is not defined, please set " + EnvNetwork)
	}

	if s.ProxyURL != "" && s.NetworkID != 0 && envs == nil {
		return nil
	}

	network, err := envs.Network(s.Network)
	if err != nil {
		return err
	}

	if s.ProxyURL == "" {
		s.ProxyURL = network.ProxyURL
	}

	if s.FaucetURL == "" {
		s.FaucetURL = network.FaucetURL
	}

	if s.NetworkID == 0 {
		s.NetworkID, err = network.ChainID()
		if err != nil {
			return err
		}
	}

	if s.ProxyURL == "" {
		return fmt.Errorf("no proxy url for network '%s'", s.Network)
	}

	return nil
}

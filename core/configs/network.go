package configs

import (
	"fmt"
	"strconv"
)

// DefaultNetwork is used when the requested network is not in the envs file.
const DefaultNetwork = "local"

// NetworkIDKey is the entry of `network_ids` holding the EVM chain id.
const NetworkIDKey = "neon"

// EnvsConfig maps a network name to its endpoints.
type EnvsConfig map[string]*NetworkConfig

// NetworkConfig contains the endpoints of one network.
type NetworkConfig struct {
	ProxyURL   string            `yaml:"proxy_url"`   // EVM RPC endpoint
	FaucetURL  string            `yaml:"faucet_url"`  // Faucet base URL
	NetworkIDs map[string]string `yaml:"network_ids"` // Chain ids by chain name
}

// Network returns the configuration of the named network, falling back to
// the local one when the name is unknown.
func (e EnvsConfig) Network(name string) (*NetworkConfig, error) {
	if network, ok := e[name]; ok {
		return network, nil
	}

	if network, ok := e[DefaultNetwork]; ok {
		return network, nil
	}

	return nil, fmt.Errorf("unknown network '%s' and no '%s' fallback",
		name, DefaultNetwork)
}

// ChainID parses the EVM chain id of the network.
func (n *NetworkConfig) ChainID() (int64, error) {
	raw, ok := n.NetworkIDs[NetworkIDKey]
	if !ok {
		return 0, fmt.Errorf("missing network id '%s'", NetworkIDKey)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid network id '%s': %w", raw, err)
	}

	return id, nil
}

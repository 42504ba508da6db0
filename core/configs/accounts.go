package configs

// AccountsFile is the pool written by the account preparation command,
// keyed by user index ("0", "1", ...).
type AccountsFile map[string]*AccountEntry

// AccountEntry holds one sender/receiver pair.
type AccountEntry struct {
	SenderAddress   string `yaml:"sender_address"`
	SenderKey       HexKey `yaml:"sender_key"`
	ReceiverAddress string `yaml:"receiver_address"`
}

package core

import (
	"errors"
	"fmt"
	"time"
)

// Arguments of the run command
type RunArgs struct {
	Scenario     string        // Scenario to run (send-neon, send-erc20)
	OptionsPath  string        // Path to the options file, default profile if empty
	EnvsPath     string        // Path to the network endpoints file
	DotenvPath   string        // Dotenv file loaded before reading the environment
	Network      string        // Network selector, overrides NETWORK
	Users        int           // Virtual users of the default profile, overrides USERS_NUMBER
	AccountsFile string        // Accounts pool, overrides ACCOUNTS_FILE
	ResultDir    string        // Directory the results are written to
	MetricsAddr  string        // host:port of the prometheus endpoint, disabled if empty
	Ceiling      time.Duration // Maximum wait for a receipt
	Verbose      bool          // Debug logs
	Trace        bool          // Trace logs, implies Verbose
}

// Arguments of the prepare-accounts command
type PrepareArgs struct {
	EnvsPath    string // Path to the network endpoints file
	DotenvPath  string // Dotenv file loaded before reading the environment
	Network     string // Network selector, overrides NETWORK
	Users       int    // Number of users, twice as many accounts are created
	Balance     uint64 // Tokens given to every sender, overrides INITIAL_BALANCE
	Out         string // Accounts file to write, overrides ACCOUNTS_FILE
	Concurrency int    // Accounts funded at the same time
	Verbose     bool
	Trace       bool
}

// Check the run arguments conform to specified requirements
func (ra *RunArgs) CheckArgs() error {
	if ra.Scenario == "" {
		return errors.New("scenario not provided")
	}

	if ra.Users < 0 {
		return fmt.Errorf("invalid number of users: %d", ra.Users)
	}

	if ra.Ceiling < 0 {
		return fmt.Errorf("invalid receipt timeout: %s", ra.Ceiling)
	}

	return nil
}

// Check the prepare arguments conform to specified requirements
func (pa *PrepareArgs) CheckArgs() error {
	if pa.Users < 0 {
		return fmt.Errorf("invalid number of users: %d", pa.Users)
	}

	if pa.Concurrency <= 0 {
		return fmt.Errorf("invalid concurrency: %d", pa.Concurrency)
	}

	return nil
}

package configs

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Executors understood by the scenario runner.
type ExecutorType string

const ExecutorConstantVUs ExecutorType = "constant-vus"
const ExecutorRampingVUs ExecutorType = "ramping-vus"

// Naive check if the prefixed hex string has "0x" leading.
func checkPrefix(keyHex string) bool {
	return len(keyHex) >= 2 && // Length must be 0x or more
		keyHex[0] == '0' && // Starts with 0
		(keyHex[1] == 'x' || keyHex[1] == 'X') // followed by an x or X
}

// DecodeHex decodes a hex string with or without a "0x" prefix.
func DecodeHex(value string) ([]byte, error) {
	if checkPrefix(value) {
		return hex.DecodeString(value[2:])
	}
	return hex.DecodeString(value)
}

// HexKey is a private key given as hex in a configuration file.
type HexKey []byte

func (k *HexKey) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string

	err := unmarshal(&raw)
	if err != nil {
		return err
	}

	if len(raw) == 0 {
		return errors.New("empty private key passed to unmarshal")
	}

	decoded, err := DecodeHex(raw)
	if err != nil {
		return err
	}

	*k = decoded

	return nil
}

// Duration accepts "30s", "1m30s" or a plain number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	var seconds float64

	if err := unmarshal(&seconds); err == nil {
		*d = Duration(time.Duration(seconds * float64(time.Second)))
		return nil
	}

	err := unmarshal(&raw)
	if err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration '%s': %w", raw, err)
	}

	*d = Duration(parsed)

	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (e *ExecutorType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var unmarshaled string

	err := unmarshal(&unmarshaled)
	if err != nil {
		return err
	}

	switch ExecutorType(unmarshaled) {
	case ExecutorConstantVUs, ExecutorRampingVUs:
		*e = ExecutorType(unmarshaled)
	case "":
		return errors.New("empty executor provided")
	default:
		return fmt.Errorf("unsupported executor '%s'", unmarshaled)
	}

	return nil
}

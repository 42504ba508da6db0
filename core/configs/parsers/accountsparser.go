package parsers

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"neon-loadtest/core/configs"
)

// ParseAccountsFile reads the accounts pool and returns the entries ordered
// by index.
func ParseAccountsFile(filePath string) ([]*configs.AccountEntry, error) {
	content, err := ioutil.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return parseAccountsYaml(content)
}

func parseAccountsYaml(content []byte) ([]*configs.AccountEntry, error) {
	var file configs.AccountsFile

	err := yaml.Unmarshal(content, &file)
	if err != nil {
		return nil, err
	}

	if len(file) == 0 {
		return nil, errors.New("empty accounts file")
	}

	// JSON keys are strings, order them numerically.
	indexes := make([]int, 0, len(file))
	byIndex := make(map[int]*configs.AccountEntry, len(file))
	for key, entry := range file {
		index, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid account index '%s'", key)
		}
		if entry == nil {
			return nil, fmt.Errorf("null entry %d in accounts file", index)
		}
		indexes = append(indexes, index)
		byIndex[index] = entry
	}
	sort.Ints(indexes)

	entries := make([]*configs.AccountEntry, 0, len(indexes))
	for _, index := range indexes {
		entries = append(entries, byIndex[index])
	}

	return entries, nil
}

type jsonAccountEntry struct {
	SenderAddress   string `json:"sender_address"`
	SenderKey       string `json:"sender_key"`
	ReceiverAddress string `json:"receiver_address"`
}

// WriteAccountsFile writes the pool as JSON, keys as hex without prefix.
func WriteAccountsFile(filePath string, entries []*configs.AccountEntry) error {
	out := make(map[string]jsonAccountEntry, len(entries))

	for i, entry := range entries {
		out[strconv.Itoa(i)] = jsonAccountEntry{
			SenderAddress:   entry.SenderAddress,
			SenderKey:       hex.EncodeToString(entry.SenderKey),
			ReceiverAddress: entry.ReceiverAddress,
		}
	}

	content, err := json.MarshalIndent(out, "", " ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(filePath); dir != "." {
		err = os.MkdirAll(dir, 0755)
		if err != nil {
			return err
		}
	}

	return ioutil.WriteFile(filePath, content, 0600)
}

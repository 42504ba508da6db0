// Package parsers reads the configuration files of a run: the load
// profile, the network endpoints and the pre-generated accounts pool.
// YAML and JSON are both accepted since the former is a superset.
package parsers

import (
	"io/ioutil"

	"gopkg.in/yaml.v3"

	"neon-loadtest/core/configs"
	"neon-loadtest/core/configs/validators"
)

// ParseOptions reads and validates the load profile at `filepath`.
func ParseOptions(filepath string) (*configs.Options, error) {
	content, err := ioutil.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	options, err := parseOptionsYaml(content)
	if err != nil {
		return nil, err
	}

	options.Path = filepath

	return options, nil
}

func parseOptionsYaml(content []byte) (*configs.Options, error) {
	var options configs.Options

	err := yaml.Unmarshal(content, &options)
	if err != nil {
		return nil, err
	}

	// The entry name is the scenario to run unless `exec` says otherwise.
	for name, scenario := range options.Scenarios {
		if scenario != nil && scenario.Exec == "" {
			scenario.Exec = name
		}
	}

	if ok, err := validators.ValidateOptions(&options); !ok {
		return nil, err
	}

	return &options, nil
}

package parsers

import (
	"io/ioutil"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"neon-loadtest/core/configs"
)

// ParseEnvsConfig reads the network endpoints file.
func ParseEnvsConfig(filePath string) (configs.EnvsConfig, error) {
	content, err := ioutil.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return parseEnvsYaml(content)
}

func parseEnvsYaml(content []byte) (configs.EnvsConfig, error) {
	var envs configs.EnvsConfig

	err := yaml.Unmarshal(content, &envs)
	if err != nil {
		return nil, err
	}

	return envs, nil
}

// LoadSettings loads the given dotenv files (".env" when none is given) into
// the process environment and reads the run settings from it. A missing
// dotenv file is not an error.
func LoadSettings(dotenvFiles ...string) (*configs.Settings, error) {
	err := godotenv.Load(dotenvFiles...)
	if err != nil {
		zap.L().Debug("no dotenv file loaded", zap.Error(err))
	}

	return configs.SettingsFromEnv()
}

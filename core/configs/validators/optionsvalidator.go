package validators

import (
	"errors"
	"fmt"

	"neon-loadtest/core/configs"
)

// ValidateOptions checks every scenario of the load profile.
func ValidateOptions(o *configs.Options) (bool, error) {
	if len(o.Scenarios) == 0 {
		return false, errors.New("no scenario defined in options")
	}

	for name, scenario := range o.Scenarios {
		if scenario == nil {
			return false, fmt.Errorf("scenario '%s' is empty", name)
		}

		if ok, err := ValidateScenario(scenario); !ok {
			return false, fmt.Errorf("scenario '%s': %w", name, err)
		}
	}

	return true, nil
}

// ValidateScenario checks the fields required by the executor of one
// scenario.
func ValidateScenario(s *configs.ScenarioOptions) (bool, error) {
	if s.Rate < 0 {
		return false, errors.New("rate cannot be negative")
	}

	if s.GracefulRampDown < 0 {
		return false, errors.New("gracefulRampDown cannot be negative")
	}

	switch s.Executor {
	case configs.ExecutorConstantVUs:
		if s.VUs <= 0 {
			return false, errors.New("constant-vus requires a positive vus")
		}
		if s.Duration <= 0 {
			return false, errors.New("constant-vus requires a positive duration")
		}

	case configs.ExecutorRampingVUs:
		if len(s.Stages) == 0 {
			return false, errors.New("ramping-vus requires at least one stage")
		}
		if s.StartVUs < 0 {
			return false, errors.New("startVUs cannot be negative")
		}
		for i, stage := range s.Stages {
			if stage.Duration < 0 {
				return false, fmt.Errorf("stage %d duration cannot be negative", i)
			}
			if stage.Target < 0 {
				return false, fmt.Errorf("stage %d target cannot be negative", i)
			}
		}

	default:
		return false, fmt.Errorf("unsupported executor '%s'", s.Executor)
	}

	return true, nil
}

package configs

import "time"

// Options is the load profile of a run, in the same shape as the harness
// options file: one entry per named scenario.
type Options struct {
	Scenarios map[string]*ScenarioOptions `yaml:"scenarios"`
	Path      string                      `yaml:"-"` // File the options were read from
}

// ScenarioOptions describes how virtual users are scheduled for one scenario.
type ScenarioOptions struct {
	Executor         ExecutorType `yaml:"executor"`                   // constant-vus or ramping-vus
	Exec             string       `yaml:"exec,omitempty"`             // Scenario to run, defaults to the entry name
	StartVUs         int          `yaml:"startVUs,omitempty"`         // ramping-vus: users at t=0
	Stages           []Stage      `yaml:"stages,omitempty"`           // ramping-vus: targets over time
	GracefulRampDown Duration     `yaml:"gracefulRampDown,omitempty"` // Time left to a stopped user to finish
	VUs              int          `yaml:"vus,omitempty"`              // constant-vus: number of users
	Duration         Duration     `yaml:"duration,omitempty"`         // constant-vus: run time
	Rate             float64      `yaml:"rate,omitempty"`             // Max iterations per second, 0 is unlimited
}

// Stage ramps linearly to `Target` users over `Duration`.
type Stage struct {
	Duration Duration `yaml:"duration"`
	Target   int      `yaml:"target"`
}

// TotalDuration is the time during which the scenario starts iterations.
func (o *ScenarioOptions) TotalDuration() Duration {
	var total Duration

	if o.Executor == ExecutorConstantVUs {
		return o.Duration
	}

	for _, stage := range o.Stages {
		total += stage.Duration
	}

	return total
}

// MaxVUs is the largest number of users the scenario can run at once.
func (o *ScenarioOptions) MaxVUs() int {
	if o.Executor == ExecutorConstantVUs {
		return o.VUs
	}

	max := o.StartVUs
	for _, stage := range o.Stages {
		if stage.Target > max {
			max = stage.Target
		}
	}

	return max
}

// DefaultOptions runs `users` users for twenty minutes after a thirty
// seconds ramp up.
func DefaultOptions(scenario string, users int) *Options {
	return &Options{
		Scenarios: map[string]*ScenarioOptions{
			scenario: {
				Executor: ExecutorRampingVUs,
				Exec:     scenario,
				StartVUs: 0,
				Stages: []Stage{
					{Duration: Duration(30 * time.Second), Target: users},
					{Duration: Duration(1200 * time.Second), Target: users},
				},
				GracefulRampDown: Duration(30 * time.Second),
			},
		},
	}
}

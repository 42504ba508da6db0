package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"neon-loadtest/core/configs"
)

const defaultExecutorTick = 100 * time.Millisecond

// Scenario is the body of a load test. `Setup` and `Teardown` run once,
// `NewUser` once per virtual user.
type Scenario interface {
	Setup(ctx context.Context) error
	NewUser(ctx context.Context, id int) (User, error)
	Teardown(ctx context.Context) error
}

// User is the state of one virtual user. Its methods are never called
// concurrently.
type User interface {
	Iterate(ctx context.Context) error
	Close()
}

// Executor schedules the virtual users of one scenario according to its
// options. Users iterate back to back until the executor stops them.
type Executor struct {
	name     string
	options  *configs.ScenarioOptions
	scenario Scenario
	metrics  Metrics
	logger   Logger
	tick     time.Duration
	limiter  *rate.Limiter

	lock   sync.Mutex
	wg     sync.WaitGroup
	active []*virtualUser
	ids    map[int]struct{}
	peak   int
}

type virtualUser struct {
	id     int
	ctx    context.Context
	cancel context.CancelFunc
	stop   chan struct{}
	logger Logger
}

func NewExecutor(name string, options *configs.ScenarioOptions, scenario Scenario, metrics Metrics, logger Logger) *Executor {
	var this Executor

	if metrics == nil {
		metrics = NopMetrics()
	}

	if logger == nil {
		logger = NopLogger()
	}

	this.name = name
	this.options = options
	this.scenario = scenario
	this.metrics = metrics
	this.logger = logger
	this.tick = defaultExecutorTick
	this.ids = make(map[int]struct{})

	if options.Rate > 0 {
		this.limiter = rate.NewLimiter(rate.Limit(options.Rate), 1)
	}

	return &this
}

// SetTick changes how often the number of users is adjusted.
func (this *Executor) SetTick(tick time.Duration) {
	if tick > 0 {
		this.tick = tick
	}
}

// PeakVUs returns the largest number of users that ran at once.
func (this *Executor) PeakVUs() int {
	this.lock.Lock()
	defer this.lock.Unlock()
	return this.peak
}

// TargetVUs returns how many users should run `elapsed` after the start. Once
// the scenario is over it returns 0.
func (this *Executor) TargetVUs(elapsed time.Duration) int {
	var from, target int
	var stage configs.Stage
	var length time.Duration

	if this.options.Executor == configs.ExecutorConstantVUs {
		if elapsed < this.options.Duration.Std() {
			return this.options.VUs
		}
		return 0
	}

	from = this.options.StartVUs

	for _, stage = range this.options.Stages {
		length = stage.Duration.Std()

		if elapsed < length {
			target = from + int(int64(stage.Target-from)*
				int64(elapsed)/int64(length))
			return target
		}

		elapsed -= length
		from = stage.Target
	}

	return 0
}

// Run executes the scenario until its last stage ends or `ctx` is done.
// Iteration errors never stop the run.
func (this *Executor) Run(ctx context.Context) error {
	var total, elapsed time.Duration
	var ticker *time.Ticker
	var start time.Time
	var err error

	this.logger.Debugf("setup scenario '%s'", this.name)

	err = this.scenario.Setup(ctx)
	if err != nil {
		return fmt.Errorf("setup of '%s': %w", this.name, err)
	}

	total = this.options.TotalDuration().Std()

	this.logger.Infof("run scenario '%s' for %s (up to %d users)",
		this.name, total, this.options.MaxVUs())

	start = time.Now()
	ticker = time.NewTicker(this.tick)

	this.scale(ctx, this.TargetVUs(0))

loop:
	for {
		select {
		case <-ctx.Done():
			this.logger.Infof("scenario '%s' interrupted",
				this.name)
			this.stopAll(0)
			break loop
		case <-ticker.C:
			elapsed = time.Since(start)
			if elapsed >= total {
				this.stopAll(this.options.GracefulRampDown.Std())
				break loop
			}
			this.scale(ctx, this.TargetVUs(elapsed))
		}
	}

	ticker.Stop()

	this.logger.Debugf("wait for users of '%s' to finish", this.name)
	this.wg.Wait()

	this.logger.Debugf("teardown scenario '%s'", this.name)

	err = this.scenario.Teardown(context.Background())
	if err != nil {
		return fmt.Errorf("teardown of '%s': %w", this.name, err)
	}

	this.logger.Infof("scenario '%s' done in %s", this.name,
		time.Since(start).Round(time.Millisecond))

	return nil
}

// Start or stop users so that `target` of them run. The most recent users
// are stopped first.
func (this *Executor) scale(ctx context.Context, target int) {
	var vu *virtualUser

	this.lock.Lock()
	defer this.lock.Unlock()

	for len(this.active) < target {
		vu = this.newVirtualUser(ctx)
		this.active = append(this.active, vu)
		this.wg.Add(1)
		go this.runUser(vu)
	}

	for len(this.active) > target {
		vu = this.active[len(this.active)-1]
		this.active = this.active[:len(this.active)-1]
		this.stopUser(vu, this.options.GracefulRampDown.Std())
	}

	if len(this.active) > this.peak {
		this.peak = len(this.active)
	}
}

func (this *Executor) stopAll(graceful time.Duration) {
	var vu *virtualUser

	this.lock.Lock()
	defer this.lock.Unlock()

	for _, vu = range this.active {
		this.stopUser(vu, graceful)
	}

	this.active = nil
}

// Take the lowest id not held by a running user. A stopped user keeps its
// id until its goroutine returns, so two live users never share an id.
func (this *Executor) leaseId() int {
	var id int = 1

	for {
		if _, taken := this.ids[id]; !taken {
			this.ids[id] = struct{}{}
			return id
		}
		id += 1
	}
}

func (this *Executor) releaseId(id int) {
	this.lock.Lock()
	delete(this.ids, id)
	this.lock.Unlock()
}

func (this *Executor) newVirtualUser(ctx context.Context) *virtualUser {
	var vu virtualUser

	vu.id = this.leaseId()

	vu.ctx, vu.cancel = context.WithCancel(ctx)
	vu.stop = make(chan struct{})
	vu.logger = this.logger.Extend(fmt.Sprintf("vu[%d]", vu.id))

	return &vu
}

// Ask a user to stop after its current iteration. It is cancelled if it has
// not returned after `graceful`.
func (this *Executor) stopUser(vu *virtualUser, graceful time.Duration) {
	close(vu.stop)

	if graceful <= 0 {
		vu.cancel()
		return
	}

	time.AfterFunc(graceful, vu.cancel)
}

func (this *Executor) runUser(vu *virtualUser) {
	var user User
	var err error

	defer this.wg.Done()
	defer this.releaseId(vu.id)
	defer vu.cancel()

	vu.logger.Tracef("start user")

	user, err = this.scenario.NewUser(vu.ctx, vu.id)
	if err != nil {
		vu.logger.Errorf("cannot create user: %s", err.Error())
		this.metrics.Add("user_errors", 1)
		return
	}

	defer user.Close()

	for {
		select {
		case <-vu.stop:
			vu.logger.Tracef("stop user")
			return
		case <-vu.ctx.Done():
			return
		default:
		}

		if this.limiter != nil {
			err = this.limiter.Wait(vu.ctx)
			if err != nil {
				return
			}
		}

		this.iterate(vu, user)
	}
}

func (this *Executor) iterate(vu *virtualUser, user User) {
	var start time.Time = time.Now()
	var err error

	err = user.Iterate(vu.ctx)

	if vu.ctx.Err() != nil {
		vu.logger.Tracef("iteration interrupted")
		this.metrics.Add("interrupted_iterations", 1)
		return
	}

	this.metrics.Observe("iteration_duration", time.Since(start))
	this.metrics.Add("iterations", 1)

	if err != nil {
		vu.logger.Warnf("iteration failed: %s", err.Error())
		this.metrics.Add("iteration_errors", 1)
	}
}

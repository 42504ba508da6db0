package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neon-loadtest/core/configs"
)

type fakeScenario struct {
	lock      sync.Mutex
	setupErr  error
	iterErr   error
	setups    int
	teardowns int
	users     map[int]*fakeUser
	all       []*fakeUser
	live      map[int]bool
	shared    []int
	running   int
	peak      int
	delay     time.Duration
}

type fakeUser struct {
	id         int
	scenario   *fakeScenario
	iterations int
	closed     bool
}

func newFakeScenario() *fakeScenario {
	return &fakeScenario{
		users: make(map[int]*fakeUser),
		live:  make(map[int]bool),
		delay: time.Millisecond,
	}
}

func (this *fakeScenario) Setup(context.Context) error {
	this.lock.Lock()
	defer this.lock.Unlock()
	this.setups += 1
	return this.setupErr
}

func (this *fakeScenario) Teardown(context.Context) error {
	this.lock.Lock()
	defer this.lock.Unlock()
	this.teardowns += 1
	return nil
}

func (this *fakeScenario) NewUser(ctx context.Context, id int) (User, error) {
	var user *fakeUser = &fakeUser{id: id, scenario: this}

	this.lock.Lock()
	defer this.lock.Unlock()

	if this.live[id] {
		this.shared = append(this.shared, id)
	}

	this.live[id] = true
	this.users[id] = user
	this.all = append(this.all, user)
	this.running += 1
	if this.running > this.peak {
		this.peak = this.running
	}

	return user, nil
}

func (this *fakeScenario) iterations() int {
	var total int

	this.lock.Lock()
	defer this.lock.Unlock()

	for _, user := range this.all {
		total += user.iterations
	}

	return total
}

func (this *fakeUser) Iterate(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(this.scenario.delay):
	}

	this.scenario.lock.Lock()
	defer this.scenario.lock.Unlock()
	this.iterations += 1

	return this.scenario.iterErr
}

func (this *fakeUser) Close() {
	this.scenario.lock.Lock()
	defer this.scenario.lock.Unlock()
	this.closed = true
	this.scenario.running -= 1
	delete(this.scenario.live, this.id)
}

func seconds(n float64) configs.Duration {
	return configs.Duration(time.Duration(n * float64(time.Second)))
}

func TestTargetVUsRamping(t *testing.T) {
	executor := NewExecutor("test", &configs.ScenarioOptions{
		Executor: configs.ExecutorRampingVUs,
		StartVUs: 0,
		Stages: []configs.Stage{
			{Duration: seconds(10), Target: 10},
			{Duration: seconds(10), Target: 10},
			{Duration: seconds(10), Target: 0},
		},
	}, newFakeScenario(), nil, nil)

	assert.Equal(t, 0, executor.TargetVUs(0))
	assert.Equal(t, 5, executor.TargetVUs(5*time.Second))
	assert.Equal(t, 10, executor.TargetVUs(10*time.Second))
	assert.Equal(t, 10, executor.TargetVUs(19*time.Second))
	assert.Equal(t, 5, executor.TargetVUs(25*time.Second))
	assert.Equal(t, 0, executor.TargetVUs(30*time.Second))
}

func TestTargetVUsConstant(t *testing.T) {
	executor := NewExecutor("test", &configs.ScenarioOptions{
		Executor: configs.ExecutorConstantVUs,
		VUs:      4,
		Duration: seconds(1),
	}, newFakeScenario(), nil, nil)

	assert.Equal(t, 4, executor.TargetVUs(0))
	assert.Equal(t, 4, executor.TargetVUs(999*time.Millisecond))
	assert.Equal(t, 0, executor.TargetVUs(time.Second))
}

func TestExecutorConstantVUs(t *testing.T) {
	asrt := assert.New(t)
	scenario := newFakeScenario()
	registry := NewRegistry()

	executor := NewExecutor("test", &configs.ScenarioOptions{
		Executor: configs.ExecutorConstantVUs,
		VUs:      3,
		Duration: seconds(0.1),

		GracefulRampDown: seconds(1),
	}, scenario, registry, nil)
	executor.SetTick(5 * time.Millisecond)

	require.NoError(t, executor.Run(context.Background()))

	asrt.Equal(1, scenario.setups)
	asrt.Equal(1, scenario.teardowns)
	asrt.Len(scenario.users, 3)
	asrt.Equal(3, scenario.peak)
	asrt.Equal(3, executor.PeakVUs())
	asrt.Equal(0, scenario.running)

	for id, user := range scenario.users {
		asrt.True(user.closed, "user %d", id)
		asrt.Greater(user.iterations, 0, "user %d", id)
	}

	asrt.Equal(float64(scenario.iterations()), registry.Counter("iterations"))
	asrt.Equal(float64(0), registry.Counter("iteration_errors"))
}

func TestExecutorRampingVUs(t *testing.T) {
	scenario := newFakeScenario()

	executor := NewExecutor("test", &configs.ScenarioOptions{
		Executor: configs.ExecutorRampingVUs,
		StartVUs: 1,
		Stages: []configs.Stage{
			{Duration: seconds(0.05), Target: 4},
			{Duration: seconds(0.1), Target: 4},
		},
		GracefulRampDown: seconds(1),
	}, scenario, nil, nil)
	executor.SetTick(5 * time.Millisecond)

	require.NoError(t, executor.Run(context.Background()))

	assert.Equal(t, 4, executor.PeakVUs())
	assert.Len(t, scenario.users, 4)
	assert.Equal(t, 0, scenario.running)
}

func TestExecutorReusesFreeIds(t *testing.T) {
	asrt := assert.New(t)
	scenario := newFakeScenario()

	executor := NewExecutor("test", &configs.ScenarioOptions{
		Executor: configs.ExecutorRampingVUs,
		StartVUs: 2,
		Stages: []configs.Stage{
			{Duration: seconds(0.01), Target: 1},
			{Duration: seconds(0.08), Target: 1},
			{Duration: seconds(0.01), Target: 2},
			{Duration: seconds(0.08), Target: 2},
		},
		GracefulRampDown: seconds(1),
	}, scenario, nil, nil)
	executor.SetTick(5 * time.Millisecond)

	require.NoError(t, executor.Run(context.Background()))

	// Two users per pool of two entries: ids must stay in {1, 2}.
	asrt.Greater(len(scenario.all), 2)
	for _, user := range scenario.all {
		asrt.Contains([]int{1, 2}, user.id)
	}
	asrt.Empty(scenario.shared)
	asrt.Empty(scenario.live)
}

func TestExecutorStoppedUserKeepsItsId(t *testing.T) {
	scenario := newFakeScenario()
	scenario.delay = 100 * time.Millisecond

	executor := NewExecutor("test", &configs.ScenarioOptions{
		Executor: configs.ExecutorRampingVUs,
		StartVUs: 2,
		Stages: []configs.Stage{
			{Duration: seconds(0.01), Target: 1},
			{Duration: seconds(0.01), Target: 2},
			{Duration: seconds(0.05), Target: 2},
		},
		GracefulRampDown: seconds(1),
	}, scenario, nil, nil)
	executor.SetTick(5 * time.Millisecond)

	require.NoError(t, executor.Run(context.Background()))

	assert.Empty(t, scenario.shared)
}

func TestExecutorCountsIterationErrors(t *testing.T) {
	scenario := newFakeScenario()
	scenario.iterErr = errors.New("receipt status is 0")
	registry := NewRegistry()

	executor := NewExecutor("test", &configs.ScenarioOptions{
		Executor: configs.ExecutorConstantVUs,
		VUs:      2,
		Duration: seconds(0.05),

		GracefulRampDown: seconds(1),
	}, scenario, registry, nil)
	executor.SetTick(5 * time.Millisecond)

	require.NoError(t, executor.Run(context.Background()))

	assert.Greater(t, registry.Counter("iteration_errors"), float64(0))
	assert.Equal(t, float64(scenario.iterations()),
		registry.Counter("iteration_errors"))
}

func TestExecutorRateLimit(t *testing.T) {
	scenario := newFakeScenario()
	scenario.delay = 0

	executor := NewExecutor("test", &configs.ScenarioOptions{
		Executor: configs.ExecutorConstantVUs,
		VUs:      5,
		Duration: seconds(0.2),
		Rate:     20,
	}, scenario, nil, nil)
	executor.SetTick(5 * time.Millisecond)

	require.NoError(t, executor.Run(context.Background()))

	// 20 per second for 0.2 second, plus the initial burst.
	assert.LessOrEqual(t, scenario.iterations(), 8)
	assert.Greater(t, scenario.iterations(), 0)
}

func TestExecutorInterrupted(t *testing.T) {
	scenario := newFakeScenario()
	ctx, cancel := context.WithCancel(context.Background())

	executor := NewExecutor("test", &configs.ScenarioOptions{
		Executor: configs.ExecutorConstantVUs,
		VUs:      2,
		Duration: seconds(60),
	}, scenario, nil, nil)
	executor.SetTick(5 * time.Millisecond)

	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	require.NoError(t, executor.Run(ctx))

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, scenario.teardowns)
	assert.Equal(t, 0, scenario.running)
}

func TestExecutorSetupError(t *testing.T) {
	scenario := newFakeScenario()
	scenario.setupErr = errors.New("faucet down")

	executor := NewExecutor("test", &configs.ScenarioOptions{
		Executor: configs.ExecutorConstantVUs,
		VUs:      2,
		Duration: seconds(1),
	}, scenario, nil, nil)

	assert.Error(t, executor.Run(context.Background()))
	assert.Empty(t, scenario.users)
	assert.Equal(t, 0, scenario.teardowns)
}

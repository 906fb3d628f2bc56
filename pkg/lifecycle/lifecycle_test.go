package lifecycle_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poltergeist/reactor/pkg/lifecycle"
	"github.com/poltergeist/reactor/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder remembers every goal it was asked to run
type recorder struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	delay map[string]time.Duration
}

func (r *recorder) Execute(ctx context.Context, req lifecycle.GoalRequest) error {
	r.mu.Lock()
	r.calls = append(r.calls, req.Phase+"/"+req.Goal.String())
	err := r.fail[req.Goal.String()]
	d := r.delay[req.Goal.String()]
	r.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func module() *types.Module {
	return &types.Module{Group: "com.example", Artifact: "core", Version: "1.0"}
}

func exec(phase, id string, goals ...string) types.Execution {
	return types.Execution{ID: id, Phase: phase, Goals: goals}
}

func TestForPhase(t *testing.T) {
	l, idx, err := lifecycle.ForPhase("compile")
	require.NoError(t, err)
	assert.Equal(t, "default", l.ID)
	assert.Equal(t, "compile", l.Phases[idx])

	l, _, err = lifecycle.ForPhase("post-clean")
	require.NoError(t, err)
	assert.Equal(t, "clean", l.ID)

	_, _, err = lifecycle.ForPhase("launch")
	assert.ErrorIs(t, err, types.ErrUnknownPhase)
}

func TestThrough(t *testing.T) {
	assert.Equal(t, []string{"pre-clean", "clean"}, lifecycle.Clean.Through("clean"))
	assert.Nil(t, lifecycle.Clean.Through("compile"))
}

func TestBind(t *testing.T) {
	plugins := []types.Plugin{
		{ID: "exec", Executions: []types.Execution{exec("compile", "build", "run"), exec("test", "unit", "run")}},
		{ID: "dependency", Executions: []types.Execution{exec("validate", "default-resolve", "resolve")}},
	}
	b, err := lifecycle.Bind(types.PackagingJar, plugins)
	require.NoError(t, err)

	require.Len(t, b.Goals("compile"), 1)
	assert.Equal(t, "exec:run", b.Goals("compile")[0].String())
	require.Len(t, b.Goals("validate"), 1, "matching execution id replaces the default binding")
	assert.Equal(t, []string{"clean:clean"}, goalNames(b.Goals("clean")))
	assert.Equal(t, []string{"install:install"}, goalNames(b.Goals("install")))

	pom, err := lifecycle.Bind(types.PackagingPom, nil)
	require.NoError(t, err)
	assert.Empty(t, pom.Goals("clean"))
	assert.Equal(t, []string{"install:install"}, goalNames(pom.Goals("install")))

	_, err = lifecycle.Bind(types.PackagingJar, []types.Plugin{{ID: "x", Executions: []types.Execution{exec("launch", "", "go")}}})
	assert.ErrorIs(t, err, types.ErrUnknownPhase)
}

func TestPlan_SkipsCompletedPhases(t *testing.T) {
	b := lifecycle.Bindings{}
	steps, err := lifecycle.Plan("compile", map[string]bool{"validate": true, "initialize": true}, b)
	require.NoError(t, err)

	var phases []string
	for _, s := range steps {
		phases = append(phases, s.Phase)
	}
	assert.Equal(t, []string{"generate-sources", "process-sources", "generate-resources", "process-resources", "compile"}, phases)
}

func TestRun_PhasesInOrderAcrossTasks(t *testing.T) {
	rec := &recorder{}
	b, err := lifecycle.Bind(types.PackagingJar, []types.Plugin{
		{ID: "exec", Executions: []types.Execution{exec("compile", "c", "run"), exec("test", "t", "run")}},
	})
	require.NoError(t, err)

	var observed []string
	r := lifecycle.NewRunner(rec, nil, lifecycle.WithObserver(func(_ *types.Module, o types.PhaseOutcome) {
		observed = append(observed, o.Phase)
	}))
	e := lifecycle.NewExecution(module())

	require.NoError(t, r.Run(context.Background(), e, "compile", b, nil))
	assert.Equal(t, lifecycle.StateSucceeded, e.State())
	assert.Equal(t, []string{"validate/dependency:resolve", "compile/exec:run"}, rec.Calls())
	assert.True(t, e.Completed("compile"))

	// a second task only runs what is missing
	require.NoError(t, r.Run(context.Background(), e, "test", b, nil))
	assert.Equal(t, []string{"validate/dependency:resolve", "compile/exec:run", "test/exec:run"}, rec.Calls())
	assert.Equal(t, "test", observed[len(observed)-1])
	assert.Equal(t, "validate", observed[0])
	assert.Len(t, observed, len(lifecycle.Default.Through("test")))
}

func TestRun_GoalFailureStopsModule(t *testing.T) {
	boom := errors.New("compiler error")
	rec := &recorder{fail: map[string]error{"exec:run": boom}}
	b, err := lifecycle.Bind(types.PackagingJar, []types.Plugin{
		{ID: "exec", Executions: []types.Execution{exec("compile", "c", "run")}},
		{ID: "later", Executions: []types.Execution{exec("compile", "c2", "go")}},
	})
	require.NoError(t, err)

	e := lifecycle.NewExecution(module())
	err = lifecycle.NewRunner(rec, nil).Run(context.Background(), e, "package", b, nil)
	require.ErrorIs(t, err, types.ErrGoalFailure)
	require.ErrorIs(t, err, boom)

	assert.Equal(t, lifecycle.StateFailed, e.State())
	assert.Equal(t, "compile", e.Phase())
	assert.NotContains(t, rec.Calls(), "compile/later:go")

	outcomes := e.Outcomes()
	last := outcomes[len(outcomes)-1]
	assert.Equal(t, types.StatusFailed, last.Status)
	require.Len(t, last.Goals, 1)
	assert.Equal(t, types.StatusFailed, last.Goals[0].Status)

	err = lifecycle.NewRunner(rec, nil).Run(context.Background(), e, "package", b, nil)
	assert.ErrorIs(t, err, types.ErrGoalFailure)
}

func TestRun_GoalTimeout(t *testing.T) {
	rec := &recorder{delay: map[string]time.Duration{"exec:run": time.Second}}
	b, err := lifecycle.Bind(types.PackagingPom, []types.Plugin{
		{ID: "exec", Executions: []types.Execution{exec("validate", "slow", "run")}},
	})
	require.NoError(t, err)

	r := lifecycle.NewRunner(rec, nil, lifecycle.WithGoalTimeout(20*time.Millisecond))
	err = r.Run(context.Background(), lifecycle.NewExecution(module()), "validate", b, nil)
	require.ErrorIs(t, err, types.ErrGoalTimeout)
	assert.False(t, errors.Is(err, types.ErrGoalFailure))
}

// stubborn ignores its context entirely
type stubborn struct{}

func (stubborn) Execute(context.Context, lifecycle.GoalRequest) error {
	time.Sleep(300 * time.Millisecond)
	return nil
}

func TestRun_TimeoutAbandonsStubbornGoal(t *testing.T) {
	b, err := lifecycle.Bind(types.PackagingPom, []types.Plugin{
		{ID: "exec", Executions: []types.Execution{exec("validate", "slow", "run")}},
	})
	require.NoError(t, err)

	start := time.Now()
	r := lifecycle.NewRunner(stubborn{}, nil, lifecycle.WithGoalTimeout(20*time.Millisecond))
	err = r.Run(context.Background(), lifecycle.NewExecution(module()), "validate", b, nil)
	require.ErrorIs(t, err, types.ErrGoalTimeout)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestRun_SkipTests(t *testing.T) {
	rec := &recorder{}
	b, err := lifecycle.Bind(types.PackagingPom, []types.Plugin{
		{ID: "exec", Executions: []types.Execution{exec("test", "unit", "run"), exec("package", "pkg", "zip")}},
	})
	require.NoError(t, err)

	e := lifecycle.NewExecution(module())
	r := lifecycle.NewRunner(rec, nil, lifecycle.WithSkipTests(true))
	require.NoError(t, r.Run(context.Background(), e, "package", b, nil))

	assert.Equal(t, []string{"package/exec:zip"}, rec.Calls())
	for _, o := range e.Outcomes() {
		if o.Phase == "test" {
			assert.Equal(t, types.StatusSkipped, o.Status)
			require.Len(t, o.Goals, 1)
			assert.Equal(t, types.StatusSkipped, o.Goals[0].Status)
		}
	}
}

func TestRun_CancellationBetweenGoals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	executor := lifecycle.GoalExecutorFunc(func(context.Context, lifecycle.GoalRequest) error {
		calls++
		cancel()
		return nil
	})

	b, err := lifecycle.Bind(types.PackagingPom, []types.Plugin{
		{ID: "exec", Executions: []types.Execution{exec("validate", "a", "one", "two")}},
	})
	require.NoError(t, err)

	e := lifecycle.NewExecution(module())
	err = lifecycle.NewRunner(executor, nil).Run(ctx, e, "validate", b, nil)
	require.ErrorIs(t, err, types.ErrCancelled)
	assert.Equal(t, 1, calls)

	o := e.Outcomes()[0]
	require.Len(t, o.Goals, 2)
	assert.Equal(t, types.StatusSucceeded, o.Goals[0].Status)
	assert.Equal(t, types.StatusSkipped, o.Goals[1].Status)
}

func TestRun_PropertiesReachExecutor(t *testing.T) {
	var got map[string]string
	executor := lifecycle.GoalExecutorFunc(func(_ context.Context, req lifecycle.GoalRequest) error {
		got = req.Properties
		return nil
	})
	b := lifecycle.Bindings{"validate": {{Plugin: "exec", Name: "run"}}}

	err := lifecycle.NewRunner(executor, nil).Run(context.Background(), lifecycle.NewExecution(module()), "validate", b,
		map[string]string{"project.version": "1.0"})
	require.NoError(t, err)
	assert.Equal(t, "1.0", got["project.version"])
}

func TestRun_ExecutorPanicIsGoalFailure(t *testing.T) {
	executor := lifecycle.GoalExecutorFunc(func(context.Context, lifecycle.GoalRequest) error {
		panic("plugin bug")
	})
	b := lifecycle.Bindings{"validate": {{Plugin: "exec", Name: "run"}}}

	err := lifecycle.NewRunner(executor, nil).Run(context.Background(), lifecycle.NewExecution(module()), "validate", b, nil)
	require.ErrorIs(t, err, types.ErrGoalFailure)
	assert.Contains(t, err.Error(), "plugin bug")
}

func goalNames(goals []types.Goal) []string {
	out := make([]string, len(goals))
	for i, g := range goals {
		out[i] = g.String()
	}
	return out
}

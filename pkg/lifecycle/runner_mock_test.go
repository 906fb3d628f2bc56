package lifecycle_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rcontext "github.com/poltergeist/reactor/pkg/context"
	"github.com/poltergeist/reactor/pkg/lifecycle"
	"github.com/poltergeist/reactor/pkg/mocks"
	"github.com/poltergeist/reactor/pkg/types"
)

// goalIs matches a GoalRequest by plugin:goal
type goalIs string

func (g goalIs) Matches(x interface{}) bool {
	req, ok := x.(lifecycle.GoalRequest)
	return ok && req.Goal.String() == string(g)
}

func (g goalIs) String() string {
	return fmt.Sprintf("goal %s", string(g))
}

func TestRun_ExecutorSeesGoalsInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockGoalExecutor(ctrl)

	b, err := lifecycle.Bind(types.PackagingJar, []types.Plugin{
		{ID: "exec", Executions: []types.Execution{exec("compile", "c", "run")}},
	})
	require.NoError(t, err)

	boom := errors.New("compilation failed")
	gomock.InOrder(
		executor.EXPECT().Execute(gomock.Any(), goalIs("dependency:resolve")).Return(nil),
		executor.EXPECT().Execute(gomock.Any(), goalIs("exec:run")).
			DoAndReturn(func(_ context.Context, req lifecycle.GoalRequest) error {
				assert.Equal(t, "compile", req.Phase)
				assert.Equal(t, "core", req.Module.Artifact)
				return boom
			}),
	)

	e := lifecycle.NewExecution(module())
	err = lifecycle.NewRunner(executor, nil).Run(context.Background(), e, "install", b, nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, lifecycle.StateFailed, e.State())
}

func TestRun_GoalContextCarriesTracing(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockGoalExecutor(ctrl)

	b, err := lifecycle.Bind(types.PackagingJar, nil)
	require.NoError(t, err)

	executor.EXPECT().Execute(gomock.Any(), goalIs("dependency:resolve")).
		DoAndReturn(func(ctx context.Context, _ lifecycle.GoalRequest) error {
			assert.Equal(t, "ses_1", rcontext.GetSessionID(ctx))
			assert.Equal(t, "core", rcontext.GetModule(ctx))
			assert.Equal(t, "validate", rcontext.GetPhase(ctx))
			assert.True(t, strings.HasPrefix(rcontext.GetInvocationID(ctx), "inv_"))
			time.Sleep(20 * time.Millisecond)
			return nil
		})

	ctx := rcontext.WithSessionID(context.Background(), "ses_1")
	e := lifecycle.NewExecution(module())
	require.NoError(t, lifecycle.NewRunner(executor, nil).Run(ctx, e, "validate", b, nil))

	outcomes := e.Outcomes()
	require.Len(t, outcomes, 1)
	assert.GreaterOrEqual(t, outcomes[0].Elapsed, 20*time.Millisecond)
	require.Len(t, outcomes[0].Goals, 1)
	assert.GreaterOrEqual(t, outcomes[0].Goals[0].Elapsed, 20*time.Millisecond)
}

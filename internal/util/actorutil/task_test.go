package actorutil

import (
	"errors"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taskOutcome struct {
	err error
}

func runInActor(t *testing.T, fn func(ctx actor.Context, sink *actor.PID)) any {
	as := actor.NewActorSystem()
	defer as.Shutdown()

	results := make(chan any, 1)
	sink := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		switch ctx.Message().(type) {
		case *actor.Started, *actor.Stopping, *actor.Stopped, *actor.Restarting:
		default:
			results <- ctx.Message()
		}
	}))
	as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		if _, ok := ctx.Message().(*actor.Started); ok {
			fn(ctx, sink)
		}
	}))

	select {
	case res := <-results:
		return res
	case <-time.After(3 * time.Second):
		require.FailNow(t, "no task result")
		return nil
	}
}

func TestBackgroundTaskPipesMappedResult(t *testing.T) {
	res := runInActor(t, func(ctx actor.Context, sink *actor.PID) {
		MapBackgroundTask(NewBackgroundTaskErr(ctx, func() error { return nil }), func(*struct{}) *taskOutcome {
			return &taskOutcome{}
		}).Recover(func(err error) taskOutcome {
			return taskOutcome{err: err}
		}).PipeTo(sink)
	})
	assert.Equal(t, taskOutcome{}, res)
}

func TestBackgroundTaskRecoversError(t *testing.T) {
	boom := errors.New("boom")
	res := runInActor(t, func(ctx actor.Context, sink *actor.PID) {
		MapBackgroundTask(NewBackgroundTaskErr(ctx, func() error { return boom }), func(*struct{}) *taskOutcome {
			return &taskOutcome{}
		}).Recover(func(err error) taskOutcome {
			return taskOutcome{err: err}
		}).PipeTo(sink)
	})
	require.IsType(t, taskOutcome{}, res)
	assert.ErrorIs(t, res.(taskOutcome).err, boom)
}

func TestBackgroundTaskTimeout(t *testing.T) {
	res := runInActor(t, func(ctx actor.Context, sink *actor.PID) {
		NewBackgroundTaskErr(ctx, func() error {
			time.Sleep(time.Second)
			return nil
		}).WithTimeout(50 * time.Millisecond).OnError(func(err error) {
			ctx.Send(sink, taskOutcome{err: err})
		}).Run()
	})
	require.IsType(t, taskOutcome{}, res)
	assert.Error(t, res.(taskOutcome).err)
}

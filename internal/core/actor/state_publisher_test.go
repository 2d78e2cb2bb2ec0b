package actor

import (
	"testing"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func collectBridgeEvents(as *actor.ActorSystem) chan domain.BridgeStateUpdateEvent {
	ch := make(chan domain.BridgeStateUpdateEvent, 16)
	as.EventStream.Subscribe(func(evt any) {
		if ev, ok := evt.(domain.BridgeStateUpdateEvent); ok {
			select {
			case ch <- ev:
			default:
			}
		}
	})
	return ch
}

func TestStatePublisherOnDemand(t *testing.T) {
	as := actor.NewActorSystem()
	defer as.Shutdown()
	bridge := collectBridgeEvents(as)

	reader := &fakeOperator{telemetry: true}
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewStatePublisherActor(reader, 0, as.EventStream, zap.Must(zap.NewDevelopment()))
	}))

	as.Root.Send(pid, domain.PublishStateRequest{})
	select {
	case ev := <-bridge:
		assert.True(t, ev.Value)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no bridge state published")
	}

	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(t, err)
	health := res.(domain.ActorHealthResponse)
	assert.True(t, health.Healthy)
	assert.Equal(t, "published 1", health.State)
}

func TestStatePublisherTicks(t *testing.T) {
	as := actor.NewActorSystem()
	defer as.Shutdown()
	bridge := collectBridgeEvents(as)

	as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewStatePublisherActor(&fakeOperator{}, 20*time.Millisecond, as.EventStream, zap.Must(zap.NewDevelopment()))
	}))

	for i := 0; i < 3; i++ {
		select {
		case <-bridge:
		case <-time.After(2 * time.Second):
			require.FailNow(t, "publisher did not tick")
		}
	}
}

package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/berfenger/surplus2wallbox/internal/core/events"
	"github.com/berfenger/surplus2wallbox/internal/core/port"
	. "github.com/berfenger/surplus2wallbox/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// StatePublisherActor periodically turns the system state into sensor events on the event stream.
type StatePublisherActor struct {
	behavior  actor.Behavior
	scheduler *scheduler.TimerScheduler

	reader      port.SystemStateReader
	interval    time.Duration
	eventStream *eventstream.EventStream
	published   uint64

	logger *zap.Logger
}

type publishTick struct {
}

func NewStatePublisherActor(reader port.SystemStateReader, interval time.Duration, eventStream *eventstream.EventStream, logger *zap.Logger) *StatePublisherActor {
	act := &StatePublisherActor{
		reader:      reader,
		interval:    interval,
		behavior:    actor.NewBehavior(),
		logger:      ActorLogger(domain.ACTOR_ID_STATE_PUBLISHER, logger),
		eventStream: eventStream,
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *StatePublisherActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *StatePublisherActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("statepublisher@default started", zap.Duration("interval", state.interval))
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		if state.interval > 0 {
			state.scheduler.RequestOnce(state.interval, ctx.Self(), publishTick{})
		}
	case *actor.Restarting:
	case domain.ActorHealthRequest:
		state.logger.Debug("statepublisher@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_STATE_PUBLISHER,
			Healthy: true,
			State:   fmt.Sprintf("published %d", state.published),
		})
	case publishTick:
		state.publish()
		// schedule next tick
		state.scheduler.RequestOnce(state.interval, ctx.Self(), publishTick{})
	case domain.PublishStateRequest:
		// out of band refresh after an operator action
		state.publish()
	default:
		state.logger.Debug("statepublisher@default: ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *StatePublisherActor) publish() {
	evs := events.SystemStateToUpdateEvents(state.reader.SystemState())
	for _, ev := range evs {
		state.eventStream.Publish(ev)
	}
	state.published++
	state.logger.Debug("statepublisher@default tick", zap.Int("events", len(evs)))
}

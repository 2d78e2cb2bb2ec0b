package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/berfenger/surplus2wallbox/internal/core/port"
	"github.com/berfenger/surplus2wallbox/internal/metrics"
	"github.com/berfenger/surplus2wallbox/internal/util/actorutil"
	"github.com/berfenger/surplus2wallbox/internal/util/clock"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/google/uuid"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

const notificationSendTimeout = 10 * time.Second

// MessageSender delivers a text message to the operator chat.
type MessageSender interface {
	SendMessage(ctx context.Context, text string) error
}

// NotifierActor serializes notification delivery. Every notification is published on the
// event stream; when a sender is configured it is also pushed to the operator chat.
type NotifierActor struct {
	actorutil.ActorWithStates
	stash       *actorutil.Stash
	sender      MessageSender
	eventStream *eventstream.EventStream
	clock       clock.Clock

	logger *zap.Logger
}

type notificationDelivered struct {
	notification domain.Notification
	err          error
}

func NewNotifierActor(sender MessageSender, eventStream *eventstream.EventStream, clk clock.Clock, logger *zap.Logger) *NotifierActor {
	act := &NotifierActor{
		stash:       &actorutil.Stash{},
		sender:      sender,
		eventStream: eventStream,
		clock:       clk,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_NOTIFIER, logger),
		ActorWithStates: actorutil.ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(NIdleState{actor: act})
	return act
}

func (state *NotifierActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Idle state

type NIdleState struct {
	actor *NotifierActor
}

func (state NIdleState) Name() string {
	return "idle"
}

func (state NIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("notifier@idle started", zap.Bool("chat", state.actor.sender != nil))
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_NOTIFIER,
			Healthy: true,
			State:   state.actor.StateName(),
		})
	case domain.NotificationRequest:
		n := state.actor.stamp(msg.Notification)
		state.actor.logger.Info("notifier@idle notification", zap.String("kind", string(n.Kind)), zap.String("message", n.Message))
		if state.actor.eventStream != nil {
			state.actor.eventStream.Publish(domain.NotificationRequest{Notification: n})
		}
		if state.actor.sender == nil {
			metrics.Notifications.With(string(n.Kind), "skipped").Add(1)
			return
		}
		state.actor.deliver(ctx, n)
		state.actor.BecomeStacked(NDeliveringState{actor: state.actor})
	default:
		state.actor.logger.Debug("notifier@idle ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Delivering state

type NDeliveringState struct {
	actor *NotifierActor
}

func (state NDeliveringState) Name() string {
	return "delivering"
}

func (state NDeliveringState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case notificationDelivered:
		if msg.err != nil {
			metrics.Notifications.With(string(msg.notification.Kind), "error").Add(1)
			state.actor.logger.Warn("notifier@delivering could not deliver notification",
				zap.String("kind", string(msg.notification.Kind)), zap.Error(msg.err))
		} else {
			metrics.Notifications.With(string(msg.notification.Kind), "ok").Add(1)
		}
		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashOldest(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_NOTIFIER,
			Healthy: true,
			State:   state.actor.StateName(),
		})
	default:
		state.actor.logger.Debug("notifier@delivering stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

func (state *NotifierActor) stamp(n domain.Notification) domain.Notification {
	if n.Id == "" {
		n.Id = uuid.NewString()
	}
	if n.Time.IsZero() {
		n.Time = state.clock.Now()
	}
	return n
}

func (state *NotifierActor) deliver(ctx actor.Context, n domain.Notification) {
	task := actorutil.NewBackgroundTaskErr(ctx, func() error {
		sendCtx, cancel := context.WithTimeout(context.Background(), notificationSendTimeout)
		defer cancel()
		return state.sender.SendMessage(sendCtx, n.Message)
	})
	actorutil.MapBackgroundTask(task, func(*struct{}) *notificationDelivered {
		return &notificationDelivered{notification: n}
	}).Recover(func(err error) notificationDelivered {
		logger.Error(err)
		return notificationDelivered{notification: n, err: err}
	}).WithTimeout(notificationSendTimeout + time.Second).PipeTo(ctx.Self())
}

// ActorNotifier adapts the notifier actor to port.Notifier. Notify never blocks.
type ActorNotifier struct {
	root *actor.RootContext
	pid  *actor.PID
}

var _ port.Notifier = (*ActorNotifier)(nil)

func NewActorNotifier(root *actor.RootContext, pid *actor.PID) *ActorNotifier {
	return &ActorNotifier{root: root, pid: pid}
}

func (n *ActorNotifier) Notify(notification domain.Notification) {
	n.root.Send(n.pid, domain.NotificationRequest{Notification: notification})
}

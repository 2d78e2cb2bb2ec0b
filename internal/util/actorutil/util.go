package actorutil

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/berfenger/surplus2wallbox/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps an MQTT command to an operator request.
// Unknown entities return (nil, nil).
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.OperatorRequest, error) {
	switch {
	case cmd.Command == mqtt.MQTT_COMMAND_SWITCH && cmd.DeviceId == domain.SWITCH_ID_WALLBOX_CHARGE:
		return domain.WallboxSwitchRequest{
			Enable: cmd.Payload == mqtt.MQTT_PAYLOAD_ON,
		}, nil
	case cmd.Command == mqtt.MQTT_COMMAND_NUMBER && cmd.DeviceId == domain.INPUT_NUMBER_ID_HEADROOM_POWER:
		value, err := parsePower(cmd.Payload)
		if err != nil {
			return nil, err
		}
		return domain.SetHeadroomPowerRequest{PowerWatt: value}, nil
	case cmd.Command == mqtt.MQTT_COMMAND_NUMBER && cmd.DeviceId == domain.INPUT_NUMBER_ID_PROTECTION_POWER:
		value, err := parsePower(cmd.Payload)
		if err != nil {
			return nil, err
		}
		return domain.SetProtectionPowerRequest{PowerWatt: value}, nil
	case cmd.Command == mqtt.MQTT_COMMAND_BUTTON && cmd.DeviceId == domain.BUTTON_ID_WALLBOX_REINITIALIZE:
		return domain.WallboxReinitializeRequest{}, nil
	}
	return nil, nil
}

func parsePower(payload string) (int, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("invalid power value %q", payload)
	}
	return int(math.Round(value)), nil
}

package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/config"
	"github.com/berfenger/surplus2wallbox/internal/core/port"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

// LogSource exposes the buffered log lines shown on the dashboard.
type LogSource interface {
	Lines() []string
}

type Server struct {
	port           uint
	httpLog        bool
	streamInterval time.Duration
	rootContext    *actor.RootContext
	masterActor    *actor.PID
	state          port.SystemStateReader
	logs           LogSource
	logger         *zap.Logger
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID,
	state port.SystemStateReader, logs LogSource, logger *zap.Logger) *http.Server {
	NewServer := &Server{
		port:           cfg.Port,
		rootContext:    rootContext,
		masterActor:    masterActor,
		httpLog:        cfg.HttpLog,
		streamInterval: time.Duration(cfg.Monitor.StreamIntervalMillis) * time.Millisecond,
		state:          state,
		logs:           logs,
		logger:         logger.With(zap.String("component", "http")),
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const streamWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type streamMessageDTO struct {
	Config settingsDTO `json:"config"`
	Status statusDTO   `json:"status"`
}

// StreamHandler pushes the current status every stream interval until the client goes away.
func (s *Server) StreamHandler(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("http@stream: upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	// reader loop only detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := s.streamInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state := s.state.SystemState()
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(streamMessageDTO{
			Config: toSettingsDTO(state.Config),
			Status: toStatusDTO(state),
		}); err != nil {
			s.logger.Debug("http@stream: client gone", zap.Error(err))
			return nil
		}
		select {
		case <-closed:
			return nil
		case <-c.Request().Context().Done():
			return nil
		case <-ticker.C:
		}
	}
}

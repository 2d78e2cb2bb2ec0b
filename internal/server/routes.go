package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/berfenger/surplus2wallbox/internal/core/service"

	"github.com/bsm/openmetrics"
	"github.com/bsm/openmetrics/omhttp"
	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const operatorRequestTimeout = 35 * time.Second

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/metrics", echo.WrapHandler(omhttp.NewHandler(openmetrics.DefaultRegistry())))

	api := e.Group("/api")
	api.GET("/data", s.DataHandler)
	api.GET("/version", s.VersionHandler)
	api.GET("/stream", s.StreamHandler)
	api.POST("/settings", s.SettingsHandler)
	api.POST("/wallbox/on", s.operatorHandler(func() domain.OperatorRequest {
		return domain.WallboxSwitchRequest{Enable: true}
	}))
	api.POST("/wallbox/off", s.operatorHandler(func() domain.OperatorRequest {
		return domain.WallboxSwitchRequest{Enable: false}
	}))
	api.POST("/wallbox/initialize", s.operatorHandler(func() domain.OperatorRequest {
		return domain.WallboxReinitializeRequest{}
	}))

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	} else if ok {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL ("+response.State+")")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) DataHandler(c echo.Context) error {
	state := s.state.SystemState()
	data := dataDTO{
		Config:  toSettingsDTO(state.Config),
		Status:  toStatusDTO(state),
		History: s.state.History(),
		Logs:    []string{},
	}
	if data.History == nil {
		data.History = []domain.HistoryEntry{}
	}
	if s.logs != nil {
		data.Logs = s.logs.Lines()
	}
	return c.JSON(http.StatusOK, data)
}

func (s *Server) VersionHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"version":  versioninfo.Short(),
		"revision": versioninfo.Revision,
		"modified": versioninfo.DirtyBuild,
		"time":     versioninfo.LastCommit,
	})
}

// SettingsHandler validates every present field first; nothing is applied unless all are valid.
func (s *Server) SettingsHandler(c echo.Context) error {
	var update settingsUpdateDTO
	if err := c.Bind(&update); err != nil {
		return c.JSON(http.StatusBadRequest, commandResultDTO{Error: "invalid body"})
	}

	var requests []domain.OperatorRequest
	var errs []error
	if update.HeadroomPower != nil {
		errs = append(errs, service.ValidateHeadroomPower(*update.HeadroomPower))
		requests = append(requests, domain.SetHeadroomPowerRequest{PowerWatt: *update.HeadroomPower})
	}
	if update.ProtectionPower != nil {
		errs = append(errs, service.ValidateProtectionPower(*update.ProtectionPower))
		requests = append(requests, domain.SetProtectionPowerRequest{PowerWatt: *update.ProtectionPower})
	}
	if err := errors.Join(errs...); err != nil {
		return c.JSON(http.StatusBadRequest, commandResultDTO{Error: err.Error()})
	}

	errs = nil
	for _, req := range requests {
		if err := s.requestOperator(req); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return c.JSON(statusForError(err), commandResultDTO{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, commandResultDTO{Success: true})
}

func (s *Server) operatorHandler(build func() domain.OperatorRequest) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := build()
		if err := s.requestOperator(req); err != nil {
			s.logger.Warn("http@operator: request failed", zap.Error(err))
			return c.JSON(statusForError(err), commandResultDTO{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, commandResultDTO{Success: true})
	}
}

func (s *Server) requestOperator(req domain.OperatorRequest) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, req, operatorRequestTimeout).Result()
	if err != nil {
		return err
	}
	resp, ok := res.(domain.OperatorResponse)
	if !ok {
		return errors.New("unexpected response")
	}
	return resp.GetResponseError()
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrCooldownActive):
		return http.StatusConflict
	case errors.Is(err, service.ErrSettingOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

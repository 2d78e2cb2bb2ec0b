// Package wallbox talks to the wallbox controller board over its HTTP button API.
package wallbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/berfenger/surplus2wallbox/internal/core/port"
)

var (
	ErrDeviceStatus     = errors.New("unexpected status code from wallbox")
	ErrUnknownPhaseMode = errors.New("wallbox status without phase mode")
)

type ClientConfig struct {
	Host           string        `mapstructure:"host"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	StatusTimeout  time.Duration `mapstructure:"status_timeout"`
}

type Client struct {
	HTTP   *http.Client
	Config ClientConfig
}

var _ port.WallboxDevice = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	return &Client{
		HTTP:   &http.Client{},
		Config: cfg,
	}
}

type status struct {
	PhaseMode json.RawMessage `json:"tfase"`
}

func (c *Client) Energize(ctx context.Context) error {
	return c.button(ctx, "i")
}

func (c *Client) Deenergize(ctx context.Context) error {
	return c.button(ctx, "o")
}

func (c *Client) SetPower(ctx context.Context, watts int) error {
	return c.button(ctx, "P"+strconv.Itoa(watts))
}

// QueryPhaseMode reads the installation type from the status document. "1" is three-phase.
func (c *Client) QueryPhaseMode(ctx context.Context) (domain.PhaseMode, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Config.StatusTimeout)
	defer cancel()

	resp, err := c.get(ctx, "")
	if err != nil {
		return domain.SinglePhase, err
	}
	defer resp.Body.Close()

	// we expect no valid response larger than 1mb
	var s status
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1024*1024)).Decode(&s); err != nil {
		return domain.SinglePhase, fmt.Errorf("failed to parse wallbox status: %w", err)
	}
	switch string(s.PhaseMode) {
	case "":
		return domain.SinglePhase, ErrUnknownPhaseMode
	case `"1"`, `1`:
		return domain.ThreePhase, nil
	default:
		return domain.SinglePhase, nil
	}
}

func (c *Client) button(ctx context.Context, btn string) error {
	ctx, cancel := context.WithTimeout(ctx, c.Config.CommandTimeout)
	defer cancel()

	resp, err := c.get(ctx, url.Values{"btn": {btn}}.Encode())
	if err != nil {
		return fmt.Errorf("btn=%s: %w", btn, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()
	return nil
}

func (c *Client) get(ctx context.Context, rawQuery string) (*http.Response, error) {
	u := url.URL{
		Scheme:   "http",
		Host:     c.Config.Host,
		Path:     "/index.json",
		RawQuery: rawQuery,
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to construct request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach wallbox: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", ErrDeviceStatus, resp.StatusCode)
	}
	return resp, nil
}

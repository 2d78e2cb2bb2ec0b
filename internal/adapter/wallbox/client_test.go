package wallbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBoard struct {
	mu      sync.Mutex
	buttons []string
	status  string
	code    int
	delay   time.Duration
}

func (b *fakeBoard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if r.URL.Path != "/index.json" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if btn := r.URL.Query().Get("btn"); btn != "" {
		b.buttons = append(b.buttons, btn)
	}
	if b.code != 0 {
		w.WriteHeader(b.code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(b.status))
}

func newTestClient(t *testing.T, board *fakeBoard) *Client {
	server := httptest.NewServer(board)
	t.Cleanup(server.Close)
	u, _ := url.Parse(server.URL)
	return NewClient(ClientConfig{Host: u.Host, CommandTimeout: time.Second, StatusTimeout: time.Second})
}

func TestButtons(t *testing.T) {
	board := &fakeBoard{status: `{}`}
	c := newTestClient(t, board)
	ctx := context.Background()

	require.NoError(t, c.SetPower(ctx, 1380))
	require.NoError(t, c.Energize(ctx))
	require.NoError(t, c.SetPower(ctx, 7360))
	require.NoError(t, c.Deenergize(ctx))
	assert.Equal(t, []string{"P1380", "i", "P7360", "o"}, board.buttons)
}

func TestButtonNonOKIsError(t *testing.T) {
	c := newTestClient(t, &fakeBoard{code: http.StatusInternalServerError})
	err := c.Energize(context.Background())
	assert.ErrorIs(t, err, ErrDeviceStatus)
}

func TestButtonTimeout(t *testing.T) {
	board := &fakeBoard{delay: 300 * time.Millisecond}
	c := newTestClient(t, board)
	c.Config.CommandTimeout = 50 * time.Millisecond
	assert.Error(t, c.Deenergize(context.Background()))
}

func TestQueryPhaseMode(t *testing.T) {
	cases := []struct {
		status string
		mode   domain.PhaseMode
		err    bool
	}{
		{`{"tfase":"1","pot":"7360"}`, domain.ThreePhase, false},
		{`{"tfase":1}`, domain.ThreePhase, false},
		{`{"tfase":"0"}`, domain.SinglePhase, false},
		{`{"tfase":"x"}`, domain.SinglePhase, false},
		{`{"other":true}`, domain.SinglePhase, true},
		{`not json`, domain.SinglePhase, true},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			c := newTestClient(t, &fakeBoard{status: tc.status})
			mode, err := c.QueryPhaseMode(context.Background())
			if tc.err {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.mode, mode)
		})
	}
}

func TestQueryPhaseModeUnreachable(t *testing.T) {
	c := NewClient(ClientConfig{Host: "127.0.0.1:1", CommandTimeout: time.Second, StatusTimeout: time.Second})
	mode, err := c.QueryPhaseMode(context.Background())
	assert.Error(t, err)
	assert.Equal(t, domain.SinglePhase, mode)
}

package telemetry

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/berfenger/surplus2wallbox/internal/util/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	mu       sync.Mutex
	readings []domain.Reading
}

func (h *recordingHandler) HandleReading(ctx context.Context, reading domain.Reading) domain.SurplusControlTickResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readings = append(h.readings, reading)
	return domain.SurplusControlTickResult{}
}

func (h *recordingHandler) kinds() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, r := range h.readings {
		out = append(out, domain.ReadingKind(r))
	}
	return out
}

// unicastListener returns a listener reading from a loopback socket instead of the multicast group.
func unicastListener(t *testing.T) (*Listener, net.Addr) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	l := NewListener(ListenerConfig{}, clock.NewManual(receivedAt), zap.Must(zap.NewDevelopment()))
	l.conn = conn
	return l, conn.LocalAddr()
}

func TestListenerDeliversInArrivalOrder(t *testing.T) {
	l, addr := unicastListener(t)
	handler := &recordingHandler{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, handler)
	}()

	sender, err := net.Dial("udp4", addr.String())
	require.NoError(t, err)
	defer sender.Close()
	for _, doc := range []string{electricityDoc, "not xml", solarDoc} {
		_, err := sender.Write([]byte(doc))
		require.NoError(t, err)
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return len(handler.kinds()) == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"phase", "unrecognized", "solar"}, handler.kinds())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

// panickyHandler panics on the first phase reading and records everything else.
type panickyHandler struct {
	recordingHandler
	panicked bool
}

func (h *panickyHandler) HandleReading(ctx context.Context, reading domain.Reading) domain.SurplusControlTickResult {
	if _, ok := reading.(domain.PhaseReading); ok && !h.panicked {
		h.panicked = true
		panic("controller blew up")
	}
	return h.recordingHandler.HandleReading(ctx, reading)
}

func TestListenerSurvivesHandlerPanic(t *testing.T) {
	l, addr := unicastListener(t)
	handler := &panickyHandler{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx, handler)

	sender, err := net.Dial("udp4", addr.String())
	require.NoError(t, err)
	defer sender.Close()
	for _, doc := range []string{electricityDoc, solarDoc, electricityDoc} {
		_, err := sender.Write([]byte(doc))
		require.NoError(t, err)
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return len(handler.kinds()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"solar", "phase"}, handler.kinds())
}

func TestListenerRunWithoutOpen(t *testing.T) {
	l := NewListener(ListenerConfig{}, clock.Real(), zap.Must(zap.NewDevelopment()))
	assert.Error(t, l.Run(context.Background(), &recordingHandler{}))
	assert.NoError(t, l.Close())
}

func TestListenerOpenRejectsBadConfig(t *testing.T) {
	logger := zap.Must(zap.NewDevelopment())

	l := NewListener(ListenerConfig{Group: "192.168.1.10", Port: 22600}, clock.Real(), logger)
	assert.Error(t, l.Open(), "not a multicast address")

	l = NewListener(ListenerConfig{Group: "224.192.32.19", Port: 22600, InterfaceIP: "not-an-ip"}, clock.Real(), logger)
	assert.Error(t, l.Open())

	l = NewListener(ListenerConfig{Group: "224.192.32.19", Port: 22600, InterfaceIP: "203.0.113.254"}, clock.Real(), logger)
	assert.Error(t, l.Open(), "no local interface owns this address")
}

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/berfenger/surplus2wallbox/internal/core/port"
	"github.com/berfenger/surplus2wallbox/internal/metrics"
	"github.com/berfenger/surplus2wallbox/internal/util/clock"
	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
)

const (
	maxDatagramSize = 65535
	readRetryDelay  = 500 * time.Millisecond
)

type ListenerConfig struct {
	Group string `mapstructure:"group"`
	Port  int    `mapstructure:"port"`
	// InterfaceIP selects the interface that joins the group. Empty means the system default.
	InterfaceIP string `mapstructure:"interface_ip"`
}

// Listener is the single telemetry ingress. Run must be called from one goroutine only.
type Listener struct {
	cfg    ListenerConfig
	clock  clock.Clock
	logger *zap.Logger

	mu   sync.Mutex
	conn net.PacketConn
}

func NewListener(cfg ListenerConfig, clk clock.Clock, logger *zap.Logger) *Listener {
	return &Listener{
		cfg:    cfg,
		clock:  clk,
		logger: logger.With(zap.String("component", "telemetry")),
	}
}

// Open binds the UDP port and joins the multicast group.
func (l *Listener) Open() error {
	group := net.ParseIP(l.cfg.Group)
	if group == nil || group.To4() == nil || !group.IsMulticast() {
		return fmt.Errorf("invalid multicast group %q", l.cfg.Group)
	}
	ifi, err := interfaceByIP(l.cfg.InterfaceIP)
	if err != nil {
		return err
	}

	conn, err := net.ListenPacket("udp4", fmt.Sprintf("0.0.0.0:%d", l.cfg.Port))
	if err != nil {
		return fmt.Errorf("bind udp port %d: %w", l.cfg.Port, err)
	}
	p := ipv4.NewPacketConn(conn)
	if err := p.JoinGroup(ifi, &net.UDPAddr{IP: group}); err != nil {
		conn.Close()
		return fmt.Errorf("join multicast group %s: %w", group, err)
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	l.logger.Info("telemetry@open: listening",
		zap.String("group", l.cfg.Group),
		zap.Int("port", l.cfg.Port),
		zap.String("interface_ip", l.cfg.InterfaceIP))
	return nil
}

// Run reads datagrams until ctx is done or the listener is closed. Every datagram,
// undecodable ones included, is handed to handler in arrival order.
func (l *Listener) Run(ctx context.Context, handler port.ReadingHandler) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return errors.New("listener not open")
	}

	stop := context.AfterFunc(ctx, func() {
		l.Close()
	})
	defer stop()

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				l.logger.Info("telemetry@run: listener stopped")
				return nil
			}
			l.logger.Warn("telemetry@run: read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(readRetryDelay):
			}
			continue
		}

		l.handleDatagram(ctx, buf[:n], addr, handler)
	}
}

// handleDatagram processes one datagram; a panic is logged and counted, never propagated.
func (l *Listener) handleDatagram(ctx context.Context, datagram []byte, addr net.Addr, handler port.ReadingHandler) {
	defer func() {
		if r := recover(); r != nil {
			metrics.TelemetryPanics.With().Add(1)
			l.logger.Error("telemetry@run: datagram processing panicked",
				zap.Stringer("from", addr),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	reading := Decode(datagram, l.clock.Now())
	if u, ok := reading.(domain.Unrecognized); ok {
		metrics.TelemetryDecodeFailures.With().Add(1)
		l.logger.Debug("telemetry@run: datagram discarded", zap.Stringer("from", addr), zap.Error(u.Reason))
	}
	handler.HandleReading(ctx, reading)
}

func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}

func interfaceByIP(ip string) (*net.Interface, error) {
	if ip == "" {
		return nil, nil
	}
	want := net.ParseIP(ip)
	if want == nil {
		return nil, fmt.Errorf("invalid interface ip %q", ip)
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.Equal(want) {
				return &ifaces[i], nil
			}
		}
	}
	return nil, fmt.Errorf("no interface with address %s", ip)
}

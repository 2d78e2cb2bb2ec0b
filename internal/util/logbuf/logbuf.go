// Package logbuf keeps the most recent log lines in memory for the dashboard.
package logbuf

import (
	"bytes"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/util/ringbuf"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Buffer struct {
	lines *ringbuf.Ringbuf[string]
}

func New(size int) *Buffer {
	return &Buffer{lines: ringbuf.NewRingbuf[string](size)}
}

// Write stores every non empty line of p. zapcore calls it once per entry.
func (b *Buffer) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(p, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		b.lines.Add(string(line))
	}
	return len(p), nil
}

func (b *Buffer) Sync() error {
	return nil
}

// Lines returns the buffered lines, oldest first.
func (b *Buffer) Lines() []string {
	return b.lines.Items()
}

// Core is a console formatted core writing into the buffer.
func (b *Buffer) Core(level zapcore.LevelEnabler) zapcore.Core {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), b, level)
}

// Tee returns a zap option that also sends every entry to the buffer.
func (b *Buffer) Tee(level zapcore.LevelEnabler) zap.Option {
	return zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, b.Core(level))
	})
}

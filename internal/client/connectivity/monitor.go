// Package connectivity answers "is the remote store reachable right now".
// The answer is cached and refreshed by polling, so IsOnline never blocks.
package connectivity

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/remote"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
)

type Checker interface {
	IsOnline() bool
}

// Static is a Checker with a fixed answer.
type Static bool

func (s Static) IsOnline() bool { return bool(s) }

const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 3 * time.Second
)

type Monitor struct {
	pinger   remote.Pinger
	interval time.Duration
	timeout  time.Duration
	logger   logging.Logger
	online   atomic.Bool
}

func NewMonitor(p remote.Pinger, interval, timeout time.Duration, logger logging.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Monitor{pinger: p, interval: interval, timeout: timeout, logger: logger}
}

func (m *Monitor) IsOnline() bool { return m.online.Load() }

// Check pings the remote once and updates the cached state.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.pinger.Ping(ctx)
	online := err == nil
	if prev := m.online.Swap(online); prev != online {
		if online {
			m.logger.Info(ctx, "remote store reachable")
		} else {
			m.logger.Warn(ctx, "remote store unreachable", "error", err)
		}
	}
	return online
}

// Run checks immediately and then every interval until ctx is done. onChange,
// when not nil, is called after each transition with the new state.
func (m *Monitor) Run(ctx context.Context, onChange func(online bool)) {
	last := m.Check(ctx)
	if onChange != nil {
		onChange(last)
	}

	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			now := m.Check(ctx)
			if now != last && onChange != nil {
				onChange(now)
			}
			last = now
		}
	}
}

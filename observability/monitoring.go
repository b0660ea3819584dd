package observability

import (
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// RelayStats aggregates the relay counters plus process self-metrics for the
// debug endpoint.
type RelayStats struct {
	OpenConnections  int64  `json:"open_connections"`
	AuthSucceeded    uint64 `json:"auth_succeeded"`
	AuthFailed       uint64 `json:"auth_failed"`
	MessagesRelayed  uint64 `json:"messages_relayed"`
	MessagesCensored uint64 `json:"messages_censored"`
	TypingRelayed    uint64 `json:"typing_relayed"`
	DeliveryDrops    uint64 `json:"delivery_drops"`

	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float32 `json:"mem_percent"`
	UptimeSecs int64   `json:"uptime_secs"`
}

// Monitor tracks relay activity with atomic counters; every hot-path update
// is lock-free.
type Monitor struct {
	log     *slog.Logger
	startAt time.Time
	proc    *process.Process

	openConnections  atomic.Int64
	authSucceeded    atomic.Uint64
	authFailed       atomic.Uint64
	messagesRelayed  atomic.Uint64
	messagesCensored atomic.Uint64
	typingRelayed    atomic.Uint64
	deliveryDrops    atomic.Uint64
}

func NewMonitor(log *slog.Logger) *Monitor {
	// Self-inspection failure is not fatal: counters still work, the
	// process metrics just stay at zero.
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process self-inspection unavailable", "err", err)
		proc = nil
	}

	return &Monitor{
		log:     log,
		startAt: time.Now(),
		proc:    proc,
	}
}

func (m *Monitor) ConnOpened()       { m.openConnections.Add(1) }
func (m *Monitor) ConnClosed()       { m.openConnections.Add(-1) }
func (m *Monitor) IncrAuthSuccess()  { m.authSucceeded.Add(1) }
func (m *Monitor) IncrAuthFailure()  { m.authFailed.Add(1) }
func (m *Monitor) IncrRelayed()      { m.messagesRelayed.Add(1) }
func (m *Monitor) IncrCensored()     { m.messagesCensored.Add(1) }
func (m *Monitor) IncrTyping()       { m.typingRelayed.Add(1) }
func (m *Monitor) IncrDeliveryDrop() { m.deliveryDrops.Add(1) }

// Snapshot assembles the current counters and process metrics.
func (m *Monitor) Snapshot() RelayStats {
	stats := RelayStats{
		OpenConnections:  m.openConnections.Load(),
		AuthSucceeded:    m.authSucceeded.Load(),
		AuthFailed:       m.authFailed.Load(),
		MessagesRelayed:  m.messagesRelayed.Load(),
		MessagesCensored: m.messagesCensored.Load(),
		TypingRelayed:    m.typingRelayed.Load(),
		DeliveryDrops:    m.deliveryDrops.Load(),
		UptimeSecs:       int64(time.Since(m.startAt).Seconds()),
	}

	if m.proc != nil {
		if cpu, err := m.proc.CPUPercent(); err == nil {
			stats.CPUPercent = cpu
		}
		if ram, err := m.proc.MemoryPercent(); err == nil {
			stats.MemPercent = ram
		}
	}

	return stats
}

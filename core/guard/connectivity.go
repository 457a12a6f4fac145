package guard

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/TTR-x/ttr-gestion-sub002/core"
)

// Static is a fixed connectivity state.
type Static bool

func (s Static) Online() bool { return bool(s) }

// Monitor tracks connectivity by probing a health URL.
type Monitor struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   core.Logger

	mu     sync.RWMutex
	online bool
	subs   map[int]chan bool
	nextID int
}

var _ Connectivity = (*Monitor)(nil)

func NewMonitor(url string, interval time.Duration, logger core.Logger) *Monitor {
	return &Monitor{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
		subs:     make(map[int]chan bool),
	}
}

func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe returns a channel receiving every connectivity change, and a func to stop receiving.
// Slow subscribers miss intermediate changes.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	ch := make(chan bool, 1)
	m.subs[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
}

// Probe checks the health URL once and updates the state.
func (m *Monitor) Probe(ctx context.Context) bool {
	online := m.probe(ctx)
	m.set(online)
	return online
}

// Run probes on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		m.logger.Error("connectivity: building probe request", err)
		return false
	}
	res, err := m.client.Do(req)
	if err != nil {
		return false
	}
	_ = res.Body.Close()
	return res.StatusCode < http.StatusInternalServerError
}

func (m *Monitor) set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return
	}
	m.online = online
	for _, ch := range m.subs {
		select {
		case <-ch: // drop the stale value
		default:
		}
		ch <- online
	}
}

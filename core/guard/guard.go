package guard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/TTR-x/ttr-gestion-sub002/core"
)

// Check results, as recorded by a Recorder.
const (
	ResultOnline  = "online"
	ResultAllowed = "offline_allowed"
	ResultBlocked = "offline_blocked"
)

var ErrBlockedOfflineMultiDevice = errors.New("offline writes are disabled while several devices share this account")

type (
	// Connectivity reports whether the remote backend is reachable.
	Connectivity interface {
		Online() bool
	}

	// DeviceCounter reads the last known number of devices of the business.
	DeviceCounter interface {
		KnownDeviceCount(ctx context.Context) (int, error)
	}

	// Notifier presents why a write was refused.
	Notifier interface {
		Explain(ctx context.Context, exp Explanation)
	}

	Recorder interface {
		RecordGuardCheck(result string)
	}

	Explanation struct {
		Title        string
		Message      string
		KnownDevices int
	}
)

// Guard decides whether a local write may proceed.
// Offline writes are only safe when a single device is known, since nothing reconciles concurrent offline edits.
// The decision is advisory: a stale device count can wrongly allow or block.
type Guard struct {
	conn     Connectivity
	counter  DeviceCounter
	notifier Notifier
	recorder Recorder
	logger   core.Logger
}

type Option func(*Guard)

func WithRecorder(r Recorder) Option {
	return func(g *Guard) { g.recorder = r }
}

func New(conn Connectivity, counter DeviceCounter, notifier Notifier, logger core.Logger, opts ...Option) *Guard {
	g := &Guard{
		conn:     conn,
		counter:  counter,
		notifier: notifier,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckWritePermission reports whether a write may proceed now. A refusal is explained once through
// the Notifier; nothing is queued or retried.
func (g *Guard) CheckWritePermission(ctx context.Context) bool {
	if g.conn.Online() {
		g.record(ResultOnline)
		return true
	}

	count, err := g.counter.KnownDeviceCount(ctx)
	if err != nil {
		g.logger.Warn("guard: reading known device count", err)
		g.block(ctx, -1)
		return false
	}
	if count > 1 {
		g.block(ctx, count)
		return false
	}

	g.record(ResultAllowed)
	return true
}

// Require is CheckWritePermission for callers that propagate errors.
func (g *Guard) Require(ctx context.Context) error {
	if !g.CheckWritePermission(ctx) {
		return ErrBlockedOfflineMultiDevice
	}
	return nil
}

func (g *Guard) block(ctx context.Context, count int) {
	g.record(ResultBlocked)
	g.notifier.Explain(ctx, explain(count))
}

func (g *Guard) record(result string) {
	if g.recorder != nil {
		g.recorder.RecordGuardCheck(result)
	}
}

func explain(count int) Explanation {
	msg := "You are offline and this account is used on several devices. " +
		"Changes made offline could overwrite work done elsewhere, so they are disabled until the connection comes back. " +
		"To work offline on this device only, confirm a device override from the settings."
	if count < 0 {
		msg = "You are offline and the number of devices using this account could not be checked. " +
			"Changes are disabled until the connection comes back."
	}
	return Explanation{
		Title:        "Offline changes disabled",
		Message:      msg,
		KnownDevices: count,
	}
}

// WriterNotifier prints explanations to W.
type WriterNotifier struct {
	W  io.Writer
	mu sync.Mutex
}

func (n *WriterNotifier) Explain(_ context.Context, exp Explanation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintf(n.W, "%s\n%s\n", exp.Title, exp.Message)
	if exp.KnownDevices > 0 {
		_, _ = fmt.Fprintf(n.W, "Known devices: %d\n", exp.KnownDevices)
	}
}

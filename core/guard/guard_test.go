package guard_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/guard"
	logsvc "github.com/TTR-x/ttr-gestion-sub002/services/logger"
	"github.com/TTR-x/ttr-gestion-sub002/storage/localcache"
)

type fixedCounter struct {
	n   int
	err error
}

func (c fixedCounter) KnownDeviceCount(context.Context) (int, error) { return c.n, c.err }

type notifierMock struct {
	explained []guard.Explanation
}

func (n *notifierMock) Explain(_ context.Context, exp guard.Explanation) {
	n.explained = append(n.explained, exp)
}

type recorderMock []string

func (r *recorderMock) RecordGuardCheck(result string) { *r = append(*r, result) }

func TestGuard_CheckWritePermission(t *testing.T) {
	logger := logsvc.NewDiscardLogger(core.NewTestConfig())

	tests := []struct {
		name       string
		online     bool
		counter    fixedCounter
		want       bool
		wantResult string
		wantNotice bool
		wantCount  int
	}{
		{name: "online, several devices", online: true, counter: fixedCounter{n: 5}, want: true, wantResult: guard.ResultOnline},
		{name: "offline, no device known yet", counter: fixedCounter{n: 0}, want: true, wantResult: guard.ResultAllowed},
		{name: "offline, single device", counter: fixedCounter{n: 1}, want: true, wantResult: guard.ResultAllowed},
		{name: "offline, two devices", counter: fixedCounter{n: 2}, wantResult: guard.ResultBlocked, wantNotice: true, wantCount: 2},
		{name: "offline, unreadable counter", counter: fixedCounter{err: errors.New("disk I/O error")}, wantResult: guard.ResultBlocked, wantNotice: true, wantCount: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &notifierMock{}
			var rec recorderMock
			g := guard.New(guard.Static(tt.online), tt.counter, notifier, logger, guard.WithRecorder(&rec))

			assert.Equal(t, tt.want, g.CheckWritePermission(context.Background()))
			assert.Equal(t, recorderMock{tt.wantResult}, rec)
			if tt.wantNotice {
				require.Len(t, notifier.explained, 1)
				assert.Equal(t, "Offline changes disabled", notifier.explained[0].Title)
				assert.Equal(t, tt.wantCount, notifier.explained[0].KnownDevices)
			} else {
				assert.Empty(t, notifier.explained)
			}

			err := g.Require(context.Background())
			if tt.want {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, guard.ErrBlockedOfflineMultiDevice, err)
			}
		})
	}
}

func TestGuard_WithLocalCache(t *testing.T) {
	ctx := context.Background()
	logger := logsvc.NewDiscardLogger(core.NewTestConfig())

	store, err := localcache.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	var out bytes.Buffer
	g := guard.New(guard.Static(false), store, &guard.WriterNotifier{W: &out}, logger)

	assert.True(t, g.CheckWritePermission(ctx), "never synced")

	require.NoError(t, store.SetKnownDeviceCount(ctx, 3))
	assert.False(t, g.CheckWritePermission(ctx))
	assert.Contains(t, out.String(), "Offline changes disabled\n")
	assert.Contains(t, out.String(), "Known devices: 3\n")

	// nothing is retried: a later allowed check does not print again
	out.Reset()
	require.NoError(t, store.SetKnownDeviceCount(ctx, 1))
	assert.True(t, g.CheckWritePermission(ctx))
	assert.Empty(t, out.String())
}

func TestWriterNotifier_UnknownCount(t *testing.T) {
	var out bytes.Buffer
	n := &guard.WriterNotifier{W: &out}
	n.Explain(context.Background(), guard.Explanation{Title: "T", Message: "M", KnownDevices: -1})
	assert.Equal(t, "T\nM\n", out.String())
}

package signal

import (
	"context"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/edgemeet/huddle/internal/app"
	"github.com/edgemeet/huddle/internal/config"
	"github.com/edgemeet/huddle/internal/core/coretest"
)

func newKeepaliveController(t *testing.T, period time.Duration) *Controller {
	t.Helper()
	registry := app.NewRegistry(coretest.NewFakeProvider())
	t.Cleanup(registry.CloseAll)
	return NewController(&config.Config{PingPeriod: period}, registry)
}

func pingCount(t *testing.T, sig *coretest.FakeSignal) int {
	t.Helper()
	n := 0
	for _, note := range notes(t, sig) {
		if note.Method == "ping" {
			n++
		}
	}
	return n
}

func TestKeepalive(t *testing.T) {
	t.Run("pings carry a timestamp", func(t *testing.T) {
		ctl := newKeepaliveController(t, 5*time.Millisecond)
		_, sig := attach(t, ctl, "r1", "alice")

		require.Eventually(t, func() bool { return pingCount(t, sig) > 0 }, time.Second, time.Millisecond)

		before := time.Now().Add(-time.Minute).UnixMilli()
		for _, n := range notes(t, sig) {
			if n.Method != "ping" {
				continue
			}
			var ev pingEvent
			require.NoError(t, json.Unmarshal(n.Data, &ev))
			require.Greater(t, ev.Timestamp, before)
		}
	})

	t.Run("the timer dies with the session context", func(t *testing.T) {
		ctl := newKeepaliveController(t, 2*time.Millisecond)
		sig := coretest.NewFakeSignal()
		ctx, cancel := context.WithCancel(context.Background())

		_, err := ctl.attachPeer(ctx, "r1", "alice", sig)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return pingCount(t, sig) > 0 }, time.Second, time.Millisecond)

		cancel()
		time.Sleep(10 * time.Millisecond)
		settled := pingCount(t, sig)
		time.Sleep(20 * time.Millisecond)
		require.Equal(t, settled, pingCount(t, sig))
	})

	t.Run("the timer stops once the peer is detached", func(t *testing.T) {
		ctl := newKeepaliveController(t, 2*time.Millisecond)
		sess, sig := attach(t, ctl, "r1", "alice")
		require.Eventually(t, func() bool { return pingCount(t, sig) > 0 }, time.Second, time.Millisecond)

		ctl.detachPeer(sess)
		time.Sleep(10 * time.Millisecond)
		settled := pingCount(t, sig)
		time.Sleep(20 * time.Millisecond)
		require.Equal(t, settled, pingCount(t, sig))
	})

	t.Run("a displaced connection stops receiving pings", func(t *testing.T) {
		ctl := newKeepaliveController(t, 2*time.Millisecond)
		_, sigOld := attach(t, ctl, "r1", "alice")
		_, sigNew := attach(t, ctl, "r1", "alice")

		require.Eventually(t, func() bool { return pingCount(t, sigNew) > 0 }, time.Second, time.Millisecond)

		time.Sleep(10 * time.Millisecond)
		settled := pingCount(t, sigOld)
		time.Sleep(20 * time.Millisecond)
		require.Equal(t, settled, pingCount(t, sigOld))
	})
}

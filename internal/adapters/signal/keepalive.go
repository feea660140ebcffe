package signal

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultPingPeriod = 20 * time.Second

type pingEvent struct {
	Timestamp int64 `json:"timestamp"`
}

// startKeepalive pings the peer at a fixed interval. The timer dies with the
// session context and also self-cancels if the peer is no longer registered
// under this connection, so a reconnected peer id always gets a fresh timer.
func (ctl *Controller) startKeepalive(ctx context.Context, sess *session) {
	period := ctl.cfg.PingPeriod
	if period <= 0 {
		period = defaultPingPeriod
	}

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				room, ok := ctl.registry.Room(sess.roomID)
				if !ok {
					return
				}
				p, ok := room.Participant(sess.peerID)
				if !ok || p.Signal() != sess.conn {
					return
				}
				frame, err := encodeNotification("ping", pingEvent{Timestamp: time.Now().UnixMilli()})
				if err != nil {
					return
				}
				if err := sess.conn.TrySend(frame); err != nil {
					log.Debug().Err(err).Str("module", "signal").Str("peer", string(sess.peerID)).Msg("keepalive send")
				}
			}
		}
	}()
}

package signal

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/edgemeet/huddle/internal/app"
	"github.com/edgemeet/huddle/internal/config"
	"github.com/edgemeet/huddle/internal/core"
	"github.com/edgemeet/huddle/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller drives the signaling protocol for every connected peer.
type Controller struct {
	cfg      *config.Config
	registry *app.Registry
	validate *validator.Validate
}

func NewController(cfg *config.Config, registry *app.Registry) *Controller {
	return &Controller{
		cfg:      cfg,
		registry: registry,
		validate: validator.New(),
	}
}

// session identifies one accepted connection. The conn field pins identity:
// a reconnect under the same peer id is a different session.
type session struct {
	roomID domain.RoomID
	peerID domain.PeerID
	conn   core.SignalConnection
}

// HandleSignal accepts a signaling websocket. Both query parameters are
// validated before any room or participant state is touched.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	roomID, err := domain.ParseRoomID(c.Query("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	peerID, err := domain.ParsePeerID(c.Query("peerId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Info().Str("module", "signal").Str("room", string(roomID)).Str("peer", string(peerID)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.cfg.ReadLimit)
	}

	conn := newPeerConn(ws)
	peerCtx, cancel := context.WithCancel(ctx)
	go ctl.writePump(peerCtx, conn)

	sess, err := ctl.attachPeer(peerCtx, roomID, peerID, conn)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("room", string(roomID)).Str("peer", string(peerID)).Msg("attach peer")
		cancel()
		conn.Close()
		return
	}

	go func() {
		ctl.readPump(peerCtx, sess, conn)
		cancel()
		ctl.detachPeer(sess)
	}()
}

// attachPeer registers the peer in its room: get-or-create the room, displace
// any stale peer holding the same id, insert the participant, announce it to
// the others, then replay existing producers to the newcomer and start its
// keepalive. The join announcement goes out before the replay so the roster
// is never behind the media state.
func (ctl *Controller) attachPeer(ctx context.Context, roomID domain.RoomID, peerID domain.PeerID, conn core.SignalConnection) (*session, error) {
	room, err := ctl.registry.GetOrCreate(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if prev, ok := room.Participant(peerID); ok {
		log.Info().Str("module", "signal").Str("room", string(roomID)).Str("peer", string(peerID)).Msg("displacing stale peer")
		prev.Signal().Close()
		ctl.registry.RemoveParticipant(roomID, peerID)
		// the displaced peer may have been the last one, closing the room
		room, err = ctl.registry.GetOrCreate(ctx, roomID)
		if err != nil {
			return nil, err
		}
	}

	if _, err := ctl.registry.AddParticipant(roomID, peerID, conn); err != nil {
		return nil, err
	}
	sess := &session{roomID: roomID, peerID: peerID, conn: conn}

	ctl.Broadcast(roomID, "participantJoined", peerEvent{PeerID: peerID}, peerID)
	replayed := ctl.ReplayProducersTo(roomID, peerID)
	log.Info().Str("module", "signal").Str("room", string(roomID)).Str("peer", string(peerID)).Int("replayed", replayed).Msg("peer attached")

	ctl.startKeepalive(ctx, sess)
	return sess, nil
}

// detachPeer runs when a connection dies. It only removes the participant if
// the session still owns the registration; a displaced connection must not
// tear down its successor.
func (ctl *Controller) detachPeer(sess *session) {
	defer sess.conn.Close()

	room, ok := ctl.registry.Room(sess.roomID)
	if ok {
		if p, found := room.Participant(sess.peerID); found && p.Signal() != sess.conn {
			return
		}
	}

	if ctl.registry.RemoveParticipant(sess.roomID, sess.peerID) {
		ctl.Broadcast(sess.roomID, "participantLeft", peerEvent{PeerID: sess.peerID})
		log.Info().Str("module", "signal").Str("room", string(sess.roomID)).Str("peer", string(sess.peerID)).Msg("peer detached")
	}
}

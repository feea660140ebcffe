package signal

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/edgemeet/huddle/internal/app"
	"github.com/edgemeet/huddle/internal/core"
	"github.com/edgemeet/huddle/internal/domain"
)

var (
	errParticipantGone   = errors.New("participant not registered")
	errTransportNotFound = errors.New("transport not found")
	errProducerNotFound  = errors.New("producer not found")
	errConsumerNotFound  = errors.New("consumer not found")
)

func (ctl *Controller) handleRequest(ctx context.Context, sess *session, req *request) response {
	result, err := ctl.dispatch(ctx, sess, req)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("peer", string(sess.peerID)).Str("method", req.Method).Msg("request rejected")
		return response{ID: req.ID, OK: false, Error: err.Error()}
	}
	return response{ID: req.ID, OK: true, Data: result}
}

func (ctl *Controller) dispatch(ctx context.Context, sess *session, req *request) (any, error) {
	switch req.Method {
	case "ping":
		return ctl.handlePing()
	case "getRouterRtpCapabilities":
		return ctl.handleRouterRtpCapabilities(sess)
	case "join":
		return ctl.handleJoin(sess)
	case "getParticipants":
		return ctl.handleGetParticipants(sess)
	case "createWebRtcTransport":
		return ctl.handleCreateTransport(ctx, sess, req.Data)
	case "connectWebRtcTransport":
		return ctl.handleConnectTransport(ctx, sess, req.Data)
	case "produce":
		return ctl.handleProduce(ctx, sess, req.Data)
	case "consume":
		return ctl.handleConsume(ctx, sess, req.Data)
	case "resumeConsumer":
		return ctl.handleResumeConsumer(ctx, sess, req.Data)
	case "pauseConsumer":
		return ctl.handlePauseConsumer(ctx, sess, req.Data)
	case "closeConsumer":
		return ctl.handleCloseConsumer(sess, req.Data)
	case "closeProducer":
		return ctl.handleCloseProducer(sess, req.Data)
	default:
		return nil, fmt.Errorf("unknown method %q", req.Method)
	}
}

// participant resolves the session against live room state. Every media
// handler goes through here, so id lookups are always scoped to the caller.
func (ctl *Controller) participant(sess *session) (*app.Room, *app.Participant, error) {
	room, ok := ctl.registry.Room(sess.roomID)
	if !ok {
		return nil, nil, app.ErrRoomNotFound
	}
	p, ok := room.Participant(sess.peerID)
	if !ok {
		return nil, nil, errParticipantGone
	}
	return room, p, nil
}

// decode unmarshals and validates a request payload before any state changes.
func (ctl *Controller) decode(data core.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing request data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("bad payload: %w", err)
	}
	if err := ctl.validate.Struct(v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

type pongData struct {
	Pong bool `json:"pong"`
}

func (ctl *Controller) handlePing() (any, error) {
	return pongData{Pong: true}, nil
}

type capabilitiesData struct {
	RtpCapabilities core.RawMessage `json:"rtpCapabilities"`
}

func (ctl *Controller) handleRouterRtpCapabilities(sess *session) (any, error) {
	room, _, err := ctl.participant(sess)
	if err != nil {
		return nil, err
	}
	if room.Router() == nil {
		return nil, errors.New("room has no router")
	}
	return capabilitiesData{RtpCapabilities: room.Router().RtpCapabilities()}, nil
}

type rosterData struct {
	Peers []domain.PeerID `json:"peers"`
}

// handleJoin returns the current roster; joining implies no media publication.
func (ctl *Controller) handleJoin(sess *session) (any, error) {
	room, _, err := ctl.participant(sess)
	if err != nil {
		return nil, err
	}
	return rosterData{Peers: room.PeerIDs(sess.peerID)}, nil
}

func (ctl *Controller) handleGetParticipants(sess *session) (any, error) {
	room, _, err := ctl.participant(sess)
	if err != nil {
		return nil, err
	}
	return rosterData{Peers: room.PeerIDs()}, nil
}

package signal

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/edgemeet/huddle/internal/core"
	"github.com/edgemeet/huddle/internal/domain"
)

type createTransportPayload struct {
	Producing bool `json:"producing"`
	Consuming bool `json:"consuming"`
}

func (ctl *Controller) handleCreateTransport(ctx context.Context, sess *session, data core.RawMessage) (any, error) {
	var pl createTransportPayload
	if err := ctl.decode(data, &pl); err != nil {
		return nil, err
	}
	if !pl.Producing && !pl.Consuming {
		return nil, errors.New("transport must be producing or consuming")
	}

	room, p, err := ctl.participant(sess)
	if err != nil {
		return nil, err
	}

	t, err := room.Router().CreateWebRtcTransport(ctx, core.TransportOptions{
		Producing: pl.Producing,
		Consuming: pl.Consuming,
	})
	if err != nil {
		return nil, err
	}
	p.AddTransport(t)

	log.Info().Str("module", "signal").Str("peer", string(sess.peerID)).Str("transport", t.ID()).
		Bool("producing", pl.Producing).Bool("consuming", pl.Consuming).Msg("transport created")
	return t.Info(), nil
}

type connectTransportPayload struct {
	TransportID    string          `json:"transportId" validate:"required"`
	DtlsParameters core.RawMessage `json:"dtlsParameters" validate:"required"`
}

func (ctl *Controller) handleConnectTransport(ctx context.Context, sess *session, data core.RawMessage) (any, error) {
	var pl connectTransportPayload
	if err := ctl.decode(data, &pl); err != nil {
		return nil, err
	}

	_, p, err := ctl.participant(sess)
	if err != nil {
		return nil, err
	}
	t, ok := p.Transport(pl.TransportID)
	if !ok {
		return nil, errTransportNotFound
	}
	if err := t.Connect(ctx, pl.DtlsParameters); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

type producePayload struct {
	TransportID   string           `json:"transportId" validate:"required"`
	Kind          domain.MediaKind `json:"kind" validate:"required,oneof=audio video"`
	RtpParameters core.RawMessage  `json:"rtpParameters" validate:"required"`
	AppData       domain.AppData   `json:"appData"`
}

type produceData struct {
	ProducerID string `json:"producerId"`
}

// peerEvent announces roster changes.
type peerEvent struct {
	PeerID domain.PeerID `json:"peerId"`
}

// producerEvent announces a producer other peers may now consume.
type producerEvent struct {
	PeerID     domain.PeerID    `json:"peerId"`
	ProducerID string           `json:"producerId"`
	Kind       domain.MediaKind `json:"kind"`
	AppData    domain.AppData   `json:"appData,omitempty"`
}

type screenEvent struct {
	PeerID     domain.PeerID `json:"peerId"`
	ProducerID string        `json:"producerId"`
}

func (ctl *Controller) handleProduce(ctx context.Context, sess *session, data core.RawMessage) (any, error) {
	var pl producePayload
	if err := ctl.decode(data, &pl); err != nil {
		return nil, err
	}

	_, p, err := ctl.participant(sess)
	if err != nil {
		return nil, err
	}
	t, ok := p.Transport(pl.TransportID)
	if !ok {
		return nil, errTransportNotFound
	}

	producer, err := t.Produce(ctx, core.ProduceOptions{
		Kind:          pl.Kind,
		RtpParameters: pl.RtpParameters,
		AppData:       pl.AppData,
	})
	if err != nil {
		return nil, err
	}
	p.AddProducer(producer)

	log.Info().Str("module", "signal").Str("peer", string(sess.peerID)).Str("producer", producer.ID()).
		Str("kind", string(pl.Kind)).Str("mediaType", pl.AppData.MediaType()).Msg("producer created")

	ctl.Broadcast(sess.roomID, "newProducer", producerEvent{
		PeerID:     sess.peerID,
		ProducerID: producer.ID(),
		Kind:       producer.Kind(),
		AppData:    producer.AppData(),
	}, sess.peerID)
	if pl.AppData.IsScreenShare() {
		ctl.Broadcast(sess.roomID, "screenSharingStarted", screenEvent{
			PeerID:     sess.peerID,
			ProducerID: producer.ID(),
		}, sess.peerID)
	}

	return produceData{ProducerID: producer.ID()}, nil
}

type consumePayload struct {
	TransportID     string          `json:"transportId" validate:"required"`
	ProducerID      string          `json:"producerId" validate:"required"`
	RtpCapabilities core.RawMessage `json:"rtpCapabilities" validate:"required"`
}

type consumeData struct {
	ConsumerID    string           `json:"consumerId"`
	ProducerID    string           `json:"producerId"`
	Kind          domain.MediaKind `json:"kind"`
	RtpParameters core.RawMessage  `json:"rtpParameters"`
}

func (ctl *Controller) handleConsume(ctx context.Context, sess *session, data core.RawMessage) (any, error) {
	var pl consumePayload
	if err := ctl.decode(data, &pl); err != nil {
		return nil, err
	}

	room, p, err := ctl.participant(sess)
	if err != nil {
		return nil, err
	}

	ok, err := room.Router().CanConsume(ctx, pl.ProducerID, pl.RtpCapabilities)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("cannot consume producer %q", pl.ProducerID)
	}

	t, found := p.Transport(pl.TransportID)
	if !found {
		return nil, errTransportNotFound
	}

	// Consumers always start paused; the client resumes once its transport
	// is connected.
	consumer, err := t.Consume(ctx, core.ConsumeOptions{
		ProducerID:      pl.ProducerID,
		RtpCapabilities: pl.RtpCapabilities,
		Paused:          true,
	})
	if err != nil {
		return nil, err
	}
	p.AddConsumer(consumer)

	log.Info().Str("module", "signal").Str("peer", string(sess.peerID)).Str("consumer", consumer.ID()).
		Str("producer", pl.ProducerID).Msg("consumer created")

	return consumeData{
		ConsumerID:    consumer.ID(),
		ProducerID:    consumer.ProducerID(),
		Kind:          consumer.Kind(),
		RtpParameters: consumer.RtpParameters(),
	}, nil
}

type consumerIDPayload struct {
	ConsumerID string `json:"consumerId" validate:"required"`
}

func (ctl *Controller) handleResumeConsumer(ctx context.Context, sess *session, data core.RawMessage) (any, error) {
	var pl consumerIDPayload
	if err := ctl.decode(data, &pl); err != nil {
		return nil, err
	}
	_, p, err := ctl.participant(sess)
	if err != nil {
		return nil, err
	}
	c, ok := p.Consumer(pl.ConsumerID)
	if !ok {
		return nil, errConsumerNotFound
	}
	if err := c.Resume(ctx); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func (ctl *Controller) handlePauseConsumer(ctx context.Context, sess *session, data core.RawMessage) (any, error) {
	var pl consumerIDPayload
	if err := ctl.decode(data, &pl); err != nil {
		return nil, err
	}
	_, p, err := ctl.participant(sess)
	if err != nil {
		return nil, err
	}
	c, ok := p.Consumer(pl.ConsumerID)
	if !ok {
		return nil, errConsumerNotFound
	}
	if err := c.Pause(ctx); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func (ctl *Controller) handleCloseConsumer(sess *session, data core.RawMessage) (any, error) {
	var pl consumerIDPayload
	if err := ctl.decode(data, &pl); err != nil {
		return nil, err
	}
	_, p, err := ctl.participant(sess)
	if err != nil {
		return nil, err
	}
	c, ok := p.Consumer(pl.ConsumerID)
	if !ok {
		return nil, errConsumerNotFound
	}
	if err := c.Close(); err != nil {
		return nil, err
	}
	p.RemoveConsumer(pl.ConsumerID)
	return struct{}{}, nil
}

type producerIDPayload struct {
	ProducerID string `json:"producerId" validate:"required"`
}

func (ctl *Controller) handleCloseProducer(sess *session, data core.RawMessage) (any, error) {
	var pl producerIDPayload
	if err := ctl.decode(data, &pl); err != nil {
		return nil, err
	}
	_, p, err := ctl.participant(sess)
	if err != nil {
		return nil, err
	}
	producer, ok := p.Producer(pl.ProducerID)
	if !ok {
		return nil, errProducerNotFound
	}

	screen := producer.AppData().IsScreenShare()
	if err := producer.Close(); err != nil {
		return nil, err
	}
	p.RemoveProducer(pl.ProducerID)

	log.Info().Str("module", "signal").Str("peer", string(sess.peerID)).Str("producer", pl.ProducerID).Msg("producer closed")
	if screen {
		ctl.Broadcast(sess.roomID, "screenSharingStopped", screenEvent{
			PeerID:     sess.peerID,
			ProducerID: pl.ProducerID,
		}, sess.peerID)
	}
	return struct{}{}, nil
}

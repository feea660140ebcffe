package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/edgemeet/huddle/internal/core"
	"github.com/edgemeet/huddle/internal/domain"
)

var (
	ErrRouterClosed    = errors.New("router closed")
	ErrTransportClosed = errors.New("transport closed")
)

// router is the engine-side handle for a room's routing context.
// Closing it cascades into every transport, producer and consumer below it;
// the worker performs the same cascade remotely on router.close.
type router struct {
	id              string
	worker          *Worker
	rtpCapabilities core.RawMessage

	mu         sync.Mutex
	closed     bool
	transports map[string]*transport
}

func (r *router) ID() string                       { return r.id }
func (r *router) RtpCapabilities() core.RawMessage { return r.rtpCapabilities }

func (r *router) CreateWebRtcTransport(ctx context.Context, opts core.TransportOptions) (core.Transport, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRouterClosed
	}
	r.mu.Unlock()

	transportID := uuid.NewString()
	var res createTransportResponse
	err := r.worker.conn.Call(ctx, methodCreateTransport, createTransportRequest{
		RouterID:    r.id,
		TransportID: transportID,
		ListenIP:    r.worker.cfg.ListenIP,
		AnnouncedIP: r.worker.cfg.AnnouncedIP,
		Producing:   opts.Producing,
		Consuming:   opts.Consuming,
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("create webrtc transport: %w", err)
	}

	t := &transport{
		id:     transportID,
		router: r,
		info: core.TransportInfo{
			ID:             transportID,
			IceParameters:  res.IceParameters,
			IceCandidates:  res.IceCandidates,
			DtlsParameters: res.DtlsParameters,
		},
		producers: make(map[string]*producer),
		consumers: make(map[string]*consumer),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = t.Close()
		return nil, ErrRouterClosed
	}
	r.transports[transportID] = t
	r.mu.Unlock()
	return t, nil
}

func (r *router) CanConsume(ctx context.Context, producerID string, rtpCapabilities core.RawMessage) (bool, error) {
	var res canConsumeResponse
	err := r.worker.conn.Call(ctx, methodCanConsume, canConsumeRequest{
		RouterID:        r.id,
		ProducerID:      producerID,
		RtpCapabilities: rtpCapabilities,
	}, &res)
	if err != nil {
		return false, fmt.Errorf("canConsume producer %q: %w", producerID, err)
	}
	return res.CanConsume, nil
}

func (r *router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	children := make([]*transport, 0, len(r.transports))
	for _, t := range r.transports {
		children = append(children, t)
	}
	r.transports = make(map[string]*transport)
	r.mu.Unlock()

	for _, t := range children {
		t.parentClosed()
	}

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := r.worker.conn.Call(ctx, methodCloseRouter, closeRouterRequest{RouterID: r.id}, nil); err != nil {
		return fmt.Errorf("close router %q: %w", r.id, err)
	}
	return nil
}

func (r *router) removeTransport(id string) {
	r.mu.Lock()
	delete(r.transports, id)
	r.mu.Unlock()
}

type transport struct {
	id     string
	router *router
	info   core.TransportInfo

	mu        sync.Mutex
	closed    bool
	producers map[string]*producer
	consumers map[string]*consumer
}

func (t *transport) ID() string               { return t.id }
func (t *transport) Info() core.TransportInfo { return t.info }

func (t *transport) Connect(ctx context.Context, dtlsParameters core.RawMessage) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	t.mu.Unlock()

	err := t.router.worker.conn.Call(ctx, methodConnectTransport, connectTransportRequest{
		TransportID:    t.id,
		DtlsParameters: dtlsParameters,
	}, nil)
	if err != nil {
		return fmt.Errorf("connect transport %q: %w", t.id, err)
	}
	return nil
}

func (t *transport) Produce(ctx context.Context, opts core.ProduceOptions) (core.Producer, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	t.mu.Unlock()

	producerID := uuid.NewString()
	err := t.router.worker.conn.Call(ctx, methodProduce, produceRequest{
		TransportID:   t.id,
		ProducerID:    producerID,
		Kind:          string(opts.Kind),
		RtpParameters: opts.RtpParameters,
		AppData:       opts.AppData,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("produce on transport %q: %w", t.id, err)
	}

	p := &producer{
		id:        producerID,
		kind:      opts.Kind,
		appData:   opts.AppData,
		transport: t,
	}
	t.mu.Lock()
	t.producers[producerID] = p
	t.mu.Unlock()
	return p, nil
}

func (t *transport) Consume(ctx context.Context, opts core.ConsumeOptions) (core.Consumer, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	t.mu.Unlock()

	consumerID := uuid.NewString()
	var res consumeResponse
	err := t.router.worker.conn.Call(ctx, methodConsume, consumeRequest{
		TransportID:     t.id,
		ConsumerID:      consumerID,
		ProducerID:      opts.ProducerID,
		RtpCapabilities: opts.RtpCapabilities,
		Paused:          opts.Paused,
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("consume producer %q: %w", opts.ProducerID, err)
	}

	c := &consumer{
		id:            consumerID,
		producerID:    opts.ProducerID,
		kind:          domain.MediaKind(res.Kind),
		rtpParameters: res.RtpParameters,
		transport:     t,
	}
	t.mu.Lock()
	t.consumers[consumerID] = c
	t.mu.Unlock()
	return c, nil
}

func (t *transport) Close() error {
	if !t.markClosed() {
		return nil
	}
	t.router.removeTransport(t.id)

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := t.router.worker.conn.Call(ctx, methodCloseTransport, closeObjectRequest{ID: t.id}, nil); err != nil {
		return fmt.Errorf("close transport %q: %w", t.id, err)
	}
	return nil
}

// parentClosed marks the subtree closed without RPC; the worker already
// cascaded the close on its side.
func (t *transport) parentClosed() {
	t.markClosed()
}

func (t *transport) markClosed() bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	t.closed = true
	producers := t.producers
	consumers := t.consumers
	t.producers = make(map[string]*producer)
	t.consumers = make(map[string]*consumer)
	t.mu.Unlock()

	for _, p := range producers {
		p.closed.Store(true)
	}
	for _, c := range consumers {
		c.closed.Store(true)
	}
	return true
}

func (t *transport) removeProducer(id string) {
	t.mu.Lock()
	delete(t.producers, id)
	t.mu.Unlock()
}

func (t *transport) removeConsumer(id string) {
	t.mu.Lock()
	delete(t.consumers, id)
	t.mu.Unlock()
}

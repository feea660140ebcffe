// Package coretest provides in-memory fakes for the core interfaces.
package coretest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/edgemeet/huddle/internal/core"
	"github.com/edgemeet/huddle/internal/domain"
)

// FakeProvider counts router creations and room closures.
type FakeProvider struct {
	CreateErr error

	mu      sync.Mutex
	created int
	closed  []domain.RoomID
	routers map[domain.RoomID]*FakeRouter
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{routers: make(map[domain.RoomID]*FakeRouter)}
}

func (f *FakeProvider) CreateRouter(_ context.Context, roomID domain.RoomID) (core.Router, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.created++
	r := NewFakeRouter()
	f.routers[roomID] = r
	return r, nil
}

func (f *FakeProvider) CloseRoom(roomID domain.RoomID) error {
	f.mu.Lock()
	f.closed = append(f.closed, roomID)
	f.mu.Unlock()
	return nil
}

func (f *FakeProvider) CreatedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func (f *FakeProvider) ClosedRooms() []domain.RoomID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.RoomID, len(f.closed))
	copy(out, f.closed)
	return out
}

func (f *FakeProvider) RouterOf(roomID domain.RoomID) *FakeRouter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.routers[roomID]
}

// FakeRouter implements core.Router without any engine behind it.
type FakeRouter struct {
	id   string
	Caps core.RawMessage

	CanConsumeResult bool
	CanConsumeErr    error

	mu         sync.Mutex
	closed     bool
	transports int
}

func NewFakeRouter() *FakeRouter {
	return &FakeRouter{
		id:               uuid.NewString(),
		Caps:             core.RawMessage(`{"codecs":[]}`),
		CanConsumeResult: true,
	}
}

func (r *FakeRouter) ID() string                       { return r.id }
func (r *FakeRouter) RtpCapabilities() core.RawMessage { return r.Caps }

func (r *FakeRouter) CreateWebRtcTransport(_ context.Context, _ core.TransportOptions) (core.Transport, error) {
	r.mu.Lock()
	r.transports++
	r.mu.Unlock()
	return NewFakeTransport(), nil
}

func (r *FakeRouter) CanConsume(_ context.Context, _ string, _ core.RawMessage) (bool, error) {
	if r.CanConsumeErr != nil {
		return false, r.CanConsumeErr
	}
	return r.CanConsumeResult, nil
}

func (r *FakeRouter) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *FakeRouter) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *FakeRouter) TransportCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transports
}

// FakeTransport implements core.Transport.
type FakeTransport struct {
	id string

	ConnectErr error
	ProduceErr error
	ConsumeErr error

	mu        sync.Mutex
	connected bool
	closed    bool
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{id: uuid.NewString()}
}

func (t *FakeTransport) ID() string { return t.id }

func (t *FakeTransport) Info() core.TransportInfo {
	return core.TransportInfo{
		ID:             t.id,
		IceParameters:  core.RawMessage(`{}`),
		IceCandidates:  core.RawMessage(`[]`),
		DtlsParameters: core.RawMessage(`{}`),
	}
}

func (t *FakeTransport) Connect(_ context.Context, _ core.RawMessage) error {
	if t.ConnectErr != nil {
		return t.ConnectErr
	}
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	return nil
}

func (t *FakeTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *FakeTransport) Produce(_ context.Context, opts core.ProduceOptions) (core.Producer, error) {
	if t.ProduceErr != nil {
		return nil, t.ProduceErr
	}
	return &FakeProducer{
		id:      uuid.NewString(),
		kind:    opts.Kind,
		appData: opts.AppData,
	}, nil
}

func (t *FakeTransport) Consume(_ context.Context, opts core.ConsumeOptions) (core.Consumer, error) {
	if t.ConsumeErr != nil {
		return nil, t.ConsumeErr
	}
	c := &FakeConsumer{
		id:         uuid.NewString(),
		producerID: opts.ProducerID,
		kind:       domain.MediaKindVideo,
		params:     core.RawMessage(`{}`),
	}
	c.paused.Store(opts.Paused)
	return c, nil
}

func (t *FakeTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *FakeTransport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// FakeProducer implements core.Producer.
type FakeProducer struct {
	id      string
	kind    domain.MediaKind
	appData domain.AppData
	closed  atomic.Bool
}

func (p *FakeProducer) ID() string              { return p.id }
func (p *FakeProducer) Kind() domain.MediaKind  { return p.kind }
func (p *FakeProducer) AppData() domain.AppData { return p.appData }

func (p *FakeProducer) Close() error {
	p.closed.Store(true)
	return nil
}

func (p *FakeProducer) IsClosed() bool { return p.closed.Load() }

// FakeConsumer implements core.Consumer.
type FakeConsumer struct {
	id         string
	producerID string
	kind       domain.MediaKind
	params     core.RawMessage
	paused     atomic.Bool
	closed     atomic.Bool
}

func (c *FakeConsumer) ID() string                     { return c.id }
func (c *FakeConsumer) ProducerID() string             { return c.producerID }
func (c *FakeConsumer) Kind() domain.MediaKind         { return c.kind }
func (c *FakeConsumer) RtpParameters() core.RawMessage { return c.params }

func (c *FakeConsumer) Pause(context.Context) error {
	c.paused.Store(true)
	return nil
}

func (c *FakeConsumer) Resume(context.Context) error {
	c.paused.Store(false)
	return nil
}

func (c *FakeConsumer) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *FakeConsumer) IsPaused() bool { return c.paused.Load() }
func (c *FakeConsumer) IsClosed() bool { return c.closed.Load() }

// FakeSignal records every frame pushed to a peer.
type FakeSignal struct {
	SendErr error

	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func NewFakeSignal() *FakeSignal { return &FakeSignal{} }

func (s *FakeSignal) TrySend(f core.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("connection closed")
	}
	if s.SendErr != nil {
		return s.SendErr
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *FakeSignal) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *FakeSignal) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *FakeSignal) Frames() []core.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Reset drops recorded frames, keeping the connection open.
func (s *FakeSignal) Reset() {
	s.mu.Lock()
	s.frames = nil
	s.mu.Unlock()
}

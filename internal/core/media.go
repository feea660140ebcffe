package core

import (
	"context"
	"encoding/json"

	"github.com/edgemeet/huddle/internal/domain"
)

// RawMessage aliases the stdlib raw JSON payload so engine and adapters share
// one type for capability/parameter blobs the control plane never inspects.
type RawMessage = json.RawMessage

// TransportInfo carries the ICE/DTLS parameters a client needs to complete
// the WebRTC handshake against the media engine.
type TransportInfo struct {
	ID             string     `json:"id"`
	IceParameters  RawMessage `json:"iceParameters"`
	IceCandidates  RawMessage `json:"iceCandidates"`
	DtlsParameters RawMessage `json:"dtlsParameters"`
}

type TransportOptions struct {
	Producing bool
	Consuming bool
}

type ProduceOptions struct {
	Kind          domain.MediaKind
	RtpParameters RawMessage
	AppData       domain.AppData
}

type ConsumeOptions struct {
	ProducerID      string
	RtpCapabilities RawMessage
	// Paused is always set by the dispatcher; consumers start paused and are
	// resumed by the client once its transport is ready.
	Paused bool
}

// Router is a per-room media routing context living on an engine worker.
// It is shared read-only by all participants of the room.
type Router interface {
	ID() string
	RtpCapabilities() RawMessage
	CreateWebRtcTransport(ctx context.Context, opts TransportOptions) (Transport, error)
	CanConsume(ctx context.Context, producerID string, rtpCapabilities RawMessage) (bool, error)
	Close() error
}

// Transport is one client's send- or receive-capable endpoint on a Router.
type Transport interface {
	ID() string
	Info() TransportInfo
	Connect(ctx context.Context, dtlsParameters RawMessage) error
	Produce(ctx context.Context, opts ProduceOptions) (Producer, error)
	Consume(ctx context.Context, opts ConsumeOptions) (Consumer, error)
	Close() error
}

// Producer is an inbound media source published on a Transport.
type Producer interface {
	ID() string
	Kind() domain.MediaKind
	AppData() domain.AppData
	Close() error
}

// Consumer forwards one remote Producer to a local receive Transport.
type Consumer interface {
	ID() string
	ProducerID() string
	Kind() domain.MediaKind
	RtpParameters() RawMessage
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Close() error
}

// RouterProvider is the registry's view of the worker pool: it creates the
// per-room router and releases it on room closure.
type RouterProvider interface {
	CreateRouter(ctx context.Context, roomID domain.RoomID) (Router, error)
	CloseRoom(roomID domain.RoomID) error
}

package engine

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/edgemeet/huddle/internal/core"
	"github.com/edgemeet/huddle/internal/domain"
)

// RPC methods understood by the media worker process.
const (
	methodCreateRouter     = "worker.createRouter"
	methodCloseWorker      = "worker.close"
	methodCreateTransport  = "router.createWebRtcTransport"
	methodCanConsume       = "router.canConsume"
	methodCloseRouter      = "router.close"
	methodConnectTransport = "transport.connect"
	methodProduce          = "transport.produce"
	methodConsume          = "transport.consume"
	methodCloseTransport   = "transport.close"
	methodCloseProducer    = "producer.close"
	methodPauseConsumer    = "consumer.pause"
	methodResumeConsumer   = "consumer.resume"
	methodCloseConsumer    = "consumer.close"
)

type createRouterRequest struct {
	RouterID string `json:"routerId"`
}

type createRouterResponse struct {
	RtpCapabilities core.RawMessage `json:"rtpCapabilities"`
}

type closeRouterRequest struct {
	RouterID string `json:"routerId"`
}

type createTransportRequest struct {
	RouterID    string `json:"routerId"`
	TransportID string `json:"transportId"`
	ListenIP    string `json:"listenIp"`
	AnnouncedIP string `json:"announcedIp,omitempty"`
	Producing   bool   `json:"producing"`
	Consuming   bool   `json:"consuming"`
}

type createTransportResponse struct {
	IceParameters  core.RawMessage `json:"iceParameters"`
	IceCandidates  core.RawMessage `json:"iceCandidates"`
	DtlsParameters core.RawMessage `json:"dtlsParameters"`
}

type connectTransportRequest struct {
	TransportID    string          `json:"transportId"`
	DtlsParameters core.RawMessage `json:"dtlsParameters"`
}

type produceRequest struct {
	TransportID   string          `json:"transportId"`
	ProducerID    string          `json:"producerId"`
	Kind          string          `json:"kind"`
	RtpParameters core.RawMessage `json:"rtpParameters"`
	Paused        bool            `json:"paused"`
	AppData       domain.AppData  `json:"appData,omitempty"`
}

type consumeRequest struct {
	TransportID     string          `json:"transportId"`
	ConsumerID      string          `json:"consumerId"`
	ProducerID      string          `json:"producerId"`
	RtpCapabilities core.RawMessage `json:"rtpCapabilities"`
	Paused          bool            `json:"paused"`
}

type consumeResponse struct {
	Kind          string          `json:"kind"`
	RtpParameters core.RawMessage `json:"rtpParameters"`
}

type canConsumeRequest struct {
	RouterID        string          `json:"routerId"`
	ProducerID      string          `json:"producerId"`
	RtpCapabilities core.RawMessage `json:"rtpCapabilities"`
}

type canConsumeResponse struct {
	CanConsume bool `json:"canConsume"`
}

type closeObjectRequest struct {
	ID string `json:"id"`
}

// stdioConn glues a worker's stdin/stdout pipes into one stream for the
// JSON-RPC channel.
type stdioConn struct {
	in  io.WriteCloser
	out io.ReadCloser
}

func (c stdioConn) Read(p []byte) (int, error)  { return c.out.Read(p) }
func (c stdioConn) Write(p []byte) (int, error) { return c.in.Write(p) }

func (c stdioConn) Close() error {
	err := c.in.Close()
	if cerr := c.out.Close(); err == nil {
		err = cerr
	}
	return err
}

// newChannel opens the JSON-RPC connection to a worker. The worker only ever
// pushes log-level notifications back; requests flow one way.
func newChannel(ctx context.Context, rwc io.ReadWriteCloser, logger zerolog.Logger) *jsonrpc2.Conn {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	handler := jsonrpc2.HandlerWithError(func(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		logger.Debug().Str("module", "engine.channel").Str("method", req.Method).Msg("worker notification")
		return nil, nil
	})
	return jsonrpc2.NewConn(ctx, stream, handler)
}

package signal

import (
	"context"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/edgemeet/huddle/internal/core"
	"github.com/edgemeet/huddle/internal/core/coretest"
	"github.com/edgemeet/huddle/internal/domain"
)

func TestDispatchBasics(t *testing.T) {
	ctl, _, _ := newTestController(t)
	sess, _ := attach(t, ctl, "r1", "alice")

	t.Run("unknown method is rejected", func(t *testing.T) {
		resp := call(t, ctl, sess, "selfDestruct", nil)
		require.False(t, resp.OK)
		require.Contains(t, resp.Error, "unknown method")
	})

	t.Run("ping answers pong", func(t *testing.T) {
		resp := mustCall(t, ctl, sess, "ping", nil)
		require.Equal(t, pongData{Pong: true}, resp.Data)
	})

	t.Run("router capabilities round-trip", func(t *testing.T) {
		resp := mustCall(t, ctl, sess, "getRouterRtpCapabilities", nil)
		caps := resp.Data.(capabilitiesData)
		require.JSONEq(t, `{"codecs":[]}`, string(caps.RtpCapabilities))
	})

	t.Run("requests from an unregistered session are rejected", func(t *testing.T) {
		ghost := &session{roomID: "nowhere", peerID: "casper", conn: coretest.NewFakeSignal()}
		resp := call(t, ctl, ghost, "join", nil)
		require.False(t, resp.OK)
	})
}

func TestRoster(t *testing.T) {
	ctl, _, _ := newTestController(t)
	sessA, _ := attach(t, ctl, "r1", "alice")
	sessB, _ := attach(t, ctl, "r1", "bob")

	t.Run("join excludes the caller", func(t *testing.T) {
		resp := mustCall(t, ctl, sessA, "join", nil)
		require.Equal(t, []domain.PeerID{"bob"}, resp.Data.(rosterData).Peers)
	})

	t.Run("getParticipants includes everyone", func(t *testing.T) {
		resp := mustCall(t, ctl, sessB, "getParticipants", nil)
		require.ElementsMatch(t, []domain.PeerID{"alice", "bob"}, resp.Data.(rosterData).Peers)
	})
}

func TestCreateTransport(t *testing.T) {
	ctl, registry, _ := newTestController(t)
	sess, _ := attach(t, ctl, "r1", "alice")

	t.Run("rejects a transport with no direction", func(t *testing.T) {
		resp := call(t, ctl, sess, "createWebRtcTransport", createTransportPayload{})
		require.False(t, resp.OK)
	})

	t.Run("rejects a missing payload", func(t *testing.T) {
		resp := call(t, ctl, sess, "createWebRtcTransport", nil)
		require.False(t, resp.OK)
	})

	t.Run("returns handshake parameters and registers ownership", func(t *testing.T) {
		resp := mustCall(t, ctl, sess, "createWebRtcTransport", createTransportPayload{Producing: true})
		info := resp.Data.(core.TransportInfo)
		require.NotEmpty(t, info.ID)
		require.NotEmpty(t, info.IceParameters)
		require.NotEmpty(t, info.DtlsParameters)

		room, _ := registry.Room("r1")
		p, _ := room.Participant("alice")
		_, ok := p.Transport(info.ID)
		require.True(t, ok)
	})
}

func TestConnectTransport(t *testing.T) {
	ctl, registry, _ := newTestController(t)
	sess, _ := attach(t, ctl, "r1", "alice")

	resp := mustCall(t, ctl, sess, "createWebRtcTransport", createTransportPayload{Producing: true})
	transportID := resp.Data.(core.TransportInfo).ID

	t.Run("unknown transport id", func(t *testing.T) {
		resp := call(t, ctl, sess, "connectWebRtcTransport", connectTransportPayload{
			TransportID:    "bogus",
			DtlsParameters: core.RawMessage(`{}`),
		})
		require.False(t, resp.OK)
		require.Contains(t, resp.Error, "transport not found")
	})

	t.Run("connect succeeds on an owned transport", func(t *testing.T) {
		mustCall(t, ctl, sess, "connectWebRtcTransport", connectTransportPayload{
			TransportID:    transportID,
			DtlsParameters: core.RawMessage(`{"fingerprints":[]}`),
		})
		room, _ := registry.Room("r1")
		p, _ := room.Participant("alice")
		tr, _ := p.Transport(transportID)
		require.True(t, tr.(*coretest.FakeTransport).Connected())
	})
}

func TestProduce(t *testing.T) {
	ctl, _, _ := newTestController(t)
	sessA, _ := attach(t, ctl, "r1", "alice")
	_, sigB := attach(t, ctl, "r1", "bob")

	resp := mustCall(t, ctl, sessA, "createWebRtcTransport", createTransportPayload{Producing: true})
	transportID := resp.Data.(core.TransportInfo).ID

	t.Run("rejects an invalid kind", func(t *testing.T) {
		raw := core.RawMessage(`{"transportId":"` + transportID + `","kind":"smell","rtpParameters":{}}`)
		resp := ctl.handleRequest(context.Background(), sessA, &request{ID: 9, Method: "produce", Data: raw})
		require.False(t, resp.OK)
	})

	t.Run("camera producer notifies the others only", func(t *testing.T) {
		sigB.Reset()
		resp := mustCall(t, ctl, sessA, "produce", producePayload{
			TransportID:   transportID,
			Kind:          domain.MediaKindVideo,
			RtpParameters: core.RawMessage(`{}`),
			AppData:       domain.AppData{"mediaType": "camera"},
		})
		producerID := resp.Data.(produceData).ProducerID
		require.NotEmpty(t, producerID)

		require.Equal(t, []string{"newProducer"}, methodsOf(t, sigB))
		var ev producerEvent
		require.NoError(t, json.Unmarshal(notes(t, sigB)[0].Data, &ev))
		require.Equal(t, producerID, ev.ProducerID)
		require.Equal(t, domain.PeerID("alice"), ev.PeerID)
		require.Equal(t, domain.MediaKindVideo, ev.Kind)
	})

	t.Run("screen share fires the extra notification", func(t *testing.T) {
		sigB.Reset()
		mustCall(t, ctl, sessA, "produce", producePayload{
			TransportID:   transportID,
			Kind:          domain.MediaKindVideo,
			RtpParameters: core.RawMessage(`{}`),
			AppData:       domain.AppData{"mediaType": "screen"},
		})
		require.Equal(t, []string{"newProducer", "screenSharingStarted"}, methodsOf(t, sigB))
	})
}

func TestConsume(t *testing.T) {
	ctl, _, provider := newTestController(t)
	sessA, _ := attach(t, ctl, "r1", "alice")
	sessB, _ := attach(t, ctl, "r1", "bob")

	respT := mustCall(t, ctl, sessA, "createWebRtcTransport", createTransportPayload{Producing: true})
	sendID := respT.Data.(core.TransportInfo).ID
	respP := mustCall(t, ctl, sessA, "produce", producePayload{
		TransportID:   sendID,
		Kind:          domain.MediaKindVideo,
		RtpParameters: core.RawMessage(`{}`),
	})
	producerID := respP.Data.(produceData).ProducerID

	respR := mustCall(t, ctl, sessB, "createWebRtcTransport", createTransportPayload{Consuming: true})
	recvID := respR.Data.(core.TransportInfo).ID

	t.Run("capability mismatch blocks the consume", func(t *testing.T) {
		provider.RouterOf("r1").CanConsumeResult = false
		resp := call(t, ctl, sessB, "consume", consumePayload{
			TransportID:     recvID,
			ProducerID:      producerID,
			RtpCapabilities: core.RawMessage(`{}`),
		})
		require.False(t, resp.OK)
		require.Contains(t, resp.Error, "cannot consume")
		provider.RouterOf("r1").CanConsumeResult = true
	})

	t.Run("consumer starts paused and resumes on request", func(t *testing.T) {
		resp := mustCall(t, ctl, sessB, "consume", consumePayload{
			TransportID:     recvID,
			ProducerID:      producerID,
			RtpCapabilities: core.RawMessage(`{}`),
		})
		data := resp.Data.(consumeData)
		require.Equal(t, producerID, data.ProducerID)
		require.NotEmpty(t, data.ConsumerID)

		room, _ := ctl.registry.Room("r1")
		pB, _ := room.Participant("bob")
		c, ok := pB.Consumer(data.ConsumerID)
		require.True(t, ok)
		require.True(t, c.(*coretest.FakeConsumer).IsPaused())

		mustCall(t, ctl, sessB, "resumeConsumer", consumerIDPayload{ConsumerID: data.ConsumerID})
		require.False(t, c.(*coretest.FakeConsumer).IsPaused())

		mustCall(t, ctl, sessB, "pauseConsumer", consumerIDPayload{ConsumerID: data.ConsumerID})
		require.True(t, c.(*coretest.FakeConsumer).IsPaused())

		mustCall(t, ctl, sessB, "closeConsumer", consumerIDPayload{ConsumerID: data.ConsumerID})
		require.True(t, c.(*coretest.FakeConsumer).IsClosed())
		_, ok = pB.Consumer(data.ConsumerID)
		require.False(t, ok)
	})

	t.Run("unknown consumer id", func(t *testing.T) {
		resp := call(t, ctl, sessB, "resumeConsumer", consumerIDPayload{ConsumerID: "bogus"})
		require.False(t, resp.OK)
		require.Contains(t, resp.Error, "consumer not found")
	})
}

func TestOwnershipScoping(t *testing.T) {
	ctl, _, _ := newTestController(t)
	sessA, _ := attach(t, ctl, "r1", "alice")
	sessB, _ := attach(t, ctl, "r1", "bob")

	respT := mustCall(t, ctl, sessA, "createWebRtcTransport", createTransportPayload{Producing: true})
	transportID := respT.Data.(core.TransportInfo).ID
	respP := mustCall(t, ctl, sessA, "produce", producePayload{
		TransportID:   transportID,
		Kind:          domain.MediaKindAudio,
		RtpParameters: core.RawMessage(`{}`),
	})
	producerID := respP.Data.(produceData).ProducerID

	t.Run("a peer cannot use another peer's transport", func(t *testing.T) {
		resp := call(t, ctl, sessB, "connectWebRtcTransport", connectTransportPayload{
			TransportID:    transportID,
			DtlsParameters: core.RawMessage(`{}`),
		})
		require.False(t, resp.OK)
		require.Contains(t, resp.Error, "transport not found")
	})

	t.Run("a peer cannot close another peer's producer", func(t *testing.T) {
		resp := call(t, ctl, sessB, "closeProducer", producerIDPayload{ProducerID: producerID})
		require.False(t, resp.OK)
		require.Contains(t, resp.Error, "producer not found")
	})

	t.Run("the owner still can", func(t *testing.T) {
		mustCall(t, ctl, sessA, "closeProducer", producerIDPayload{ProducerID: producerID})
	})
}

func TestCloseProducer(t *testing.T) {
	ctl, registry, _ := newTestController(t)
	sessA, _ := attach(t, ctl, "r1", "alice")
	_, sigB := attach(t, ctl, "r1", "bob")

	respT := mustCall(t, ctl, sessA, "createWebRtcTransport", createTransportPayload{Producing: true})
	transportID := respT.Data.(core.TransportInfo).ID
	respP := mustCall(t, ctl, sessA, "produce", producePayload{
		TransportID:   transportID,
		Kind:          domain.MediaKindVideo,
		RtpParameters: core.RawMessage(`{}`),
		AppData:       domain.AppData{"mediaType": "screen"},
	})
	producerID := respP.Data.(produceData).ProducerID

	sigB.Reset()
	mustCall(t, ctl, sessA, "closeProducer", producerIDPayload{ProducerID: producerID})
	require.Equal(t, []string{"screenSharingStopped"}, methodsOf(t, sigB))

	room, _ := registry.Room("r1")
	pA, _ := room.Participant("alice")
	_, ok := pA.Producer(producerID)
	require.False(t, ok)
}

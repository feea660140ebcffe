package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgemeet/huddle/internal/app"
	"github.com/edgemeet/huddle/internal/core"
	"github.com/edgemeet/huddle/internal/core/coretest"
	"github.com/edgemeet/huddle/internal/domain"
)

func TestGetOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a room with one router", func(t *testing.T) {
		provider := coretest.NewFakeProvider()
		reg := app.NewRegistry(provider)

		room, err := reg.GetOrCreate(ctx, "r1")
		require.NoError(t, err)
		require.NotNil(t, room.Router())
		require.Equal(t, 1, provider.CreatedCount())

		again, err := reg.GetOrCreate(ctx, "r1")
		require.NoError(t, err)
		require.Same(t, room, again)
		require.Equal(t, 1, provider.CreatedCount())
	})

	t.Run("concurrent calls collapse into a single creation", func(t *testing.T) {
		provider := coretest.NewFakeProvider()
		reg := app.NewRegistry(provider)

		const callers = 32
		rooms := make([]*app.Room, callers)
		errs := make([]error, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rooms[i], errs[i] = reg.GetOrCreate(ctx, "crowded")
			}(i)
		}
		wg.Wait()

		require.Equal(t, 1, provider.CreatedCount())
		for i := range rooms {
			require.NoError(t, errs[i])
			require.Same(t, rooms[0], rooms[i])
		}
	})

	t.Run("router creation failure surfaces and leaves no room behind", func(t *testing.T) {
		provider := coretest.NewFakeProvider()
		provider.CreateErr = errors.New("no worker available")
		reg := app.NewRegistry(provider)

		_, err := reg.GetOrCreate(ctx, "doomed")
		require.Error(t, err)
		_, ok := reg.Room("doomed")
		require.False(t, ok)
	})
}

func TestParticipantLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("add requires an existing room", func(t *testing.T) {
		reg := app.NewRegistry(coretest.NewFakeProvider())
		_, err := reg.AddParticipant("nope", "alice", coretest.NewFakeSignal())
		require.ErrorIs(t, err, app.ErrRoomNotFound)
	})

	t.Run("last leave closes the room and releases the router", func(t *testing.T) {
		provider := coretest.NewFakeProvider()
		reg := app.NewRegistry(provider)

		_, err := reg.GetOrCreate(ctx, "r1")
		require.NoError(t, err)
		_, err = reg.AddParticipant("r1", "alice", coretest.NewFakeSignal())
		require.NoError(t, err)
		_, err = reg.AddParticipant("r1", "bob", coretest.NewFakeSignal())
		require.NoError(t, err)
		require.Equal(t, 2, reg.LiveCount("r1"))

		require.True(t, reg.RemoveParticipant("r1", "alice"))
		_, ok := reg.Room("r1")
		require.True(t, ok, "room must survive while bob is in it")
		require.Empty(t, provider.ClosedRooms())

		require.True(t, reg.RemoveParticipant("r1", "bob"))
		_, ok = reg.Room("r1")
		require.False(t, ok)
		require.Equal(t, []domain.RoomID{"r1"}, provider.ClosedRooms())
	})

	t.Run("removing an unknown peer or room is a no-op", func(t *testing.T) {
		provider := coretest.NewFakeProvider()
		reg := app.NewRegistry(provider)

		require.False(t, reg.RemoveParticipant("ghost", "alice"))

		_, err := reg.GetOrCreate(ctx, "r1")
		require.NoError(t, err)
		_, err = reg.AddParticipant("r1", "alice", coretest.NewFakeSignal())
		require.NoError(t, err)

		require.False(t, reg.RemoveParticipant("r1", "bob"))
		require.Equal(t, 1, reg.LiveCount("r1"))

		require.True(t, reg.RemoveParticipant("r1", "alice"))
		require.False(t, reg.RemoveParticipant("r1", "alice"))
		require.Equal(t, []domain.RoomID{"r1"}, provider.ClosedRooms())
	})

	t.Run("leave closes the peer's media resources exactly once", func(t *testing.T) {
		provider := coretest.NewFakeProvider()
		reg := app.NewRegistry(provider)

		room, err := reg.GetOrCreate(ctx, "r1")
		require.NoError(t, err)
		p, err := reg.AddParticipant("r1", "alice", coretest.NewFakeSignal())
		require.NoError(t, err)

		tr, err := room.Router().CreateWebRtcTransport(ctx, core.TransportOptions{Producing: true})
		require.NoError(t, err)
		p.AddTransport(tr)
		pr, err := tr.Produce(ctx, core.ProduceOptions{Kind: domain.MediaKindAudio})
		require.NoError(t, err)
		p.AddProducer(pr)
		cons, err := tr.Consume(ctx, core.ConsumeOptions{ProducerID: pr.ID(), Paused: true})
		require.NoError(t, err)
		p.AddConsumer(cons)

		require.True(t, reg.RemoveParticipant("r1", "alice"))
		require.True(t, tr.(*coretest.FakeTransport).IsClosed())
		require.True(t, pr.(*coretest.FakeProducer).IsClosed())
		require.True(t, cons.(*coretest.FakeConsumer).IsClosed())
	})
}

func TestRegistryClose(t *testing.T) {
	ctx := context.Background()

	t.Run("close is idempotent and closes signal connections", func(t *testing.T) {
		provider := coretest.NewFakeProvider()
		reg := app.NewRegistry(provider)

		_, err := reg.GetOrCreate(ctx, "r1")
		require.NoError(t, err)
		sig := coretest.NewFakeSignal()
		_, err = reg.AddParticipant("r1", "alice", sig)
		require.NoError(t, err)

		require.NoError(t, reg.Close("r1"))
		require.True(t, sig.IsClosed())
		require.Equal(t, []domain.RoomID{"r1"}, provider.ClosedRooms())

		require.NoError(t, reg.Close("r1"))
		require.Equal(t, []domain.RoomID{"r1"}, provider.ClosedRooms())
	})

	t.Run("close all tears down every room", func(t *testing.T) {
		provider := coretest.NewFakeProvider()
		reg := app.NewRegistry(provider)

		for _, id := range []domain.RoomID{"a", "b", "c"} {
			_, err := reg.GetOrCreate(ctx, id)
			require.NoError(t, err)
		}
		reg.CloseAll()
		require.Len(t, provider.ClosedRooms(), 3)
		for _, id := range []domain.RoomID{"a", "b", "c"} {
			_, ok := reg.Room(id)
			require.False(t, ok)
		}
	})
}

func TestRoomDirectory(t *testing.T) {
	ctx := context.Background()
	provider := coretest.NewFakeProvider()
	reg := app.NewRegistry(provider)
	dir := app.NewRoomDirectory(reg)

	rec := dir.Create("standup")
	require.NotEmpty(t, rec.ID)
	require.Equal(t, "standup", rec.Name)

	status, ok := dir.Get(rec.ID)
	require.True(t, ok)
	require.Equal(t, 0, status.Participants)

	_, err := reg.GetOrCreate(ctx, rec.ID)
	require.NoError(t, err)
	_, err = reg.AddParticipant(rec.ID, "alice", coretest.NewFakeSignal())
	require.NoError(t, err)

	status, ok = dir.Get(rec.ID)
	require.True(t, ok)
	require.Equal(t, 1, status.Participants)

	list := dir.List()
	require.Len(t, list, 1)
	require.Equal(t, rec.ID, list[0].ID)

	_, ok = dir.Get("missing")
	require.False(t, ok)
}

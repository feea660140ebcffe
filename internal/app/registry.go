package app

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/edgemeet/huddle/internal/core"
	"github.com/edgemeet/huddle/internal/domain"
)

var ErrRoomNotFound = errors.New("room not found")

// Registry maps room ids to live room state. Rooms are created lazily on
// first access and destroyed when the last participant leaves.
type Registry struct {
	routers core.RouterProvider
	creates singleflight.Group

	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRegistry(routers core.RouterProvider) *Registry {
	return &Registry{
		routers: routers,
		rooms:   make(map[domain.RoomID]*Room),
	}
}

// GetOrCreate returns the live room, creating router and participant set on
// first access. Concurrent calls for one id collapse into a single creation,
// so a room never ends up with two routers.
func (r *Registry) GetOrCreate(ctx context.Context, roomID domain.RoomID) (*Room, error) {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return room, nil
	}

	v, err, _ := r.creates.Do(string(roomID), func() (any, error) {
		r.mu.RLock()
		room, ok := r.rooms[roomID]
		r.mu.RUnlock()
		if ok {
			return room, nil
		}

		router, err := r.routers.CreateRouter(ctx, roomID)
		if err != nil {
			return nil, err
		}
		room = NewRoom(roomID, router)

		r.mu.Lock()
		r.rooms[roomID] = room
		r.mu.Unlock()

		log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("room created")
		return room, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Room), nil
}

func (r *Registry) Room(roomID domain.RoomID) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	return room, ok
}

// AddParticipant registers a peer in an existing room.
func (r *Registry) AddParticipant(roomID domain.RoomID, peerID domain.PeerID, sig core.SignalConnection) (*Participant, error) {
	room, ok := r.Room(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	p := newParticipant(peerID, sig)
	room.addParticipant(p)
	return p, nil
}

// RemoveParticipant closes the peer's media resources exactly once, removes it
// from the room and cascades into room closure when the room became empty.
// Removing an unknown peer or room is a no-op.
func (r *Registry) RemoveParticipant(roomID domain.RoomID, peerID domain.PeerID) bool {
	room, ok := r.Room(roomID)
	if !ok {
		return false
	}

	removed, empty := room.removeParticipant(peerID)
	if removed != nil {
		removed.CloseResources()
	}
	if empty {
		r.closeIfEmpty(roomID)
	}
	return removed != nil
}

// closeIfEmpty re-checks emptiness under the registry lock before dropping the
// entry, so a peer joining between the remove and the close keeps the room.
func (r *Registry) closeIfEmpty(roomID domain.RoomID) {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok || room.Count() > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.rooms, roomID)
	r.mu.Unlock()

	r.releaseRouter(roomID)
	log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("room closed, last participant left")
}

// Close tears a room down regardless of occupancy. Closing an absent room is
// a no-op, not an error.
func (r *Registry) Close(roomID domain.RoomID) error {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	delete(r.rooms, roomID)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	for _, p := range room.Participants() {
		p.CloseResources()
		p.Signal().Close()
	}
	r.releaseRouter(roomID)
	log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("room closed")
	return nil
}

func (r *Registry) releaseRouter(roomID domain.RoomID) {
	if err := r.routers.CloseRoom(roomID); err != nil {
		log.Warn().Str("module", "app.registry").Str("room", string(roomID)).Err(err).Msg("router close")
	}
}

// CloseAll tears down every live room; used on process shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	ids := make([]domain.RoomID, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		_ = r.Close(id)
	}
}

// LiveCount reports the participant count of a live room, zero when absent.
func (r *Registry) LiveCount(roomID domain.RoomID) int {
	room, ok := r.Room(roomID)
	if !ok {
		return 0
	}
	return room.Count()
}

package app

import (
	"sync"

	"github.com/edgemeet/huddle/internal/domain"
)

// LiveCounter reports how many peers are currently connected to a room.
type LiveCounter interface {
	LiveCount(domain.RoomID) int
}

// RoomStatus pairs a room record with its live occupancy.
type RoomStatus struct {
	domain.RoomRecord
	Participants int `json:"participants"`
}

// RoomDirectory is the in-memory store behind the room CRUD API. Records are
// independent of live signaling state; signaling never requires a record to
// exist first.
type RoomDirectory struct {
	live LiveCounter

	mu      sync.RWMutex
	records map[domain.RoomID]domain.RoomRecord
}

func NewRoomDirectory(live LiveCounter) *RoomDirectory {
	return &RoomDirectory{
		live:    live,
		records: make(map[domain.RoomID]domain.RoomRecord),
	}
}

func (d *RoomDirectory) Create(name string) domain.RoomRecord {
	rec := domain.NewRoomRecord(name)
	d.mu.Lock()
	d.records[rec.ID] = rec
	d.mu.Unlock()
	return rec
}

func (d *RoomDirectory) Get(id domain.RoomID) (RoomStatus, bool) {
	d.mu.RLock()
	rec, ok := d.records[id]
	d.mu.RUnlock()
	if !ok {
		return RoomStatus{}, false
	}
	return RoomStatus{RoomRecord: rec, Participants: d.live.LiveCount(id)}, true
}

func (d *RoomDirectory) List() []RoomStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]RoomStatus, 0, len(d.records))
	for id, rec := range d.records {
		out = append(out, RoomStatus{RoomRecord: rec, Participants: d.live.LiveCount(id)})
	}
	return out
}

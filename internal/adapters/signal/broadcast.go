package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/edgemeet/huddle/internal/domain"
)

// Broadcast fires a notification at every participant of the room except the
// excluded peers. Delivery is best effort: a failed recipient is logged and
// skipped, never surfaced to the caller.
func (ctl *Controller) Broadcast(roomID domain.RoomID, method string, data any, exclude ...domain.PeerID) {
	room, ok := ctl.registry.Room(roomID)
	if !ok {
		return
	}
	frame, err := encodeNotification(method, data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("method", method).Msg("broadcast marshal")
		return
	}

next:
	for _, p := range room.Participants() {
		for _, ex := range exclude {
			if p.ID == ex {
				continue next
			}
		}
		if err := p.Signal().TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("room", string(roomID)).
				Str("peer", string(p.ID)).Str("method", method).Msg("broadcast recipient dropped")
		}
	}
}

// ReplayProducersTo sends the newcomer one newProducer notification per
// pre-existing producer in the room, so it can discover media published
// before it joined. Returns the number of replayed producers.
func (ctl *Controller) ReplayProducersTo(roomID domain.RoomID, peerID domain.PeerID) int {
	room, ok := ctl.registry.Room(roomID)
	if !ok {
		return 0
	}
	target, ok := room.Participant(peerID)
	if !ok {
		return 0
	}

	n := 0
	for _, other := range room.Participants() {
		if other.ID == peerID {
			continue
		}
		for _, pr := range other.Producers() {
			frame, err := encodeNotification("newProducer", producerEvent{
				PeerID:     other.ID,
				ProducerID: pr.ID(),
				Kind:       pr.Kind(),
				AppData:    pr.AppData(),
			})
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("replay marshal")
				continue
			}
			if err := target.Signal().TrySend(frame); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("peer", string(peerID)).Msg("replay recipient dropped")
			}
			n++
		}
	}
	return n
}

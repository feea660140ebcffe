package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edgemeet/huddle/internal/core"
	"github.com/edgemeet/huddle/internal/domain"
)

// Participant is one peer's footprint in a room. It exclusively owns its
// transports, producers and consumers; nothing here is shared across peers.
type Participant struct {
	ID       domain.PeerID
	JoinedAt time.Time

	signal core.SignalConnection

	mu         sync.Mutex
	closed     bool
	transports map[string]core.Transport
	producers  map[string]core.Producer
	consumers  map[string]core.Consumer
}

func newParticipant(id domain.PeerID, sig core.SignalConnection) *Participant {
	return &Participant{
		ID:         id,
		JoinedAt:   time.Now(),
		signal:     sig,
		transports: make(map[string]core.Transport),
		producers:  make(map[string]core.Producer),
		consumers:  make(map[string]core.Consumer),
	}
}

func (p *Participant) Signal() core.SignalConnection { return p.signal }

func (p *Participant) AddTransport(t core.Transport) {
	p.mu.Lock()
	p.transports[t.ID()] = t
	p.mu.Unlock()
}

// Transport resolves an id against this participant only; other peers'
// transports are invisible here.
func (p *Participant) Transport(id string) (core.Transport, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.transports[id]
	return t, ok
}

func (p *Participant) AddProducer(pr core.Producer) {
	p.mu.Lock()
	p.producers[pr.ID()] = pr
	p.mu.Unlock()
}

func (p *Participant) Producer(id string) (core.Producer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.producers[id]
	return pr, ok
}

func (p *Participant) RemoveProducer(id string) {
	p.mu.Lock()
	delete(p.producers, id)
	p.mu.Unlock()
}

func (p *Participant) Producers() []core.Producer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.Producer, 0, len(p.producers))
	for _, pr := range p.producers {
		out = append(out, pr)
	}
	return out
}

func (p *Participant) AddConsumer(c core.Consumer) {
	p.mu.Lock()
	p.consumers[c.ID()] = c
	p.mu.Unlock()
}

func (p *Participant) Consumer(id string) (core.Consumer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.consumers[id]
	return c, ok
}

func (p *Participant) RemoveConsumer(id string) {
	p.mu.Lock()
	delete(p.consumers, id)
	p.mu.Unlock()
}

// CloseResources releases every media resource the participant owns, exactly
// once. Individual close failures are logged and do not stop the sweep.
func (p *Participant) CloseResources() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	consumers := p.consumers
	producers := p.producers
	transports := p.transports
	p.consumers = make(map[string]core.Consumer)
	p.producers = make(map[string]core.Producer)
	p.transports = make(map[string]core.Transport)
	p.mu.Unlock()

	for id, c := range consumers {
		if err := c.Close(); err != nil {
			log.Warn().Str("module", "app.room").Str("peer", string(p.ID)).Str("consumer", id).Err(err).Msg("consumer close")
		}
	}
	for id, pr := range producers {
		if err := pr.Close(); err != nil {
			log.Warn().Str("module", "app.room").Str("peer", string(p.ID)).Str("producer", id).Err(err).Msg("producer close")
		}
	}
	for id, t := range transports {
		if err := t.Close(); err != nil {
			log.Warn().Str("module", "app.room").Str("peer", string(p.ID)).Str("transport", id).Err(err).Msg("transport close")
		}
	}
}

// Room binds a live conference to its router and participant set.
type Room struct {
	ID        domain.RoomID
	CreatedAt time.Time

	router core.Router

	mu           sync.RWMutex
	participants map[domain.PeerID]*Participant
}

func NewRoom(id domain.RoomID, router core.Router) *Room {
	return &Room{
		ID:           id,
		CreatedAt:    time.Now(),
		router:       router,
		participants: make(map[domain.PeerID]*Participant),
	}
}

func (r *Room) Router() core.Router { return r.router }

func (r *Room) addParticipant(p *Participant) {
	r.mu.Lock()
	r.participants[p.ID] = p
	r.mu.Unlock()
	log.Info().Str("module", "app.room").Str("room", string(r.ID)).Str("peer", string(p.ID)).Msg("participant added")
}

// removeParticipant drops the peer and reports whether it was present and
// whether the room is now empty.
func (r *Room) removeParticipant(peerID domain.PeerID) (removed *Participant, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[peerID]
	if !ok {
		return nil, len(r.participants) == 0
	}
	delete(r.participants, peerID)
	log.Info().Str("module", "app.room").Str("room", string(r.ID)).Str("peer", string(peerID)).Msg("participant removed")
	return p, len(r.participants) == 0
}

func (r *Room) Participant(peerID domain.PeerID) (*Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[peerID]
	return p, ok
}

func (r *Room) Participants() []*Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	return out
}

// PeerIDs returns the current roster, minus any excluded peers.
func (r *Room) PeerIDs(exclude ...domain.PeerID) []domain.PeerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PeerID, 0, len(r.participants))
next:
	for id := range r.participants {
		for _, ex := range exclude {
			if id == ex {
				continue next
			}
		}
		out = append(out, id)
	}
	return out
}

func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

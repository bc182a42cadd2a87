package gateway

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrClientClosed = errors.New("client connection closed")

// Peer is one registered front-end.
type Peer interface {
	ID() string
	Send(payload []byte) error
}

// Delivery is the outcome of one broadcast attempt to one peer.
type Delivery struct {
	PeerID string
	Err    error
}

// Hub is the active-client set. Broadcast enqueues onto every peer and never
// waits on any of them.
type Hub struct {
	log *logrus.Logger

	mu    sync.RWMutex
	seq   uint64
	peers map[string]registeredPeer
}

type registeredPeer struct {
	peer Peer
	seq  uint64
}

func NewHub(log *logrus.Logger) *Hub {
	if log == nil {
		log = logrus.New()
	}
	return &Hub{log: log, peers: make(map[string]registeredPeer)}
}

// Register adds p to the active set, replacing any peer with the same ID.
func (h *Hub) Register(p Peer) {
	h.mu.Lock()
	h.seq++
	h.peers[p.ID()] = registeredPeer{peer: p, seq: h.seq}
	n := len(h.peers)
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{"client_id": p.ID(), "clients": n}).Info("frontend connected")
}

// Unregister removes the peer with id. Unknown ids are ignored.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	_, ok := h.peers[id]
	delete(h.peers, id)
	n := len(h.peers)
	h.mu.Unlock()

	if ok {
		h.log.WithFields(logrus.Fields{"client_id": id, "clients": n}).Info("frontend disconnected")
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Fanout makes exactly one delivery attempt per registered peer, in
// registration order, and reports each outcome.
func (h *Hub) Fanout(payload []byte) []Delivery {
	peers := h.snapshot()
	out := make([]Delivery, 0, len(peers))
	for _, p := range peers {
		out = append(out, Delivery{PeerID: p.ID(), Err: safeSend(p, payload)})
	}
	return out
}

// Broadcast fans payload out and logs per-peer failures. It never returns an
// error: one slow or dead front-end is not the sender's problem.
func (h *Hub) Broadcast(_ context.Context, payload []byte) error {
	for _, d := range h.Fanout(payload) {
		if d.Err != nil {
			h.log.WithError(d.Err).WithField("client_id", d.PeerID).Warn("broadcast delivery failed")
		}
	}
	return nil
}

func (h *Hub) snapshot() []Peer {
	h.mu.RLock()
	entries := make([]registeredPeer, 0, len(h.peers))
	for _, rp := range h.peers {
		entries = append(entries, rp)
	}
	h.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]Peer, len(entries))
	for i, rp := range entries {
		out[i] = rp.peer
	}
	return out
}

func safeSend(p Peer, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("peer send panicked")
		}
	}()
	return p.Send(payload)
}

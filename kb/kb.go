package kb

import (
	"fmt"
	"sync"
	"time"

	"github.com/gridsentry/pdv-simulator/model"
)

// EventType indicates what kind of change happened in the fleet.
type EventType int

const (
	// EventNodeRequested fires when a node's self-discharge drops it below
	// its request threshold.
	EventNodeRequested EventType = iota
	// EventNodeCharged fires when a node has been fully recharged.
	EventNodeCharged
)

// Event is emitted to subscribers when a node's charge state changes.
type Event struct {
	Type EventType
	Node model.SensorNode
}

// Fleet is an in-memory, thread-safe store for the deployed sensor nodes.
// Flight runs mutate node charge state through references handed out here;
// the store's lock is the single point of mutual exclusion when multiple
// vehicle simulations share one node list.
type Fleet struct {
	mu sync.RWMutex

	nodes map[string]*model.SensorNode
	order []string

	subs []func(Event)
}

// NewFleet constructs an empty fleet.
func NewFleet() *Fleet {
	return &Fleet{
		nodes: make(map[string]*model.SensorNode),
	}
}

// AddNode adds a new sensor node. It returns an error if the ID is empty
// or already exists.
func (f *Fleet) AddNode(n *model.SensorNode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n == nil || n.ID == "" {
		return fmt.Errorf("node must have an ID")
	}
	if _, exists := f.nodes[n.ID]; exists {
		return fmt.Errorf("node with ID %q already exists", n.ID)
	}
	// store pointer so that flight runs can update charge state in-place
	f.nodes[n.ID] = n
	f.order = append(f.order, n.ID)
	return nil
}

// GetNode returns the node with the given ID, or nil if not found.
func (f *Fleet) GetNode(id string) *model.SensorNode {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nodes[id]
}

// ListNodes returns the nodes in insertion order. The slice is a snapshot;
// the node pointers are shared.
func (f *Fleet) ListNodes() []*model.SensorNode {
	f.mu.RLock()
	defer f.mu.RUnlock()

	res := make([]*model.SensorNode, 0, len(f.order))
	for _, id := range f.order {
		res = append(res, f.nodes[id])
	}
	return res
}

// RequestingCount returns how many nodes currently request charge.
func (f *Fleet) RequestingCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := 0
	for _, sn := range f.nodes {
		if sn.RequestsCharge {
			n++
		}
	}
	return n
}

// MarkCharged notifies subscribers that a node was fully recharged. The
// flight loop has already updated the node's voltage and request flag.
func (f *Fleet) MarkCharged(id string) error {
	f.mu.Lock()
	sn, ok := f.nodes[id]
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("node with ID %q not found", id)
	}
	event := Event{
		Type: EventNodeCharged,
		Node: *sn, // copy for safety
	}
	subs := append([]func(Event){}, f.subs...)
	f.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// DischargeAll advances every node's self-discharge by d and notifies
// subscribers of nodes that newly raised a charge request.
func (f *Fleet) DischargeAll(d time.Duration) {
	f.mu.Lock()
	var events []Event
	for _, id := range f.order {
		sn := f.nodes[id]
		wasRequesting := sn.RequestsCharge
		sn.Discharge(d)
		if sn.RequestsCharge && !wasRequesting {
			events = append(events, Event{Type: EventNodeRequested, Node: *sn})
		}
	}
	subs := append([]func(Event){}, f.subs...)
	f.mu.Unlock()

	for _, sub := range subs {
		for _, ev := range events {
			sub(ev)
		}
	}
}

// Subscribe registers a callback for fleet events. It returns an
// unsubscribe function.
func (f *Fleet) Subscribe(fn func(Event)) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
	idx := len(f.subs) - 1

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if idx < 0 || idx >= len(f.subs) {
			return
		}
		f.subs = append(f.subs[:idx], f.subs[idx+1:]...)
		idx = -1
	}
}

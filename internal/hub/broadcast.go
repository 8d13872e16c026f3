package hub

import (
	"peoplepulse/realtime-hub/internal/hub/domain"
)

// Sender delivers events to one connection. Implementations must not block:
// a send that cannot complete (closed connection, full buffer) returns false
// and the event is dropped. The transport's own disconnect signal, not the
// router, is what reaps a dead connection.
type Sender interface {
	Send(event domain.Event) bool
}

// Router fans events out to room members and secondary subscription scopes.
// It owns the connectionID -> Sender table; membership comes from the
// RoomIndex. Mutations are serialized by the Hub's mutex, and delivery to a
// single recipient preserves emission order because dispatch is synchronous.
type Router struct {
	rooms   *RoomIndex
	senders map[string]Sender
	// subs maps a channel key (e.g. "dashboard:<tenant>") to subscriber
	// connection IDs, independent of room membership bookkeeping.
	subs map[string]map[string]struct{}

	// delivered counts successful sends; droppedDeliveries counts events
	// dropped on unreachable connections. Read by the metrics collector.
	delivered         uint64
	droppedDeliveries uint64
}

// NewRouter returns a router that resolves room membership through rooms.
func NewRouter(rooms *RoomIndex) *Router {
	return &Router{
		rooms:   rooms,
		senders: make(map[string]Sender),
		subs:    make(map[string]map[string]struct{}),
	}
}

// Attach registers the sender for a connection.
func (r *Router) Attach(connectionID string, sender Sender) {
	r.senders[connectionID] = sender
}

// Detach removes the connection's sender and all of its subscriptions.
func (r *Router) Detach(connectionID string) {
	delete(r.senders, connectionID)
	for key, set := range r.subs {
		delete(set, connectionID)
		if len(set) == 0 {
			delete(r.subs, key)
		}
	}
}

// Subscribe adds the connection to a secondary subscription scope.
func (r *Router) Subscribe(channelKey, connectionID string) {
	set, ok := r.subs[channelKey]
	if !ok {
		set = make(map[string]struct{})
		r.subs[channelKey] = set
	}
	set[connectionID] = struct{}{}
}

// Unsubscribe removes the connection from a subscription scope.
func (r *Router) Unsubscribe(channelKey, connectionID string) {
	set, ok := r.subs[channelKey]
	if !ok {
		return
	}
	delete(set, connectionID)
	if len(set) == 0 {
		delete(r.subs, channelKey)
	}
}

// ToRoom delivers the event to every current member of the tenant's room.
func (r *Router) ToRoom(tenantID, eventName string, payload any) {
	r.deliver(r.rooms.MembersOf(tenantID), "", eventName, payload)
}

// ToRoomExceptSender delivers to every member except the originating
// connection, for events whose originator already has the state locally
// (cursor moves, page changes).
func (r *Router) ToRoomExceptSender(tenantID, senderConnectionID, eventName string, payload any) {
	r.deliver(r.rooms.MembersOf(tenantID), senderConnectionID, eventName, payload)
}

// ToSubscribers delivers to every connection subscribed to channelKey.
func (r *Router) ToSubscribers(channelKey, eventName string, payload any) {
	r.deliver(r.subs[channelKey], "", eventName, payload)
}

func (r *Router) deliver(targets map[string]struct{}, skip, eventName string, payload any) {
	event := domain.Event{Name: eventName, Payload: payload}
	for connectionID := range targets {
		if connectionID == skip {
			continue
		}
		sender, ok := r.senders[connectionID]
		if !ok {
			continue
		}
		if sender.Send(event) {
			r.delivered++
		} else {
			r.droppedDeliveries++
		}
	}
}

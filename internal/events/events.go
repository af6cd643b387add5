// SPDX-License-Identifier: MPL-2.0

// Package events provides the process-wide event-name registry and the
// Event value exchanged between modules over the host's event bus.
//
// Event names are interned to small integers the first time they are seen.
// The mapping only grows: there is no way to remove a name once assigned,
// matching the host's static, process-lifetime event-type table.
package events

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ID identifies an interned event name. The zero value is never assigned by
// Intern and can be used as an "unset" sentinel by callers.
type ID int

// Event is a message delivered to a module's subscriber callback. Name and
// ID are always consistent: ID is the interned form of Name.
type Event struct {
	ID            ID
	Name          string
	Source        string // name of the module that emitted the event, "" for host-originated events
	Payload       any
	CorrelationID string // unique per dispatch, for tying a module's log lines back to one emit() call
}

// Registry interns event names to IDs. The zero Registry is not usable;
// construct one with NewRegistry. A single process-wide instance is exposed
// through the package-level functions below.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]ID
	byID   []string
	next   ID
}

// NewRegistry creates an empty Registry. IDs start at 1, leaving 0 as the
// unset sentinel.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]ID),
		byID:   []string{""}, // index 0 unused
		next:   1,
	}
}

// Intern returns the ID for name, assigning a new one if this is the first
// time name has been seen by this registry.
func (r *Registry) Intern(name string) ID {
	r.mu.RLock()
	if id, ok := r.byName[name]; ok {
		r.mu.RUnlock()
		return id
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byName[name]; ok {
		return id
	}
	id := r.next
	r.next++
	r.byName[name] = id
	r.byID = append(r.byID, name)
	return id
}

// Lookup returns the ID already assigned to name, if any, without assigning
// a new one.
func (r *Registry) Lookup(name string) (ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// Name returns the name interned under id, if any.
func (r *Registry) Name(id ID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id <= 0 || int(id) >= len(r.byID) {
		return "", false
	}
	return r.byID[id], true
}

// New returns an Event with Name interned against r, stamped with a fresh
// correlation ID.
func (r *Registry) New(name, source string, payload any) Event {
	return Event{
		ID:            r.Intern(name),
		Name:          name,
		Source:        source,
		Payload:       payload,
		CorrelationID: uuid.NewString(),
	}
}

func (r *Registry) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("events.Registry{%d names}", len(r.byName))
}

// global is the process-wide registry; internal/modhost interns every event
// name against it through the package-level functions below.
var global = NewRegistry()

// Intern interns name against the process-wide registry.
func Intern(name string) ID { return global.Intern(name) }

// Lookup looks up name in the process-wide registry.
func Lookup(name string) (ID, bool) { return global.Lookup(name) }

// Name resolves id against the process-wide registry.
func Name(id ID) (string, bool) { return global.Name(id) }

// New builds an Event interned against the process-wide registry.
func New(name, source string, payload any) Event { return global.New(name, source, payload) }

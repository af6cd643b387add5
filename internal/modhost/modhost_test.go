// SPDX-License-Identifier: MPL-2.0

package modhost

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/modhost/modhost/internal/events"
)

// recordingModule is a test Module that counts Init/Close calls, records
// every event it receives, and runs an optional hook for each.
type recordingModule struct {
	mu        sync.Mutex
	inits     int
	closes    int
	received  []events.Event
	host      HostAPI
	onInit    func(ctx context.Context, host HostAPI) error
	onEvent   func(ctx context.Context, ev events.Event) error
	onClose   func(ctx context.Context) error
	initDone  chan struct{}
	closeDone chan struct{}
	initOnce  sync.Once
	closeOnce sync.Once
}

func newRecordingModule() *recordingModule {
	return &recordingModule{
		initDone:  make(chan struct{}),
		closeDone: make(chan struct{}),
	}
}

func (m *recordingModule) Init(ctx context.Context, host HostAPI) error {
	m.mu.Lock()
	m.host = host
	m.inits++
	m.mu.Unlock()
	defer m.initOnce.Do(func() { close(m.initDone) })
	if m.onInit != nil {
		return m.onInit(ctx, host)
	}
	return nil
}

func (m *recordingModule) Event(ctx context.Context, ev events.Event) error {
	m.mu.Lock()
	m.received = append(m.received, ev)
	m.mu.Unlock()
	if m.onEvent != nil {
		return m.onEvent(ctx, ev)
	}
	return nil
}

func (m *recordingModule) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closes++
	m.mu.Unlock()
	defer m.closeOnce.Do(func() { close(m.closeDone) })
	if m.onClose != nil {
		return m.onClose(ctx)
	}
	return nil
}

func (m *recordingModule) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

func (m *recordingModule) lastEvent() (events.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.received) == 0 {
		return events.Event{}, false
	}
	return m.received[len(m.received)-1], true
}

// waitFor polls cond until it returns true or timeout elapses.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

var errBoom = errors.New("boom")

// panicModule panics inside Event to exercise the recover-to-error path.
type panicModule struct {
	recordingModule
	panicOn string
}

func (m *panicModule) Event(ctx context.Context, ev events.Event) error {
	if ev.Name == m.panicOn {
		panic("simulated module panic")
	}
	return m.recordingModule.Event(ctx, ev)
}

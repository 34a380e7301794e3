// Package control is the command/report dispatch engine sitting between an
// autonomy stack and the drive-by-wire modules: it gates outbound actuation
// commands on per-module enable state, runs the inbound receive loop, and
// fans decoded reports out to subscribers.
package control

import (
	"errors"
	"sync"
	"time"

	"github.com/roadwire/gooscc/protocol"
)

// State is one module's position in the Disabled -> Enabled -> Faulted
// lattice. A faulted module only leaves Faulted through an explicit
// disable.
type State int

const (
	Disabled State = iota
	Enabled
	Faulted
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Enabled:
		return "enabled"
	case Faulted:
		return "faulted"
	}
	return "unknown"
}

var (
	ErrAlreadyFaulted   = errors.New("control: module is faulted, disable to clear")
	ErrModuleNotEnabled = errors.New("control: module not enabled")
)

// ModuleStatus is a point-in-time snapshot of one module.
type ModuleStatus struct {
	Module     protocol.ModuleKind
	State      State
	LastReport time.Time
	LastFaults protocol.FaultBits
}

type moduleStatus struct {
	state      State
	lastReport time.Time
	lastFaults protocol.FaultBits
}

// Modules tracks the enable/disable/fault state of every control module.
// All transitions happen under one lock so readers always see a consistent
// snapshot.
type Modules struct {
	mu     sync.Mutex
	status map[protocol.ModuleKind]*moduleStatus
}

func NewModules() *Modules {
	m := &Modules{status: make(map[protocol.ModuleKind]*moduleStatus)}
	for _, kind := range protocol.ModuleKinds() {
		m.status[kind] = &moduleStatus{}
	}
	return m
}

// Enable arms a module. Enabling an enabled module is a no-op; a faulted
// module refuses until it is explicitly disabled first.
func (m *Modules) Enable(kind protocol.ModuleKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status[kind]
	if st.state == Faulted {
		return ErrAlreadyFaulted
	}
	st.state = Enabled
	return nil
}

// Disable is the safety escape hatch: it moves any state back to Disabled,
// clearing a fault, and cannot fail.
func (m *Modules) Disable(kind protocol.ModuleKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[kind].state = Disabled
}

// Fault forces a module into Faulted. The transition is one-way until an
// operator disables the module.
func (m *Modules) Fault(kind protocol.ModuleKind, bits protocol.FaultBits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status[kind]
	st.state = Faulted
	st.lastFaults = bits
	st.lastReport = time.Now()
}

// Gate reports whether commands may currently be encoded for a module.
func (m *Modules) Gate(kind protocol.ModuleKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status[kind].state != Enabled {
		return ErrModuleNotEnabled
	}
	return nil
}

// Observe records a report arrival time for a module.
func (m *Modules) Observe(kind protocol.ModuleKind, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[kind].lastReport = at
}

// StateOf returns a module's current state.
func (m *Modules) StateOf(kind protocol.ModuleKind) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[kind].state
}

// AnyFaulted reports whether any module currently holds a fault.
func (m *Modules) AnyFaulted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.status {
		if st.state == Faulted {
			return true
		}
	}
	return false
}

// Snapshot returns every module's status in canonical order.
func (m *Modules) Snapshot() []ModuleStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ModuleStatus, 0, len(m.status))
	for _, kind := range protocol.ModuleKinds() {
		st := m.status[kind]
		out = append(out, ModuleStatus{
			Module:     kind,
			State:      st.state,
			LastReport: st.lastReport,
			LastFaults: st.lastFaults,
		})
	}
	return out
}

// Reset returns every module to Disabled, used on session close.
func (m *Modules) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.status {
		st.state = Disabled
		st.lastFaults = 0
	}
}

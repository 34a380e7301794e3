package control

import (
	"log"
	"sync"
	"time"

	"github.com/roadwire/gooscc/protocol"
)

// Subscriber callback types, one per report kind. OBD handlers receive the
// raw frame with no protocol interpretation.
type (
	BrakeHandler    func(*protocol.BrakeReport)
	ThrottleHandler func(*protocol.ThrottleReport)
	SteeringHandler func(*protocol.SteeringReport)
	FaultHandler    func(*protocol.FaultReport)
	OBDHandler      func(id uint32, data []byte)
)

// Dispatcher routes decoded reports to subscribers in registration order.
// Registration may race with dispatch; the handler list is snapshotted
// under the lock and invoked outside it so a slow callback never blocks a
// new subscription or a Disable call.
type Dispatcher struct {
	modules *Modules
	logger  *log.Logger

	mu       sync.Mutex
	brake    []BrakeHandler
	throttle []ThrottleHandler
	steering []SteeringHandler
	fault    []FaultHandler
	obd      []OBDHandler
}

func newDispatcher(modules *Modules, logger *log.Logger) *Dispatcher {
	return &Dispatcher{modules: modules, logger: logger}
}

// Duplicate registration is allowed and results in duplicate invocation.

func (d *Dispatcher) subscribeBrake(h BrakeHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.brake = append(d.brake, h)
}

func (d *Dispatcher) subscribeThrottle(h ThrottleHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.throttle = append(d.throttle, h)
}

func (d *Dispatcher) subscribeSteering(h SteeringHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.steering = append(d.steering, h)
}

func (d *Dispatcher) subscribeFault(h FaultHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fault = append(d.fault, h)
}

func (d *Dispatcher) subscribeOBD(h OBDHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.obd = append(d.obd, h)
}

// dispatch updates module state for the report, then invokes every
// subscriber for its kind. Fault reports flip the module to Faulted before
// any callback runs, so subscribers always observe post-fault state.
func (d *Dispatcher) dispatch(rep protocol.Report, at time.Time) {
	switch r := rep.(type) {
	case protocol.BrakeReport:
		d.modules.Observe(protocol.ModuleBrake, at)
		d.mu.Lock()
		handlers := append([]BrakeHandler(nil), d.brake...)
		d.mu.Unlock()
		for _, h := range handlers {
			d.invoke(func() { h(&r) })
		}

	case protocol.ThrottleReport:
		d.modules.Observe(protocol.ModuleThrottle, at)
		d.mu.Lock()
		handlers := append([]ThrottleHandler(nil), d.throttle...)
		d.mu.Unlock()
		for _, h := range handlers {
			d.invoke(func() { h(&r) })
		}

	case protocol.SteeringReport:
		d.modules.Observe(protocol.ModuleSteering, at)
		d.mu.Lock()
		handlers := append([]SteeringHandler(nil), d.steering...)
		d.mu.Unlock()
		for _, h := range handlers {
			d.invoke(func() { h(&r) })
		}

	case protocol.FaultReport:
		d.modules.Fault(r.Origin, r.Faults)
		d.mu.Lock()
		handlers := append([]FaultHandler(nil), d.fault...)
		d.mu.Unlock()
		for _, h := range handlers {
			d.invoke(func() { h(&r) })
		}
	}
}

// dispatchOBD relays a non-protocol frame to OBD subscribers untouched.
func (d *Dispatcher) dispatchOBD(id uint32, data []byte) {
	d.mu.Lock()
	handlers := append([]OBDHandler(nil), d.obd...)
	d.mu.Unlock()
	for _, h := range handlers {
		d.invoke(func() { h(id, data) })
	}
}

// invoke runs one callback, absorbing a panic so a bad subscriber cannot
// starve the rest or kill the receive loop.
func (d *Dispatcher) invoke(f func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("subscriber panic: %v", r)
		}
	}()
	f()
}
